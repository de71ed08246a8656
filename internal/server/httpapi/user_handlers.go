package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
	"github.com/gin-gonic/gin"
)

const (
	avatarField    = "avatar"
	maxAvatarBytes = 5 << 20
)

func (s *Server) register(c *gin.Context) {
	var req validation.RegisterRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.users.Register(c.Request.Context(), services.RegisterInput{
		Email:       req.Email,
		Fullname:    req.Fullname,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": res.Message,
		"status":  http.StatusCreated,
		"user":    res.User,
	})
}

func (s *Server) myProfile(c *gin.Context) {
	user, err := s.users.GetProfile(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) updateProfile(c *gin.Context) {
	var req validation.UpdateProfileRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.users.UpdateProfile(c.Request.Context(), currentUser(c).ID, services.ProfileUpdate{
		Email:       req.Email,
		Fullname:    req.Fullname,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": res.Message,
		"status":  http.StatusOK,
		"data":    res.User,
	})
}

func (s *Server) uploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes+1<<10)

	fh, err := c.FormFile(avatarField)
	if err != nil {
		abort(c, http.StatusBadRequest, "Avatar file is required")
		return
	}
	if fh.Size > maxAvatarBytes {
		abort(c, http.StatusRequestEntityTooLarge, "Avatar file is too large")
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.fail(c, err)
		return
	}
	defer f.Close()

	res, err := s.users.UploadAvatar(c.Request.Context(), currentUser(c).ID, fh.Filename, fh.Header.Get("Content-Type"), f)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": res.Message,
		"status":  http.StatusOK,
		"url":     res.URL,
	})
}

func (s *Server) changePassword(c *gin.Context) {
	var req validation.ChangePasswordRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.users.ChangePassword(c.Request.Context(), currentUser(c).ID, req.OldPassword, req.NewPassword)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, res.Message)
}

func (s *Server) deleteAccount(c *gin.Context) {
	res, err := s.users.DeleteAccount(c.Request.Context(), currentUser(c).ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	ok(c, res.Message)
}
