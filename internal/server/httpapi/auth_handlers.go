package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/oauth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
	"github.com/gin-gonic/gin"
)

const (
	stateCookie       = "gophauth_oauth_state"
	stateCookiePath   = "/auth/google"
	stateCookieMaxAge = 600
)

type validatable interface{ Validate() error }

// bind decodes the JSON body into req and validates it. It writes the error
// response itself and reports whether the handler should continue.
func (s *Server) bind(c *gin.Context, req validatable) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := req.Validate(); err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

func (s *Server) signIn(c *gin.Context) {
	var req validation.SignInRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":       res.Message,
		"status":        http.StatusCreated,
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
		"user":          res.User,
	})
}

func (s *Server) googleAuth(c *gin.Context) {
	if s.google == nil {
		abort(c, http.StatusNotFound, "Google sign-in is not configured")
		return
	}

	state, err := oauth.NewState()
	if err != nil {
		s.fail(c, err)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, stateCookieMaxAge, stateCookiePath, "", s.SecureCookies, true)
	c.Redirect(http.StatusFound, s.google.AuthCodeURL(state))
}

func (s *Server) googleRedirect(c *gin.Context) {
	if s.google == nil {
		abort(c, http.StatusNotFound, "Google sign-in is not configured")
		return
	}
	ctx := c.Request.Context()

	issued, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, stateCookiePath, "", s.SecureCookies, true)

	// any failure here leaves the login without a principal
	var principal *services.Principal
	if err := oauth.CheckState(issued, c.Query("state")); err != nil {
		s.logger.Warn(ctx, "google callback rejected", "error", err)
	} else if reason := c.Query("error"); reason != "" {
		s.logger.Warn(ctx, "google consent denied", "reason", reason)
	} else if p, err := s.google.Principal(ctx, c.Query("code")); err != nil {
		s.logger.Warn(ctx, "google exchange failed", "error", err)
	} else {
		principal = p
	}

	res, err := s.auth.OAuthLogin(ctx, principal)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       res.Message,
		"status":        http.StatusOK,
		"access_token":  res.AccessToken,
		"refresh_token": res.RefreshToken,
	})
}

func (s *Server) refreshToken(c *gin.Context) {
	var req validation.RefreshTokenRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.auth.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      res.Message,
		"status":       http.StatusOK,
		"access_token": res.AccessToken,
	})
}

func (s *Server) forgotPassword(c *gin.Context) {
	var req validation.ForgotPasswordRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.auth.ForgotPassword(c.Request.Context(), req.Email)
	if errors.Is(err, common.ErrUserNotFound) {
		abort(c, http.StatusNotFound, "Email not found")
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, res.Message)
}

func (s *Server) resetPassword(c *gin.Context) {
	var req validation.ResetPasswordRequest
	if !s.bind(c, &req) {
		return
	}

	res, err := s.auth.ResetPassword(c.Request.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		s.fail(c, err)
		return
	}

	ok(c, res.Message)
}

func ok(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{"message": msg, "status": http.StatusOK})
}
