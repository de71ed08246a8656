package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/validation"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type errorMapping struct {
	err     error
	status  int
	message string
}

// errorTable is checked in order with errors.Is; the first match wins.
var errorTable = []errorMapping{
	{common.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email/username or password!"},
	{common.ErrNoOAuthPrincipal, http.StatusUnauthorized, "No user from google"},
	{common.ErrInvalidOrExpiredRefreshToken, http.StatusUnauthorized, "Refresh token is invalid or has expired"},
	{common.ErrInvalidRefreshToken, http.StatusUnauthorized, "Invalid refresh token"},
	{common.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{common.ErrEmailAlreadyExists, http.StatusConflict, "Email already exists"},
	{common.ErrOtpIncorrectOrMissing, http.StatusBadRequest, "OTP is incorrect or does not exist"},
	{common.ErrOtpExpired, http.StatusBadRequest, "OTP has expired"},
	{common.ErrOldPasswordMismatch, http.StatusBadRequest, "Old password is incorrect"},
	{common.ErrUnsupportedAvatarType, http.StatusBadRequest, "Only image files are allowed (jpg, jpeg, png, webp)"},
	{common.ErrPasswordTooLong, http.StatusBadRequest, "Password must be at most 72 characters"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "Unauthorized"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "Unauthorized"},
	{common.ErrorValidation, http.StatusBadRequest, "Validation failed"},
	{common.ErrStoreUnavailable, http.StatusServiceUnavailable, "Service temporarily unavailable"},
}

// statusOf maps err to a status and a client-safe message.
func statusOf(err error) (int, string) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message()
	}
	for _, m := range errorTable {
		if errors.Is(err, m.err) {
			return m.status, m.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

func (s *Server) fail(c *gin.Context, err error) {
	status, msg := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	}
	abort(c, status, msg)
}

func abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Message: msg, Status: status})
}
