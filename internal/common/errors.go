// Package common defines shared constants and sentinel errors used across
// the service layers of gophauth. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// ErrStoreUnavailable wraps any failure talking to persistence.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Token errors (Token Issuer).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Credential lifecycle errors.
	ErrInvalidCredentials           = errors.New("invalid email/username or password")
	ErrNoOAuthPrincipal             = errors.New("no user from Google")
	ErrInvalidOrExpiredRefreshToken = errors.New("refresh token is invalid or has expired")
	ErrInvalidRefreshToken          = errors.New("invalid refresh token")
	ErrUserNotFound                 = errors.New("user not found")
	ErrEmailAlreadyExists           = errors.New("email already exists")
	ErrOtpIncorrectOrMissing        = errors.New("OTP is incorrect or does not exist")
	ErrOtpExpired                   = errors.New("OTP has expired")
	ErrOldPasswordMismatch          = errors.New("old password is incorrect")
	ErrUnsupportedAvatarType        = errors.New("only image files are allowed (jpg, jpeg, png, webp)")
	ErrPasswordTooLong              = errors.New("password must be at most 72 bytes")
)
