// Package services contains the account and session lifecycle logic:
// credential sign-in, Google sign-in, access token refresh, the OTP password
// reset flow and the authenticated account operations. Services are stateless
// orchestrators over the repositories vended by repomanager.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// OTPTTL is how long a reset code stays valid.
const OTPTTL = 5 * time.Minute

const (
	otpDigits = 6
	// random bytes behind the throwaway password of a Google-created account
	oauthPasswordBytes = 6
)

// Messages returned alongside successful results.
const (
	MsgSignInSuccess        = "Sign in successful!"
	MsgGoogleSignInSuccess  = "Sign in with Google success, password sent to your email"
	MsgAccessTokenRefreshed = "Access token refreshed successfully"
	MsgOTPSent              = "OTP has been sent to your email"
	MsgPasswordReset        = "Password reset successfully!"
	MsgUserRegistered       = "User registered successfully"
	MsgProfileUpdated       = "Profile updated successfully"
	MsgAvatarUploaded       = "Avatar uploaded successfully"
	MsgPasswordChanged      = "Password changed successfully"
	MsgAccountDeleted       = "Account deleted successfully"
)

// PasswordHasher is satisfied by auth.BcryptHasher.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
}

// TokenIssuer is satisfied by auth.Issuer.
type TokenIssuer interface {
	Issue(kind auth.TokenKind, p auth.Payload) (string, error)
	Verify(kind auth.TokenKind, token string) (*auth.Payload, error)
}

// Notifier delivers codes and generated passwords by email. Failures are
// reported to the caller but never undo the state change that preceded them.
type Notifier interface {
	SendOTP(ctx context.Context, email, code string) error
	SendGeneratedPassword(ctx context.Context, email, password string) error
}

// AvatarStore uploads an avatar image and returns its public URL.
type AvatarStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}

// Principal is an identity asserted by an external provider.
type Principal struct {
	Email    string
	Fullname string
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type SignInResult struct {
	Message string
	TokenPair
	User *models.User
}

type OAuthLoginResult struct {
	Message string
	TokenPair
}

type RefreshResult struct {
	Message     string
	AccessToken string
}

// Result is a bare acknowledgement.
type Result struct {
	Message string
}

type UserResult struct {
	Message string
	User    *models.User
}

type AvatarResult struct {
	Message string
	URL     string
}

// Deps are the collaborators shared by AuthService and UserService.
// Logger and Notifier may be nil.
type Deps struct {
	DB       *sql.DB
	Repos    repomanager.RepositoryManager
	Hasher   PasswordHasher
	Tokens   TokenIssuer
	Notifier Notifier
	Avatars  AvatarStore
	Logger   logging.Logger
}

func (d Deps) logger(module string) logging.Logger {
	if d.Logger == nil {
		return logging.Nop{}
	}
	return d.Logger.With("module", module)
}

func (d Deps) notifier() Notifier {
	if d.Notifier == nil {
		return discardNotifier{}
	}
	return d.Notifier
}

type discardNotifier struct{}

func (discardNotifier) SendOTP(context.Context, string, string) error               { return nil }
func (discardNotifier) SendGeneratedPassword(context.Context, string, string) error { return nil }

// storeErr marks err as a persistence failure while keeping the cause.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrStoreUnavailable, err)
}

// hashErr passes an over-long password through as a client error and hides
// any other hashing failure.
func hashErr(err error) error {
	if errors.Is(err, common.ErrPasswordTooLong) {
		return err
	}
	return internalErr("hash password", err)
}

// internalErr hides a signing or hashing failure behind common.ErrorInternal.
func internalErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, common.ErrorInternal, err)
}
