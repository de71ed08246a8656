package services

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

// AuthService handles sign-in, Google sign-in, access token refresh and the
// forgot/reset password flow.
type AuthService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	hasher   PasswordHasher
	tokens   TokenIssuer
	notifier Notifier
	log      logging.Logger

	now      func() time.Time
	newCode  func() (string, error)
	newOAuth func() (string, error)

	dummyOnce   sync.Once
	dummyDigest string
}

func NewAuthService(d Deps) *AuthService {
	return &AuthService{
		db:       d.DB,
		repos:    d.Repos,
		hasher:   d.Hasher,
		tokens:   d.Tokens,
		notifier: d.notifier(),
		log:      d.logger("auth"),
		now:      time.Now,
		newCode:  func() (string, error) { return common.GenerateNumericCode(otpDigits) },
		newOAuth: func() (string, error) { return common.MakeRandHexString(oauthPasswordBytes) },
	}
}

// SignIn checks email and password and issues a token pair. The refresh
// token is recorded as a new row on every call. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = common.NormalizeEmail(email)
	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.burnVerify(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, storeErr("sign in", err)
	}

	if !s.hasher.Verify(password, user.Password) {
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.issuePair(auth.Payload{ID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}

	if err := s.repos.RefreshTokens(s.db).Create(ctx, user.ID, pair.RefreshToken); err != nil {
		return nil, storeErr("store refresh token", err)
	}

	s.log.Info(ctx, "user signed in", "user_id", user.ID)
	return &SignInResult{Message: MsgSignInSuccess, TokenPair: *pair, User: user}, nil
}

// OAuthLogin signs in a Google principal, creating the account on first use
// with a random password that is mailed to the user. No refresh token row is
// recorded on this path.
func (s *AuthService) OAuthLogin(ctx context.Context, p *Principal) (*OAuthLoginResult, error) {
	if p == nil {
		return nil, common.ErrNoOAuthPrincipal
	}
	p = &Principal{Email: common.NormalizeEmail(p.Email), Fullname: p.Fullname}

	users := s.repos.Users(s.db)
	user, err := users.GetByEmail(ctx, p.Email)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrorNotFound):
		user, err = s.createOAuthUser(ctx, p)
		if err != nil {
			return nil, err
		}
	default:
		return nil, storeErr("oauth login", err)
	}

	pair, err := s.issuePair(auth.Payload{ID: user.ID, Email: user.Email, Role: user.Role})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user signed in with google", "user_id", user.ID)
	return &OAuthLoginResult{Message: MsgGoogleSignInSuccess, TokenPair: *pair}, nil
}

func (s *AuthService) createOAuthUser(ctx context.Context, p *Principal) (*models.User, error) {
	password, err := s.newOAuth()
	if err != nil {
		return nil, internalErr("generate password", err)
	}
	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, internalErr("hash password", err)
	}

	users := s.repos.Users(s.db)
	user, err := users.Create(ctx, &models.User{
		Email:    p.Email,
		Fullname: p.Fullname,
		Password: digest,
		Role:     common.DefaultRole,
	})
	if errors.Is(err, common.ErrorAlreadyExists) {
		// Lost a race with a concurrent first login; use the winner's row.
		user, err = users.GetByEmail(ctx, p.Email)
		if err != nil {
			return nil, storeErr("oauth login", err)
		}
		return user, nil
	}
	if err != nil {
		return nil, storeErr("create user", err)
	}

	if err := s.notifier.SendGeneratedPassword(ctx, user.Email, password); err != nil {
		s.log.Warn(ctx, "generated password not delivered", "user_id", user.ID, "error", err)
	}
	return user, nil
}

// RefreshAccessToken exchanges a recorded, non-revoked refresh token for a
// new access token. The refresh token itself stays valid.
func (s *AuthService) RefreshAccessToken(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if _, err := s.tokens.Verify(auth.TokenRefresh, refreshToken); err != nil {
		return nil, common.ErrInvalidOrExpiredRefreshToken
	}

	row, err := s.repos.RefreshTokens(s.db).FindActive(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, storeErr("find refresh token", err)
	}
	if row.UserID == 0 {
		return nil, common.ErrInvalidRefreshToken
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, row.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, storeErr("refresh token owner", err)
	}

	access, err := s.tokens.Issue(auth.TokenAccess, auth.Payload{ID: row.UserID, Email: user.Email})
	if err != nil {
		return nil, internalErr("issue access token", err)
	}
	return &RefreshResult{Message: MsgAccessTokenRefreshed, AccessToken: access}, nil
}

// ForgotPassword replaces any pending reset code for email with a fresh one
// and mails it. Unknown emails are reported as common.ErrUserNotFound.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (*Result, error) {
	email = common.NormalizeEmail(email)
	if _, err := s.repos.Users(s.db).GetByEmail(ctx, email); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("forgot password", err)
	}

	code, err := s.newCode()
	if err != nil {
		return nil, internalErr("generate otp", err)
	}
	rec := &models.PasswordReset{Email: email, OTP: code, ExpiresAt: s.now().Add(OTPTTL)}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		resets := s.repos.PasswordResets(tx)
		if err := resets.DeleteByEmail(ctx, email); err != nil {
			return err
		}
		_, err := resets.Create(ctx, rec)
		return err
	})
	if err != nil {
		return nil, storeErr("issue otp", err)
	}

	if err := s.notifier.SendOTP(ctx, email, code); err != nil {
		s.log.Warn(ctx, "otp not delivered", "email", email, "error", err)
	}
	return &Result{Message: MsgOTPSent}, nil
}

// ResetPassword consumes a reset code and sets a new password. A code is
// expired from its expiry instant on; an expired record is left in place.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) (*Result, error) {
	email = common.NormalizeEmail(email)
	rec, err := s.repos.PasswordResets(s.db).FindByEmailAndCode(ctx, email, code)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrOtpIncorrectOrMissing
		}
		return nil, storeErr("find otp", err)
	}
	if rec.Expired(s.now()) {
		return nil, common.ErrOtpExpired
	}

	user, err := s.repos.Users(s.db).GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("reset password", err)
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, hashErr(err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Users(tx).Update(ctx, user.ID, models.UserFields{Password: &digest}); err != nil {
			return err
		}
		return s.repos.PasswordResets(tx).DeleteByID(ctx, rec.ID)
	})
	if err != nil {
		return nil, storeErr("reset password", err)
	}

	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return &Result{Message: MsgPasswordReset}, nil
}

func (s *AuthService) issuePair(p auth.Payload) (*TokenPair, error) {
	access, err := s.tokens.Issue(auth.TokenAccess, p)
	if err != nil {
		return nil, internalErr("issue access token", err)
	}
	refresh, err := s.tokens.Issue(auth.TokenRefresh, p)
	if err != nil {
		return nil, internalErr("issue refresh token", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// burnVerify spends one hash comparison so an unknown email costs about as
// much as a wrong password.
func (s *AuthService) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("gophauth-timing-equalizer")
	})
	s.hasher.Verify(password, s.dummyDigest)
}
