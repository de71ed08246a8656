package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var allowedAvatarTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/jpg":  {},
	"image/webp": {},
}

// RegisterInput is an already validated registration request.
type RegisterInput struct {
	Email       string
	Fullname    string
	Password    string
	DisplayName *string
	Avatar      *string
}

// ProfileUpdate carries the profile fields a user may change. Nil fields are
// left untouched.
type ProfileUpdate struct {
	Email       *string
	Fullname    *string
	DisplayName *string
}

// UserService implements registration and the authenticated account
// operations.
type UserService struct {
	db      *sql.DB
	repos   repomanager.RepositoryManager
	hasher  PasswordHasher
	avatars AvatarStore
	log     logging.Logger
}

func NewUserService(d Deps) *UserService {
	return &UserService{
		db:      d.DB,
		repos:   d.Repos,
		hasher:  d.Hasher,
		avatars: d.Avatars,
		log:     d.logger("users"),
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*UserResult, error) {
	in.Email = common.NormalizeEmail(in.Email)
	users := s.repos.Users(s.db)

	_, err := users.GetByEmail(ctx, in.Email)
	if err == nil {
		return nil, common.ErrEmailAlreadyExists
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, storeErr("register", err)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, hashErr(err)
	}

	user, err := users.Create(ctx, &models.User{
		Email:       in.Email,
		Fullname:    in.Fullname,
		Password:    digest,
		DisplayName: in.DisplayName,
		Avatar:      in.Avatar,
		Role:        common.DefaultRole,
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrEmailAlreadyExists
		}
		return nil, storeErr("create user", err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return &UserResult{Message: MsgUserRegistered, User: user}, nil
}

func (s *UserService) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	return s.getUser(ctx, id)
}

// UpdateProfile changes the supplied fields. Moving to an email owned by
// another account fails with common.ErrEmailAlreadyExists.
func (s *UserService) UpdateProfile(ctx context.Context, id int64, upd ProfileUpdate) (*UserResult, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Email != nil {
		email := common.NormalizeEmail(*upd.Email)
		upd.Email = &email
	}

	users := s.repos.Users(s.db)
	if upd.Email != nil && *upd.Email != user.Email {
		_, err := users.GetByEmail(ctx, *upd.Email)
		if err == nil {
			return nil, common.ErrEmailAlreadyExists
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, storeErr("update profile", err)
		}
	}

	updated, err := users.Update(ctx, id, models.UserFields{
		Email:       upd.Email,
		Fullname:    upd.Fullname,
		DisplayName: upd.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, common.ErrorAlreadyExists):
			return nil, common.ErrEmailAlreadyExists
		case errors.Is(err, common.ErrorNotFound):
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("update profile", err)
	}
	return &UserResult{Message: MsgProfileUpdated, User: updated}, nil
}

// UploadAvatar stores an image under a fresh key and records its public URL
// as the user's avatar.
func (s *UserService) UploadAvatar(ctx context.Context, id int64, filename, contentType string, body io.Reader) (*AvatarResult, error) {
	if _, ok := allowedAvatarTypes[strings.ToLower(contentType)]; !ok {
		return nil, common.ErrUnsupportedAvatarType
	}
	if _, err := s.getUser(ctx, id); err != nil {
		return nil, err
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	url, err := s.avatars.Put(ctx, key, contentType, body)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w: %w", common.ErrStoreUnavailable, err)
	}

	if _, err := s.repos.Users(s.db).Update(ctx, id, models.UserFields{Avatar: &url}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("save avatar", err)
	}

	s.log.Info(ctx, "avatar uploaded", "user_id", id, "key", key)
	return &AvatarResult{Message: MsgAvatarUploaded, URL: url}, nil
}

func (s *UserService) ChangePassword(ctx context.Context, id int64, oldPassword, newPassword string) (*Result, error) {
	user, err := s.getUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(oldPassword, user.Password) {
		return nil, common.ErrOldPasswordMismatch
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, hashErr(err)
	}
	if _, err := s.repos.Users(s.db).Update(ctx, id, models.UserFields{Password: &digest}); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("change password", err)
	}
	return &Result{Message: MsgPasswordChanged}, nil
}

// DeleteAccount removes the user's refresh tokens and then the user, in one
// transaction.
func (s *UserService) DeleteAccount(ctx context.Context, id int64) (*Result, error) {
	if _, err := s.getUser(ctx, id); err != nil {
		return nil, err
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.RefreshTokens(tx).DeleteByUserID(ctx, id); err != nil {
			return err
		}
		return s.repos.Users(tx).Delete(ctx, id)
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("delete account", err)
	}

	s.log.Info(ctx, "account deleted", "user_id", id)
	return &Result{Message: MsgAccountDeleted}, nil
}

func (s *UserService) getUser(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.repos.Users(s.db).GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrUserNotFound
		}
		return nil, storeErr("load user", err)
	}
	return user, nil
}
