// Package passwordresets stores one-time password reset codes, either in
// PostgreSQL next to the users or in Redis.
package passwordresets

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository is the OTP ledger. Callers keep at most one live record per
// email by deleting before creating.
type Repository interface {
	DeleteByEmail(ctx context.Context, email string) error
	Create(ctx context.Context, rec *models.PasswordReset) (*models.PasswordReset, error)
	// FindByEmailAndCode matches email and code exactly, expired or not.
	// No match is common.ErrorNotFound.
	FindByEmailAndCode(ctx context.Context, email, code string) (*models.PasswordReset, error)
	DeleteByID(ctx context.Context, id int64) error
	// DeleteExpired purges records whose expiry is not after now and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
