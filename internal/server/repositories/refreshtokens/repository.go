// Package refreshtokens declares the server-side repository contract for
// the refresh token ledger.
package refreshtokens

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Repository records issued refresh tokens. Tokens are stored verbatim; a
// row is never deduplicated or rotated by the repository.
type Repository interface {
	// Create stores token for userID as a new, non-revoked row.
	Create(ctx context.Context, userID int64, token string) error

	// FindActive returns the non-revoked row whose token equals token exactly,
	// or common.ErrorNotFound.
	FindActive(ctx context.Context, token string) (*models.RefreshToken, error)

	// DeleteByUserID removes every token owned by userID. Deleting nothing
	// is not an error.
	DeleteByUserID(ctx context.Context, userID int64) error
}
