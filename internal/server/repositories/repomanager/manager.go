package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so services can run
// the same code against *sql.DB or inside a *sql.Tx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
}

// redisResets overrides the OTP ledger of an underlying manager.
type redisResets struct {
	RepositoryManager
	resets *passwordresets.RedisRepository
}

// PasswordResets ignores db: the Redis ledger is not part of SQL transactions.
func (m *redisResets) PasswordResets(dbx.DBTX) passwordresets.Repository {
	return m.resets
}

// WithRedisPasswordResets returns a manager that keeps reset codes in Redis
// and delegates everything else to base.
func WithRedisPasswordResets(base RepositoryManager, resets *passwordresets.RedisRepository) RepositoryManager {
	return &redisResets{RepositoryManager: base, resets: resets}
}
