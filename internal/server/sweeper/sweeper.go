// Package sweeper periodically purges expired password reset codes.
package sweeper

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

type Sweeper struct {
	db       dbx.DBTX
	repos    repomanager.RepositoryManager
	interval time.Duration
	logger   logging.Logger
	now      func() time.Time
}

func New(db dbx.DBTX, repos repomanager.RepositoryManager, interval time.Duration, l logging.Logger) *Sweeper {
	if l == nil {
		l = logging.Nop{}
	}
	return &Sweeper{
		db:       db,
		repos:    repos,
		interval: interval,
		logger:   l.With("module", "otp_sweeper"),
		now:      time.Now,
	}
}

// Run sweeps once per interval until ctx is done. A non-positive interval
// disables sweeping and Run returns at once.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info(ctx, "OTP sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep removes every expired record once. Failures are logged and retried
// on the next tick.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	n, err := s.repos.PasswordResets(s.db).DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn(ctx, "OTP sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info(ctx, "expired OTPs removed", "count", n)
	}
	return n
}
