package passwordresets

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/dbx"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_reset WHERE email = $1`, email); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.PasswordReset) (*models.PasswordReset, error) {
	query := `INSERT INTO password_reset (email, otp, expires_at)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`

	out := *rec
	if err := r.db.QueryRowContext(ctx, query, rec.Email, rec.OTP, rec.ExpiresAt).Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) FindByEmailAndCode(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	query := `SELECT id, email, otp, expires_at, created_at FROM password_reset
		 WHERE email = $1 AND otp = $2
		 ORDER BY id DESC
		 LIMIT 1`

	rec := &models.PasswordReset{}
	err := r.db.QueryRowContext(ctx, query, email, code).
		Scan(&rec.ID, &rec.Email, &rec.OTP, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) DeleteByID(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM password_reset WHERE id = $1`, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM password_reset WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
