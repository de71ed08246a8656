package passwordresets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisRetention is how long a record outlives its expiry, so a late
// attempt is reported as expired rather than unknown.
const DefaultRedisRetention = time.Hour

const keyPrefix = "gophauth:pwreset:"

func emailKey(email string) string { return keyPrefix + "email:" + email }
func idKey(id int64) string        { return keyPrefix + "id:" + strconv.FormatInt(id, 10) }
func seqKey() string               { return keyPrefix + "seq" }

// RedisRepository keeps one hash per email plus an id index. Keys carry a
// TTL of expiry+retention, so Redis itself purges stale codes.
type RedisRepository struct {
	rdb       redis.UniversalClient
	retention time.Duration
	now       func() time.Time
}

func NewRedisRepository(rdb redis.UniversalClient, retention time.Duration) *RedisRepository {
	if retention <= 0 {
		retention = DefaultRedisRetention
	}
	return &RedisRepository{rdb: rdb, retention: retention, now: time.Now}
}

func (r *RedisRepository) DeleteByEmail(ctx context.Context, email string) error {
	id, err := r.rdb.HGet(ctx, emailKey(email), "id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis error: %w", err)
	}

	keys := []string{emailKey(email)}
	if id != "" {
		keys = append(keys, keyPrefix+"id:"+id)
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

func (r *RedisRepository) Create(ctx context.Context, rec *models.PasswordReset) (*models.PasswordReset, error) {
	id, err := r.rdb.Incr(ctx, seqKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}

	out := *rec
	out.ID = id
	out.CreatedAt = r.now()
	deadline := out.ExpiresAt.Add(r.retention)

	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ek := emailKey(out.Email)
		p.Del(ctx, ek)
		p.HSet(ctx, ek,
			"id", out.ID,
			"email", out.Email,
			"otp", out.OTP,
			"expires_at", out.ExpiresAt.UnixNano(),
			"created_at", out.CreatedAt.UnixNano(),
		)
		p.ExpireAt(ctx, ek, deadline)
		p.Set(ctx, idKey(out.ID), out.Email, 0)
		p.ExpireAt(ctx, idKey(out.ID), deadline)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	return &out, nil
}

func (r *RedisRepository) FindByEmailAndCode(ctx context.Context, email, code string) (*models.PasswordReset, error) {
	h, err := r.rdb.HGetAll(ctx, emailKey(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(h) == 0 || h["otp"] != code {
		return nil, common.ErrorNotFound
	}
	return decodeRecord(h)
}

func (r *RedisRepository) DeleteByID(ctx context.Context, id int64) error {
	email, err := r.rdb.Get(ctx, idKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	keys := []string{idKey(id)}
	// Only drop the email hash if it still belongs to this id.
	current, err := r.rdb.HGet(ctx, emailKey(email), "id").Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis error: %w", err)
	}
	if current == strconv.FormatInt(id, 10) {
		keys = append(keys, emailKey(email))
	}
	if err := r.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

// DeleteExpired is a no-op: key TTLs already bound storage.
func (r *RedisRepository) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func decodeRecord(h map[string]string) (*models.PasswordReset, error) {
	id, err := strconv.ParseInt(h["id"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis record id: %w", err)
	}
	exp, err := strconv.ParseInt(h["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis record expires_at: %w", err)
	}
	created, err := strconv.ParseInt(h["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis record created_at: %w", err)
	}
	return &models.PasswordReset{
		ID:        id,
		Email:     h["email"],
		OTP:       h["otp"],
		ExpiresAt: time.Unix(0, exp),
		CreatedAt: time.Unix(0, created),
	}, nil
}
