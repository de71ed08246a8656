package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Run("overrides only variables that are set", func(t *testing.T) {
		t.Setenv("GOPHAUTH_JWT_SECRET", "env-secret")
		t.Setenv("GOPHAUTH_JWT_EXPIRES_IN", "20m")
		t.Setenv("GOPHAUTH_REDIS_DB", "3")
		t.Setenv("GOPHAUTH_MAIL_PROVIDER", "mailgun")

		cfg := &Config{}
		cfg.LoadDefaults()
		parseEnv(cfg)

		assert.Equal(t, "env-secret", cfg.AccessTokenSecret)
		assert.Equal(t, 20*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3, cfg.RedisDB)
		assert.Equal(t, MailProviderMailgun, cfg.MailProvider)
		assert.Equal(t, "avatars", cfg.S3Bucket)
	})

	t.Run("malformed duration panics", func(t *testing.T) {
		t.Setenv("GOPHAUTH_JWT_REFRESH_EXPIRES_IN", "a week")
		require.Panics(t, func() { parseEnv(&Config{}) })
	})
}
