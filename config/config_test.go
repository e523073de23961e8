package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("CARELINK_JWT_SECRET", "test-secret")

	cfg, err := load(newViper())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiry)
	assert.Equal(t, 90, cfg.Retention.NotificationDays)
	assert.Equal(t, "5 0 * * *", cfg.Retention.Schedule)
	assert.Equal(t, int64(10<<20), cfg.Storage.MaxUploadSize)
	assert.Equal(t, "notifications", cfg.Redis.Channel)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.False(t, cfg.Live.RequireToken)
}

func TestSecretsOverrideFile(t *testing.T) {
	t.Setenv("CARELINK_JWT_SECRET", "from-env")
	t.Setenv("CARELINK_DB_PASSWORD", "pw")

	v := newViper()
	v.Set("jwt.secret", "from-file")
	v.Set("database.password", "file-pw")

	cfg, err := load(v)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.JWT.Secret)
	assert.Equal(t, "pw", cfg.Database.Password)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	t.Setenv("CARELINK_JWT_SECRET", "")

	_, err := load(newViper())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret is required")
}

func TestConversions(t *testing.T) {
	t.Setenv("CARELINK_JWT_SECRET", "s")
	cfg, err := load(newViper())
	require.NoError(t, err)

	wc := cfg.Outbox.ToWorkerConfig()
	assert.Equal(t, 50, wc.BatchSize)
	assert.Equal(t, time.Minute, wc.Lease)

	bc := cfg.Redis.ToBrokerConfig()
	assert.Equal(t, "redis://localhost:6379/0", bc.URL)
	assert.Equal(t, 10, bc.PoolSize)
}
