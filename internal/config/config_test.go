package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresPostgresAndSecret(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("JWT_SECRET", "s3cret")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")

	t.Setenv("POSTGRES_DSN", "postgres://localhost/meditime")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadDefaultsAndRedisURL(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/meditime")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("REDIS_URL", "redis://bob:pw@cache.internal:6380")
	t.Setenv("LOCK_TTL", "3")
	t.Setenv("WORKER_INTERVAL", "90s")
	t.Setenv("DEFAULT_APPOINTMENT_MINUTES", "45")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr)
	assert.Equal(t, "bob", cfg.RedisUsername)
	assert.Equal(t, "pw", cfg.RedisPassword)
	assert.Equal(t, 3*time.Second, cfg.LockTTL)
	assert.Equal(t, 90*time.Second, cfg.WorkerInterval)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 45, cfg.DefaultDuration)
}

func TestLoadClientDerivesWebsocketURL(t *testing.T) {
	t.Setenv("MEDITIME_API_URL", "https://meditime.example.com/api/")
	t.Setenv("MEDITIME_WS_URL", "")
	t.Setenv("MEDITIME_TOKEN", "tok")

	cfg := LoadClient()
	assert.Equal(t, "https://meditime.example.com/api", cfg.APIBaseURL)
	assert.Equal(t, "wss://meditime.example.com/ws", cfg.WSBaseURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
}

func TestDeriveWSURLPlainHTTP(t *testing.T) {
	assert.Equal(t, "ws://localhost:8080/ws", deriveWSURL("http://localhost:8080/api"))
}
