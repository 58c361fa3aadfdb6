package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("DAILY_CREDIT_LIMIT", "7")
	t.Setenv("HTTP_READ_TIMEOUT", "3s")
	unsetEnv(t, "HTTP_ADDR")
	unsetEnv(t, "REDIS_ADDR")
	unsetEnv(t, "TRUST_FORWARDED_FOR")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	eng := cfg.Engine()
	assert.Equal(t, 7, eng.Credits.DailyLimit)
	assert.False(t, eng.Network.TrustForwardedFor)
	require.NoError(t, eng.Validate())
}

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestLoadRequiresSecret(t *testing.T) {
	unsetEnv(t, "JWT_SECRET")
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	unsetEnv(t, "JWT_SECRET")
	unsetEnv(t, "HTTP_ADDR")
	path := filepath.Join(t.TempDir(), "docgate.yaml")
	body := "auth:\n  jwt_secret: 0123456789abcdef0123456789abcdef\nhttp_server:\n  address: \":9090\"\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", cfg.JWTSecret)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
