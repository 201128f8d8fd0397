package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromEnvFile(t *testing.T) {
	for _, k := range []string{"JWT_SECRET", "DB_DRIVER", "DB_DSN", "APP_DB_DSN", "RATE_LIMIT_LOGIN", "CACHE_TTL", "LOGIN_PATHS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("JWT_SECRET=abc\nDB_DRIVER=sqlite\nDB_DSN=file::memory:\nRATE_LIMIT_LOGIN=7\nCACHE_TTL=90s\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.JWTSecret)
	assert.Equal(t, 7, cfg.LoginLimit)
	assert.Equal(t, 300, cfg.AdminLimit)
	assert.Equal(t, 90*time.Second, cfg.CacheTTL)
	assert.Equal(t, 15*time.Minute, cfg.RateWindow)
	assert.Equal(t, "file::memory:", cfg.AppDBDSN)
	assert.Equal(t, []string{"/api/auth/login", "/api/login", "/gateway/api/auth/login"}, SplitList(cfg.LoginPaths))
	assert.Equal(t, "@every 15m", cfg.CalendarMaintenanceSchedule)
}

func TestValidate(t *testing.T) {
	cfg := Config{JWTSecret: "x", DBDriver: "mysql", DBDSN: "dsn"}
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.JWTSecret = ""
	assert.ErrorContains(t, bad.Validate(), "JWT_SECRET")

	bad = cfg
	bad.DBDriver = "oracle"
	assert.ErrorContains(t, bad.Validate(), "oracle")

	bad = cfg
	bad.DBDSN = ""
	assert.ErrorContains(t, bad.Validate(), "DB_DSN")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitList(" a, ,b ,"))
	assert.Nil(t, SplitList(""))
}
