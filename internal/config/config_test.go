package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_CONN_STR", "")
	t.Setenv("DB_HOST", "db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "host=db port=5432 user=postgres password=postgres dbname=wealthflow sslmode=disable", cfg.DBConnStr)
	assert.Equal(t, ":8080", cfg.GRPCPort)
	assert.Equal(t, 5*time.Minute, cfg.Script.CacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.Script.CacheRetention)
	assert.Equal(t, 5*time.Second, cfg.Script.Timeout)
	assert.Equal(t, int64(5<<20), cfg.Script.FetchMaxBody)
	assert.Equal(t, "0 0 6 * * *", cfg.Contribution.Schedule)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "/tmp/test.db")
	t.Setenv("SCRIPT_CACHE_TTL", "90s")
	t.Setenv("SCRIPT_TIMEOUT", "2s")
	t.Setenv("SCRIPT_FETCH_RATE", "0.5")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("HTTP_PORT", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "/tmp/test.db", cfg.SQLitePath)
	assert.Equal(t, 90*time.Second, cfg.Script.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Script.Timeout)
	assert.Equal(t, 0.5, cfg.Script.FetchRate)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, 8081, cfg.HTTPPort) // invalid value falls back to default
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DBDriver: "postgres",
			APIToken: "token",
			Script: ScriptConfig{
				CacheTTL:       time.Minute,
				CacheRetention: time.Hour,
				Timeout:        time.Second,
				FetchRate:      1,
				FetchBurst:     1,
			},
		}
	}

	assert.NoError(t, base().Validate())

	cfg := base()
	cfg.DBDriver = "mysql"
	assert.ErrorContains(t, cfg.Validate(), "unsupported DB_DRIVER")

	cfg = base()
	cfg.Script.CacheRetention = time.Second
	assert.ErrorContains(t, cfg.Validate(), "SCRIPT_CACHE_RETENTION")

	cfg = base()
	cfg.Script.Timeout = 0
	assert.ErrorContains(t, cfg.Validate(), "SCRIPT_TIMEOUT")
}
