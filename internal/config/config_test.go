package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.Memory())
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.StaleAfter)
	assert.Equal(t, 500*time.Millisecond, cfg.CacheTimeout)
	assert.Equal(t, 3, cfg.StoreRetries)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, 120, cfg.RateLimit)
}

func TestLoad_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORE_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/mm")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("STALE_AFTER", "3m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, time.Minute, cfg.SweepInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)

	level, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)
}

func TestValidate(t *testing.T) {
	valid := Config{
		StoreDriver:   DriverMemory,
		SweepInterval: time.Minute,
		StaleAfter:    2 * time.Minute,
		CacheTTL:      time.Minute,
		StoreRetries:  1,
		LogLevel:      "info",
		GinMode:       "release",
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"postgres without url", func(c *Config) { c.StoreDriver = DriverPostgres }},
		{"unknown driver", func(c *Config) { c.StoreDriver = "mysql" }},
		{"stale window too short", func(c *Config) { c.StaleAfter = 90 * time.Second }},
		{"no retries", func(c *Config) { c.StoreRetries = 0 }},
		{"negative rate limit", func(c *Config) { c.RateLimit = -1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad gin mode", func(c *Config) { c.GinMode = "prod" }},
		{"origin without scheme", func(c *Config) { c.AllowedOrigins = []string{"game.example"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
