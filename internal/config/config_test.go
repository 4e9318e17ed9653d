package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown mode", func(c *Config) { c.Mode = "turbo" }},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }},
		{"missing postgres host", func(c *Config) { c.Postgres.Host = "" }},
		{"missing redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"zero queue attempts", func(c *Config) { c.Queue.MaxAttempts = 0 }},
		{"bad server port", func(c *Config) { c.Server.Port = 70000 }},
		{"archive without bucket", func(c *Config) {
			c.Archive.Enabled = true
			c.S3.Bucket = ""
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDSNSkipsHostValidation(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Host = ""
	cfg.Postgres.DSN = "postgres://u:p@db:5432/dexrouter"
	assert.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DEXROUTER_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("DEXROUTER_QUEUE_CONCURRENCY", "4")
	t.Setenv("DEXROUTER_QUEUE_BACKOFF_BASE", "500ms")
	t.Setenv("DEXROUTER_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DEXROUTER_MODE", "worker")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Queue.BackoffBase.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "worker", cfg.Mode)

	require.NoError(t, cfg.Validate())
}
