package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies DEXROUTER_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known DEXROUTER_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "DEXROUTER_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "DEXROUTER_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "DEXROUTER_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "DEXROUTER_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "DEXROUTER_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "DEXROUTER_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "DEXROUTER_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "DEXROUTER_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "DEXROUTER_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "DEXROUTER_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "DEXROUTER_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "DEXROUTER_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "DEXROUTER_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "DEXROUTER_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "DEXROUTER_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "DEXROUTER_REDIS_TLS_ENABLED")

	// ── Queue ──
	setStr(&cfg.Queue.Name, "DEXROUTER_QUEUE_NAME")
	setInt(&cfg.Queue.Concurrency, "DEXROUTER_QUEUE_CONCURRENCY")
	setInt(&cfg.Queue.MaxAttempts, "DEXROUTER_QUEUE_MAX_ATTEMPTS")
	setDuration(&cfg.Queue.BackoffBase, "DEXROUTER_QUEUE_BACKOFF_BASE")
	setDuration(&cfg.Queue.PromoteInterval, "DEXROUTER_QUEUE_PROMOTE_INTERVAL")

	// ── Router ──
	setInt(&cfg.Router.MinQuotes, "DEXROUTER_ROUTER_MIN_QUOTES")
	setDuration(&cfg.Router.OrderCacheTTL, "DEXROUTER_ROUTER_ORDER_CACHE_TTL")
	setInt(&cfg.Router.RateLimit, "DEXROUTER_ROUTER_RATE_LIMIT")
	setDuration(&cfg.Router.RateLimitWindow, "DEXROUTER_ROUTER_RATE_LIMIT_WINDOW")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "DEXROUTER_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "DEXROUTER_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "DEXROUTER_SERVER_CORS_ORIGINS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "DEXROUTER_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "DEXROUTER_S3_REGION")
	setStr(&cfg.S3.Bucket, "DEXROUTER_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "DEXROUTER_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "DEXROUTER_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "DEXROUTER_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "DEXROUTER_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "DEXROUTER_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "DEXROUTER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "DEXROUTER_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "DEXROUTER_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "DEXROUTER_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "DEXROUTER_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "DEXROUTER_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "DEXROUTER_MODE")
	setStr(&cfg.LogLevel, "DEXROUTER_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
