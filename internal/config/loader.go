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
// built-in defaults, applies KLEOS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KLEOS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "KLEOS_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "KLEOS_POSTGRES_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "KLEOS_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "KLEOS_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "KLEOS_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "KLEOS_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "KLEOS_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "KLEOS_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "KLEOS_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "KLEOS_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "KLEOS_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "KLEOS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "KLEOS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "KLEOS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "KLEOS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "KLEOS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "KLEOS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "KLEOS_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "KLEOS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "KLEOS_S3_REGION")
	setStr(&cfg.S3.Bucket, "KLEOS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "KLEOS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "KLEOS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "KLEOS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "KLEOS_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "KLEOS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "KLEOS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "KLEOS_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "KLEOS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "KLEOS_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "KLEOS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "KLEOS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "KLEOS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "KLEOS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "KLEOS_LOG_LEVEL")
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
