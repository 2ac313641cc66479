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
// built-in defaults, applies QAGENT_* environment variable overrides, and
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

// applyEnvOverrides reads well-known QAGENT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── ProjectX ──
	setBool(&cfg.ProjectX.Enabled, "QAGENT_PROJECTX_ENABLED")
	setStr(&cfg.ProjectX.APIURL, "QAGENT_PROJECTX_API_URL")
	setStr(&cfg.ProjectX.MarketHubURL, "QAGENT_PROJECTX_MARKET_HUB_URL")
	setStr(&cfg.ProjectX.Username, "QAGENT_PROJECTX_USERNAME")
	setStr(&cfg.ProjectX.APIKey, "QAGENT_PROJECTX_API_KEY")
	setInt64(&cfg.ProjectX.AccountID, "QAGENT_PROJECTX_ACCOUNT_ID")
	setDuration(&cfg.ProjectX.TokenLifetime, "QAGENT_PROJECTX_TOKEN_LIFETIME")

	// ── OANDA ──
	setBool(&cfg.Oanda.Enabled, "QAGENT_OANDA_ENABLED")
	setStr(&cfg.Oanda.APIURL, "QAGENT_OANDA_API_URL")
	setStr(&cfg.Oanda.StreamURL, "QAGENT_OANDA_STREAM_URL")
	setStr(&cfg.Oanda.AccountID, "QAGENT_OANDA_ACCOUNT_ID")
	setStr(&cfg.Oanda.APIKey, "QAGENT_OANDA_API_KEY")

	// ── QuestDB ──
	setStr(&cfg.QuestDB.Host, "QAGENT_QUESTDB_HOST")
	setInt(&cfg.QuestDB.Port, "QAGENT_QUESTDB_PORT")
	setStr(&cfg.QuestDB.Database, "QAGENT_QUESTDB_DATABASE")
	setStr(&cfg.QuestDB.User, "QAGENT_QUESTDB_USER")
	setStr(&cfg.QuestDB.Password, "QAGENT_QUESTDB_PASSWORD")
	setInt(&cfg.QuestDB.PoolMaxConns, "QAGENT_QUESTDB_POOL_MAX_CONNS")
	setBool(&cfg.QuestDB.RunSchema, "QAGENT_QUESTDB_RUN_SCHEMA")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "QAGENT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "QAGENT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "QAGENT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "QAGENT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "QAGENT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "QAGENT_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "QAGENT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "QAGENT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "QAGENT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "QAGENT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "QAGENT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "QAGENT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "QAGENT_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "QAGENT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "QAGENT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "QAGENT_POSTGRES_RUN_MIGRATIONS")

	// ── Decider ──
	setStr(&cfg.Decider.Name, "QAGENT_DECIDER_NAME")
	setStr(&cfg.Decider.Endpoint, "QAGENT_DECIDER_ENDPOINT")
	setStr(&cfg.Decider.APIKey, "QAGENT_DECIDER_API_KEY")
	setStr(&cfg.Decider.Model, "QAGENT_DECIDER_MODEL")
	setDuration(&cfg.Decider.Timeout, "QAGENT_DECIDER_TIMEOUT")

	// ── Workflow ──
	setDuration(&cfg.Workflow.Interval, "QAGENT_WORKFLOW_INTERVAL")
	setDuration(&cfg.Workflow.StageTimeout, "QAGENT_WORKFLOW_STAGE_TIMEOUT")

	// ── Feed ──
	setInt(&cfg.Feed.BufferSize, "QAGENT_FEED_BUFFER_SIZE")
	setDuration(&cfg.Feed.DedupWindow, "QAGENT_FEED_DEDUP_WINDOW")

	// ── Paper ──
	setFloat64(&cfg.Paper.StartingCash, "QAGENT_PAPER_STARTING_CASH")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "QAGENT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "QAGENT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "QAGENT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.KafkaBrokers, "QAGENT_NOTIFY_KAFKA_BROKERS")
	setStr(&cfg.Notify.KafkaTopic, "QAGENT_NOTIFY_KAFKA_TOPIC")
	setStringSlice(&cfg.Notify.Events, "QAGENT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "QAGENT_MODE")
	setStr(&cfg.LogLevel, "QAGENT_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
