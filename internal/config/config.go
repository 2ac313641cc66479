// Package config defines the top-level configuration for the trading agent
// and provides validation helpers.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by QAGENT_* environment variables.
type Config struct {
	Identities []IdentityConfig `toml:"identities" validate:"min=1,dive"`
	ProjectX   ProjectXConfig   `toml:"projectx"`
	Oanda      OandaConfig      `toml:"oanda"`
	QuestDB    QuestDBConfig    `toml:"questdb"`
	Redis      RedisConfig      `toml:"redis"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Decider    DeciderConfig    `toml:"decider"`
	Workflow   WorkflowConfig   `toml:"workflow"`
	Feed       FeedConfig       `toml:"feed"`
	Paper      PaperConfig      `toml:"paper"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode" validate:"oneof=trade paper"`
	LogLevel   string           `toml:"log_level" validate:"oneof=debug info warn error"`
}

// IdentityConfig names one workflow identity: a (broker, symbol) pair that
// gets its own decision loop and checkpoint.
type IdentityConfig struct {
	Broker string `toml:"broker" validate:"oneof=projectx oanda"`
	Symbol string `toml:"symbol" validate:"required"`
}

// ProjectXConfig holds the ProjectX gateway endpoints and credentials.
type ProjectXConfig struct {
	Enabled       bool     `toml:"enabled"`
	APIURL        string   `toml:"api_url"`
	MarketHubURL  string   `toml:"market_hub_url"`
	Username      string   `toml:"username"`
	APIKey        string   `toml:"api_key"`
	AccountID     int64    `toml:"account_id"`
	TokenLifetime duration `toml:"token_lifetime"`
}

// OandaConfig holds the OANDA v3 endpoints and credentials.
type OandaConfig struct {
	Enabled   bool   `toml:"enabled"`
	APIURL    string `toml:"api_url"`
	StreamURL string `toml:"stream_url"`
	AccountID string `toml:"account_id"`
	APIKey    string `toml:"api_key"`
}

// QuestDBConfig holds the time-series sink connection parameters. QuestDB
// speaks the Postgres wire protocol on its own port.
type QuestDBConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port" validate:"gt=0"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	RunSchema    bool   `toml:"run_schema"`
}

// RedisConfig holds the checkpoint store connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr" validate:"required"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds the order log connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// DeciderConfig selects and parameterises the decision collaborator.
type DeciderConfig struct {
	Name     string   `toml:"name" validate:"oneof=remote technical"`
	Endpoint string   `toml:"endpoint" validate:"omitempty,url"`
	APIKey   string   `toml:"api_key"`
	Model    string   `toml:"model"`
	Timeout  duration `toml:"timeout"`
}

// WorkflowConfig holds the cycle cadence and stage deadline.
type WorkflowConfig struct {
	Interval     duration `toml:"interval"`
	StageTimeout duration `toml:"stage_timeout"`
}

// FeedConfig holds the ingestion bridge parameters.
type FeedConfig struct {
	BufferSize  int      `toml:"buffer_size" validate:"gt=0"`
	DedupWindow duration `toml:"dedup_window"`
}

// PaperConfig holds the simulated account parameters for paper mode.
type PaperConfig struct {
	StartingCash float64 `toml:"starting_cash" validate:"gte=0"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	KafkaBrokers      []string `toml:"kafka_brokers"`
	KafkaTopic        string   `toml:"kafka_topic"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so TOML can decode strings like "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for the TOML decoder.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		ProjectX: ProjectXConfig{
			APIURL:        "https://api.topstepx.com",
			MarketHubURL:  "wss://rtc.topstepx.com/hubs/market",
			TokenLifetime: duration{24 * time.Hour},
		},
		Oanda: OandaConfig{
			APIURL:    "https://api-fxpractice.oanda.com",
			StreamURL: "https://stream-fxpractice.oanda.com",
		},
		QuestDB: QuestDBConfig{
			Host:         "localhost",
			Port:         8812,
			Database:     "qdb",
			User:         "admin",
			Password:     "quest",
			PoolMaxConns: 8,
			RunSchema:    true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "quantagent",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Decider: DeciderConfig{
			Name:    "technical",
			Timeout: duration{45 * time.Second},
		},
		Workflow: WorkflowConfig{
			Interval:     duration{5 * time.Minute},
			StageTimeout: duration{60 * time.Second},
		},
		Feed: FeedConfig{
			BufferSize:  1024,
			DedupWindow: duration{5 * time.Minute},
		},
		Paper: PaperConfig{
			StartingCash: 100_000,
		},
		Notify: NotifyConfig{
			Events: []string{"cycle_done", "cycle_failed"},
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// Validate checks Config for invalid or missing values and returns a combined
// error describing every problem found. Structural rules run through the
// validator tags; cross-field rules are checked explicitly after.
func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed %q rule", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	needProjectX, needOanda := false, false
	for _, id := range c.Identities {
		switch id.Broker {
		case "projectx":
			needProjectX = true
		case "oanda":
			needOanda = true
		}
	}
	if needProjectX && !c.ProjectX.Enabled {
		errs = append(errs, "projectx: referenced by an identity but not enabled")
	}
	if needOanda && !c.Oanda.Enabled {
		errs = append(errs, "oanda: referenced by an identity but not enabled")
	}

	if c.Mode == "trade" {
		if c.ProjectX.Enabled && (c.ProjectX.Username == "" || c.ProjectX.APIKey == "" || c.ProjectX.AccountID == 0) {
			errs = append(errs, "projectx: username, api_key, and account_id are required in trade mode")
		}
		if c.Oanda.Enabled && (c.Oanda.AccountID == "" || c.Oanda.APIKey == "") {
			errs = append(errs, "oanda: account_id and api_key are required in trade mode")
		}
	}
	if c.Decider.Name == "remote" && c.Decider.Endpoint == "" {
		errs = append(errs, "decider: endpoint is required when name is \"remote\"")
	}
	if c.Workflow.Interval.Duration <= 0 {
		errs = append(errs, "workflow: interval must be positive")
	}
	if c.Workflow.StageTimeout.Duration <= 0 {
		errs = append(errs, "workflow: stage_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
