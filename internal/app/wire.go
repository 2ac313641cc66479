package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/quantagent/internal/broker/oanda"
	"github.com/alanyoungcy/quantagent/internal/broker/paper"
	"github.com/alanyoungcy/quantagent/internal/broker/projectx"
	ckptredis "github.com/alanyoungcy/quantagent/internal/checkpoint/redis"
	"github.com/alanyoungcy/quantagent/internal/config"
	"github.com/alanyoungcy/quantagent/internal/decider"
	"github.com/alanyoungcy/quantagent/internal/domain"
	"github.com/alanyoungcy/quantagent/internal/feed"
	"github.com/alanyoungcy/quantagent/internal/notify"
	"github.com/alanyoungcy/quantagent/internal/sink/questdb"
	"github.com/alanyoungcy/quantagent/internal/store/postgres"
)

// BrokerAdapter bundles one broker's transport stream with the facade that
// serves orders, portfolio state, and bar history. In paper mode Exec is the
// simulated account; Live always points at the real adapter.
type BrokerAdapter struct {
	Stream  domain.MarketStream
	Live    domain.Broker
	Exec    domain.Broker
	Symbols []string
}

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	TickWriter  domain.TickWriter
	Bars        domain.BarReader
	Bridge      *feed.Bridge
	Adapters    map[string]*BrokerAdapter
	Checkpoints domain.CheckpointStore
	Orders      domain.OrderStore
	Accounts    domain.AccountStore
	Decider     decider.Decider
	Notifier    *notify.Notifier
	Identities  []domain.WorkflowID
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Adapters: make(map[string]*BrokerAdapter)}

	// --- QuestDB time-series sink ---
	qdb, err := questdb.New(ctx, questdb.ClientConfig{
		Host:      cfg.QuestDB.Host,
		Port:      cfg.QuestDB.Port,
		Database:  cfg.QuestDB.Database,
		User:      cfg.QuestDB.User,
		Password:  cfg.QuestDB.Password,
		MaxConns:  cfg.QuestDB.PoolMaxConns,
		RunSchema: cfg.QuestDB.RunSchema,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: questdb: %w", err)
	}
	closers = append(closers, qdb.Close)
	deps.TickWriter = questdb.NewWriter(qdb)
	deps.Bars = questdb.NewBarStore(qdb, "5m")

	// --- Redis checkpoint store ---
	redisClient, err := ckptredis.New(ctx, ckptredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Checkpoints = ckptredis.NewCheckpointStore(redisClient)

	// --- PostgreSQL order log ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:           cfg.Postgres.DSN,
		Host:          cfg.Postgres.Host,
		Port:          cfg.Postgres.Port,
		Database:      cfg.Postgres.Database,
		User:          cfg.Postgres.User,
		Password:      cfg.Postgres.Password,
		SSLMode:       cfg.Postgres.SSLMode,
		MaxConns:      cfg.Postgres.PoolMaxConns,
		MinConns:      cfg.Postgres.PoolMinConns,
		RunMigrations: cfg.Postgres.RunMigrations,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)
	deps.Orders = postgres.NewOrderStore(pgClient.Pool())
	deps.Accounts = postgres.NewAccountStore(pgClient.Pool())

	// --- Ingestion bridge ---
	deps.Bridge = feed.NewBridge(deps.TickWriter, cfg.Feed.BufferSize, logger)
	deps.Bridge.SetDedupWindow(cfg.Feed.DedupWindow.Duration)

	// --- Workflow identities and per-broker symbol sets ---
	symbolsByBroker := make(map[string][]string)
	for _, id := range cfg.Identities {
		deps.Identities = append(deps.Identities, domain.WorkflowID{
			Broker: id.Broker,
			Symbol: id.Symbol,
		})
		symbolsByBroker[id.Broker] = append(symbolsByBroker[id.Broker], id.Symbol)
	}

	// --- Broker adapters ---
	// In paper mode ticks are teed into the simulated account so market
	// orders have a fill price.
	paperMode := cfg.Mode == "paper"

	if cfg.ProjectX.Enabled {
		name := "projectx"
		handler := deps.Bridge.Attach(name)
		entry := &BrokerAdapter{Symbols: symbolsByBroker[name]}

		var paperBroker *paper.Broker
		onTick := handler
		if paperMode {
			tee := handler
			onTick = func(t domain.Tick) {
				paperBroker.ObserveTick(t)
				tee(t)
			}
		}
		adapter := projectx.New(projectx.Config{
			Name:          name,
			APIURL:        cfg.ProjectX.APIURL,
			MarketHubURL:  cfg.ProjectX.MarketHubURL,
			Username:      cfg.ProjectX.Username,
			APIKey:        cfg.ProjectX.APIKey,
			AccountID:     cfg.ProjectX.AccountID,
			TokenLifetime: cfg.ProjectX.TokenLifetime.Duration,
		}, onTick, logger)
		adapter.Subscribe(entry.Symbols)

		entry.Stream = adapter
		entry.Live = adapter
		entry.Exec = adapter
		if paperMode {
			paperBroker = paper.New(name, cfg.Paper.StartingCash, adapter, logger)
			entry.Exec = paperBroker
		}
		deps.Adapters[name] = entry
	}

	if cfg.Oanda.Enabled {
		name := "oanda"
		handler := deps.Bridge.Attach(name)
		entry := &BrokerAdapter{Symbols: symbolsByBroker[name]}

		var paperBroker *paper.Broker
		onTick := handler
		if paperMode {
			tee := handler
			onTick = func(t domain.Tick) {
				paperBroker.ObserveTick(t)
				tee(t)
			}
		}
		adapter := oanda.New(oanda.Config{
			Name:      name,
			APIURL:    cfg.Oanda.APIURL,
			StreamURL: cfg.Oanda.StreamURL,
			AccountID: cfg.Oanda.AccountID,
			APIKey:    cfg.Oanda.APIKey,
		}, onTick, logger)
		adapter.Subscribe(entry.Symbols)

		entry.Stream = adapter
		entry.Live = adapter
		entry.Exec = adapter
		if paperMode {
			paperBroker = paper.New(name, cfg.Paper.StartingCash, adapter, logger)
			entry.Exec = paperBroker
		}
		deps.Adapters[name] = entry
	}

	if len(deps.Adapters) == 0 {
		cleanup()
		return nil, nil, fmt.Errorf("wire: no broker adapters enabled")
	}

	// --- Decider ---
	dec, err := decider.New(decider.Config{
		Name:     cfg.Decider.Name,
		Endpoint: cfg.Decider.Endpoint,
		APIKey:   cfg.Decider.APIKey,
		Model:    cfg.Decider.Model,
		Timeout:  cfg.Decider.Timeout.Duration,
	}, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: decider: %w", err)
	}
	deps.Decider = dec

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(cfg.Notify.KafkaBrokers) > 0 && cfg.Notify.KafkaTopic != "" {
		kafka, err := notify.NewKafkaSender(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kafka: %w", err)
		}
		closers = append(closers, func() { _ = kafka.Close() })
		senders = append(senders, kafka)
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
