package projectx

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantagent/internal/broker"
	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Config holds the ProjectX gateway endpoints and credentials.
type Config struct {
	Name          string // broker name tag on ticks, e.g. "projectx"
	APIURL        string
	MarketHubURL  string
	Username      string
	APIKey        string
	AccountID     int64
	TokenLifetime time.Duration
}

// Adapter is the ProjectX transport adapter plus broker facade. The market
// hub connection runs in Run with reconnect/backoff; the REST side serves
// orders, portfolio, and bar history.
type Adapter struct {
	cfg    Config
	auth   *AuthSession
	rest   *restClient
	onTick domain.TickHandler
	logger *slog.Logger

	mu      sync.Mutex
	symbols []string
}

// New creates an Adapter delivering ticks to onTick.
func New(cfg Config, onTick domain.TickHandler, logger *slog.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "projectx"
	}
	log := logger.With(slog.String("component", "projectx_adapter"))
	auth := NewAuthSession(cfg.APIURL, cfg.Username, cfg.APIKey, cfg.TokenLifetime, logger)
	return &Adapter{
		cfg:    cfg,
		auth:   auth,
		rest:   newRESTClient(auth, cfg.AccountID),
		onTick: onTick,
		logger: log,
	}
}

// Name implements domain.Broker.
func (a *Adapter) Name() string { return a.cfg.Name }

// Subscribe sets the symbol set. Safe to call before or during Run; a live
// connection picks up additions on the next reconnect.
func (a *Adapter) Subscribe(symbols []string) {
	a.mu.Lock()
	a.symbols = append([]string(nil), symbols...)
	a.mu.Unlock()
}

// Run authenticates, starts the token refresh loop, and keeps one market hub
// connection alive until ctx is cancelled. Transport errors reconnect with
// exponential backoff and resubscribe; domain.ErrAuth aborts the adapter.
func (a *Adapter) Run(ctx context.Context) error {
	if err := a.auth.Login(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.auth.Run(ctx) })
	g.Go(func() error { return a.streamLoop(ctx) })
	return g.Wait()
}

func (a *Adapter) streamLoop(ctx context.Context) error {
	bo := broker.NewBackoff(2*time.Second, 60*time.Second)
	for {
		err := a.runConnection(ctx, bo)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrAuth) {
			return err
		}
		a.logger.Warn("market hub disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		if err := bo.Sleep(ctx); err != nil {
			return err
		}
	}
}

// runConnection dials, resubscribes the current symbol set, and pumps quotes
// until the connection drops.
func (a *Adapter) runConnection(ctx context.Context, bo *broker.Backoff) error {
	hub, err := dialHub(ctx, a.cfg.MarketHubURL, a.auth.Token(), a.logger)
	if err != nil {
		return err
	}
	defer hub.close()

	a.mu.Lock()
	symbols := append([]string(nil), a.symbols...)
	a.mu.Unlock()
	for _, sym := range symbols {
		if err := hub.subscribeQuotes(sym); err != nil {
			return err
		}
	}
	bo.Reset()
	a.logger.Info("market hub connected", slog.Int("symbols", len(symbols)))

	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-t.C:
				if err := hub.ping(); err != nil {
					return
				}
			}
		}
	}()

	return hub.readQuotes(ctx, func(contractID string, q gatewayQuote) {
		symbol := q.Symbol
		if symbol == "" {
			symbol = contractID
		}
		ts := time.Now()
		if q.Timestamp != "" {
			if t, err := time.Parse(time.RFC3339Nano, q.Timestamp); err == nil {
				ts = t
			}
		}
		a.onTick(domain.Tick{
			Broker:     a.cfg.Name,
			Symbol:     symbol,
			Timestamp:  ts,
			Bid:        q.BestBid,
			Ask:        q.BestAsk,
			Last:       q.LastPrice,
			Volume:     q.Volume,
			ReceivedAt: time.Now(),
		})
	})
}

// PlaceOrder implements domain.Broker.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.BrokerOrderResult, error) {
	return a.rest.placeOrder(ctx, req)
}

// Portfolio implements domain.Broker.
func (a *Adapter) Portfolio(ctx context.Context) (domain.PortfolioState, error) {
	return a.rest.portfolio(ctx)
}

// RecentBars implements domain.Broker.
func (a *Adapter) RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error) {
	return a.rest.recentBars(ctx, symbol, lookback)
}

// Compile-time interface checks.
var (
	_ domain.MarketStream = (*Adapter)(nil)
	_ domain.Broker       = (*Adapter)(nil)
)
