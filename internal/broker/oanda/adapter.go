package oanda

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/quantagent/internal/broker"
	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Config holds the OANDA v3 endpoints and credentials. APIURL and StreamURL
// differ per environment (fxtrade vs fxpractice).
type Config struct {
	Name      string // broker name tag on ticks, e.g. "oanda"
	APIURL    string
	StreamURL string
	AccountID string
	APIKey    string
}

// Adapter is the OANDA transport adapter plus broker facade. The pricing
// stream runs in Run with reconnect/backoff; the REST side serves orders,
// account state, and candle history.
type Adapter struct {
	cfg        Config
	rest       *resty.Client
	streamHTTP *resty.Client
	onTick     domain.TickHandler
	logger     *slog.Logger

	mu      sync.Mutex
	symbols []string
}

// New creates an Adapter delivering ticks to onTick.
func New(cfg Config, onTick domain.TickHandler, logger *slog.Logger) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "oanda"
	}
	return &Adapter{
		cfg: cfg,
		rest: resty.New().
			SetBaseURL(cfg.APIURL).
			SetAuthToken(cfg.APIKey).
			SetTimeout(15 * time.Second),
		streamHTTP: newStreamClient(cfg.StreamURL, cfg.APIKey),
		onTick:     onTick,
		logger:     logger.With(slog.String("component", "oanda_adapter")),
	}
}

// Name implements domain.Broker.
func (a *Adapter) Name() string { return a.cfg.Name }

// Subscribe sets the instrument set. Safe to call before or during Run; a
// live stream picks up additions on the next reconnect.
func (a *Adapter) Subscribe(symbols []string) {
	a.mu.Lock()
	a.symbols = append([]string(nil), symbols...)
	a.mu.Unlock()
}

// Run keeps one pricing stream alive until ctx is cancelled. Transport errors
// reconnect with exponential backoff; domain.ErrAuth aborts the adapter since
// the bearer credential is static and a retry cannot recover it.
func (a *Adapter) Run(ctx context.Context) error {
	bo := broker.NewBackoff(time.Second, 60*time.Second)
	for {
		a.mu.Lock()
		symbols := append([]string(nil), a.symbols...)
		a.mu.Unlock()

		var err error
		if len(symbols) == 0 {
			err = errors.New("oanda: no instruments subscribed")
		} else {
			connected := time.Now()
			err = a.stream(ctx, symbols)
			if time.Since(connected) > time.Minute {
				bo.Reset()
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, domain.ErrAuth) {
			return err
		}
		a.logger.Warn("pricing stream disconnected, reconnecting",
			slog.String("error", err.Error()),
		)
		if err := bo.Sleep(ctx); err != nil {
			return err
		}
	}
}

// Compile-time interface checks.
var (
	_ domain.MarketStream = (*Adapter)(nil)
	_ domain.Broker       = (*Adapter)(nil)
)
