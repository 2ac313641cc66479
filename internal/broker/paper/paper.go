// Package paper implements an in-memory broker facade for dry runs. Orders
// fill instantly at the caller's limit price (or the last seen tick price for
// market orders); account state is simulated from an initial cash balance.
// Bar history is delegated to a real broker or the sink, since the paper
// broker observes no market of its own.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// BarSource supplies historical bars on behalf of the paper broker.
type BarSource interface {
	RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error)
}

// Broker is the simulated account. All state lives in memory and is lost on
// restart, which is acceptable for a dry run: the order log still records
// every fill durably.
type Broker struct {
	name   string
	bars   BarSource
	logger *slog.Logger

	mu        sync.Mutex
	cash      float64
	startCash float64
	positions map[string]*position
	lastPrice map[string]float64
}

type position struct {
	qty      float64
	avgPrice float64
}

// New creates a paper broker with the given starting cash. bars may be nil,
// in which case RecentBars reports no data and the snapshot builder must rely
// on the sink alone.
func New(name string, startingCash float64, bars BarSource, logger *slog.Logger) *Broker {
	if name == "" {
		name = "paper"
	}
	if startingCash <= 0 {
		startingCash = 100_000
	}
	return &Broker{
		name:      name,
		bars:      bars,
		logger:    logger.With(slog.String("component", "paper_broker")),
		cash:      startingCash,
		startCash: startingCash,
		positions: make(map[string]*position),
		lastPrice: make(map[string]float64),
	}
}

// Name implements domain.Broker.
func (b *Broker) Name() string { return b.name }

// ObserveTick records the latest price per symbol so market orders have a
// fill price. Safe for concurrent use; suitable as a tee off the tick path.
func (b *Broker) ObserveTick(t domain.Tick) {
	price := t.Last
	if price <= 0 {
		price = (t.Bid + t.Ask) / 2
	}
	if price <= 0 {
		return
	}
	b.mu.Lock()
	b.lastPrice[t.Symbol] = price
	b.mu.Unlock()
}

// PlaceOrder implements domain.Broker: an immediate full fill with no
// slippage model. A sell larger than the open position is rejected rather
// than opening a short.
func (b *Broker) PlaceOrder(_ context.Context, req domain.OrderRequest) (domain.BrokerOrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := req.LimitPrice
	if price <= 0 {
		price = b.lastPrice[req.Symbol]
	}
	if price <= 0 {
		return domain.BrokerOrderResult{}, fmt.Errorf("paper: no price observed for %s: %w", req.Symbol, domain.ErrExecution)
	}

	cost := req.Qty * price
	switch req.Side {
	case domain.ActionBuy:
		if cost > b.cash {
			return domain.BrokerOrderResult{
				Status:  string(domain.OrderStatusRejected),
				Message: "insufficient cash",
			}, nil
		}
		b.cash -= cost
		pos := b.positions[req.Symbol]
		if pos == nil {
			pos = &position{}
			b.positions[req.Symbol] = pos
		}
		total := pos.qty*pos.avgPrice + cost
		pos.qty += req.Qty
		pos.avgPrice = total / pos.qty
	case domain.ActionSell:
		pos := b.positions[req.Symbol]
		if pos == nil || pos.qty < req.Qty {
			return domain.BrokerOrderResult{
				Status:  string(domain.OrderStatusRejected),
				Message: "position too small",
			}, nil
		}
		b.cash += cost
		pos.qty -= req.Qty
		if pos.qty == 0 {
			delete(b.positions, req.Symbol)
		}
	default:
		return domain.BrokerOrderResult{}, fmt.Errorf("paper: side %q not tradable: %w", req.Side, domain.ErrExecution)
	}

	id := uuid.NewString()
	b.logger.Info("paper fill",
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.Float64("qty", req.Qty),
		slog.Float64("price", price),
	)
	return domain.BrokerOrderResult{OrderID: id, Status: string(domain.OrderStatusSubmitted)}, nil
}

// Portfolio implements domain.Broker: positions are marked at the last
// observed price, falling back to the entry price when no tick has arrived.
func (b *Broker) Portfolio(_ context.Context) (domain.PortfolioState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	positions := make([]domain.Position, 0, len(b.positions))
	for sym, pos := range b.positions {
		mark := b.lastPrice[sym]
		if mark <= 0 {
			mark = pos.avgPrice
		}
		value := pos.qty * mark
		equity += value
		positions = append(positions, domain.Position{
			Symbol:       sym,
			Qty:          pos.qty,
			MarketValue:  value,
			UnrealizedPL: (mark - pos.avgPrice) * pos.qty,
		})
	}

	pnl := equity - b.startCash
	pnlPct := 0.0
	if b.startCash > 0 {
		pnlPct = pnl / b.startCash
	}
	drawdown := 0.0
	if pnlPct < 0 {
		drawdown = -pnlPct
	}
	return domain.PortfolioState{
		Cash:        b.cash,
		Equity:      equity,
		BuyingPower: b.cash,
		DailyPnL:    pnl,
		DailyPnLPct: pnlPct,
		DrawdownPct: drawdown,
		Positions:   positions,
		FetchedAt:   time.Now(),
	}, nil
}

// RecentBars implements domain.Broker by delegating to the configured source.
func (b *Broker) RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error) {
	if b.bars == nil {
		return nil, nil
	}
	return b.bars.RecentBars(ctx, symbol, lookback)
}

var _ domain.Broker = (*Broker)(nil)
