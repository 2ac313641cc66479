// Package snapshot reconstructs the bounded market view a workflow cycle
// decides on. Building is pull-based: nothing here subscribes to the feed.
package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/alanyoungcy/quantagent/internal/domain"
	"github.com/alanyoungcy/quantagent/internal/indicator"
)

// MinBars is the minimum bar count below which a snapshot is marked
// insufficient and carries no indicator signals.
const MinBars = 60

// DefaultLookback is the aggregation window used when the config does not
// override it.
const DefaultLookback = 24 * time.Hour

// BarFallback fetches historical bars over REST when the sink has too few.
// The broker facade satisfies this via RecentBars.
type BarFallback interface {
	RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error)
}

// Builder assembles MarketSnapshots from the sink with a REST fallback.
type Builder struct {
	bars     domain.BarReader
	fallback BarFallback
	lookback time.Duration
	minBars  int
	logger   *slog.Logger
}

// NewBuilder creates a Builder. fallback may be nil when no REST history
// source is available; lookback <= 0 selects DefaultLookback.
func NewBuilder(bars domain.BarReader, fallback BarFallback, lookback time.Duration, logger *slog.Logger) *Builder {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Builder{
		bars:     bars,
		fallback: fallback,
		lookback: lookback,
		minBars:  MinBars,
		logger:   logger.With(slog.String("component", "snapshot_builder")),
	}
}

// Build queries the sink for bars in the lookback window, falling back to the
// REST history source below the minimum bar count. When both sources come up
// short it returns a snapshot with Sufficient=false and no signals, which the
// caller must treat as "cannot decide" rather than an error. Only
// infrastructure failures on both paths produce a non-nil error.
func (b *Builder) Build(ctx context.Context, symbol string) (domain.MarketSnapshot, error) {
	bars, err := b.bars.Bars(ctx, symbol, b.lookback)
	if err != nil {
		b.logger.Warn("sink bar query failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		bars = nil
	}

	if len(bars) < b.minBars && b.fallback != nil {
		b.logger.Info("insufficient sink bars, using REST fallback",
			slog.String("symbol", symbol),
			slog.Int("bars", len(bars)),
			slog.Int("min", b.minBars),
		)
		fbBars, fbErr := b.fallback.RecentBars(ctx, symbol, b.lookback)
		if fbErr != nil {
			b.logger.Warn("bar history fallback failed",
				slog.String("symbol", symbol),
				slog.String("error", fbErr.Error()),
			)
			if err != nil {
				// Both sources failed outright.
				return domain.MarketSnapshot{}, fbErr
			}
		} else if len(fbBars) > len(bars) {
			bars = fbBars
		}
	}

	snap := domain.MarketSnapshot{
		Symbol:  symbol,
		Bars:    bars,
		Signals: map[string]float64{},
		BuiltAt: time.Now(),
	}
	if n := len(bars); n > 0 {
		snap.BestBid = bars[n-1].Bid
		snap.BestAsk = bars[n-1].Ask
	}

	if len(bars) < b.minBars {
		snap.Sufficient = false
		return snap, nil
	}

	snap.Sufficient = true
	snap.Signals = indicator.ComputeAll(bars)
	return snap, nil
}
