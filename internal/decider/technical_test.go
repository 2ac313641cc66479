package decider

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

func technicalSnapshot(signals map[string]float64) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		Symbol:     "EUR_USD",
		Signals:    signals,
		Sufficient: true,
		Bars:       make([]domain.Bar, 60),
	}
}

func decide(t *testing.T, snap domain.MarketSnapshot) domain.Decision {
	t.Helper()
	dec := NewTechnical(slog.New(slog.NewTextHandler(io.Discard, nil)))
	out, err := dec.Decide(context.Background(), snap, domain.PortfolioState{Equity: 100_000})
	require.NoError(t, err)
	require.NoError(t, out.Validate())
	return out
}

func TestTechnicalBullishAlignment(t *testing.T) {
	// Oversold RSI in an uptrend plus a positive MACD histogram: two bullish
	// signals, no bearish ones.
	out := decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"rsi_14":         35,
		"sma_20":         98,
		"macd_histogram": 0.4,
	}))

	assert.Equal(t, domain.ActionBuy, out.Action)
	assert.InDelta(t, 0.70, out.Confidence, 1e-9)
	assert.Equal(t, 100.0, out.TargetPrice)
	assert.InDelta(t, 98.0, out.StopLoss, 1e-9)
	assert.InDelta(t, 103.0, out.TakeProfit, 1e-9)
	assert.Equal(t, 0.05, out.SizeFraction)
}

func TestTechnicalThreeSignalsRaiseConfidence(t *testing.T) {
	out := decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"rsi_14":         35,
		"sma_20":         98,
		"macd_histogram": 0.4,
		"bb_lower":       100.5,
		"bb_upper":       110,
	}))

	assert.Equal(t, domain.ActionBuy, out.Action)
	assert.InDelta(t, 0.85, out.Confidence, 1e-9)
}

func TestTechnicalBearishAlignment(t *testing.T) {
	out := decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"rsi_14":         72,
		"sma_20":         104,
		"macd_histogram": -0.3,
	}))

	assert.Equal(t, domain.ActionSell, out.Action)
	assert.InDelta(t, 0.70, out.Confidence, 1e-9)
	assert.InDelta(t, 102.0, out.StopLoss, 1e-9)
	assert.InDelta(t, 97.0, out.TakeProfit, 1e-9)
}

func TestTechnicalSingleSignalHolds(t *testing.T) {
	// One bullish signal is deliberately below the actionable threshold.
	out := decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"macd_histogram": 0.4,
	}))

	assert.Equal(t, domain.ActionHold, out.Action)
	assert.InDelta(t, 0.40, out.Confidence, 1e-9)
	assert.Zero(t, out.SizeFraction)
}

func TestTechnicalConflictingSignalsHold(t *testing.T) {
	// Bullish band touch against a bearish MACD plus overbought RSI: bearish
	// wins 2-1 and the decision is SELL.
	out := decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"rsi_14":         72,
		"sma_20":         104,
		"macd_histogram": -0.3,
		"bb_lower":       100.5,
		"bb_upper":       110,
	}))
	assert.Equal(t, domain.ActionSell, out.Action)

	out = decide(t, technicalSnapshot(map[string]float64{
		"current_price":  100,
		"rsi_14":         35,
		"sma_20":         98,
		"macd_histogram": -0.3,
	}))
	assert.Equal(t, domain.ActionHold, out.Action, "one bullish against one bearish must not trade")
}

func TestTechnicalInsufficientData(t *testing.T) {
	snap := domain.MarketSnapshot{
		Symbol:     "EUR_USD",
		Signals:    map[string]float64{},
		Sufficient: false,
	}
	out := decide(t, snap)

	assert.Equal(t, domain.ActionHold, out.Action)
	assert.Equal(t, "insufficient market data", out.Reasoning)
}

func TestTechnicalMissingPriceHolds(t *testing.T) {
	out := decide(t, technicalSnapshot(map[string]float64{
		"rsi_14":         35,
		"macd_histogram": 0.4,
	}))
	assert.Equal(t, domain.ActionHold, out.Action)
}
