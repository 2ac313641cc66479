package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

func constant(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func ramp(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestSMA(t *testing.T) {
	prices := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 4.0, SMA(prices, 3), 1e-9)
	assert.InDelta(t, 3.0, SMA(prices, 5), 1e-9)
	assert.True(t, math.IsNaN(SMA(prices, 6)))
}

func TestEMAConstantSeries(t *testing.T) {
	assert.InDelta(t, 42.0, EMA(constant(40, 42), EMAFast), 1e-9)
}

func TestEMAHandComputed(t *testing.T) {
	// Seed is mean(2,4,6,8) = 5, k = 2/5, so one step on 10 gives
	// 10*0.4 + 5*0.6 = 7.
	assert.InDelta(t, 7.0, EMA([]float64{2, 4, 6, 8, 10}, 4), 1e-9)
	assert.True(t, math.IsNaN(EMA([]float64{1, 2, 3}, 4)))
}

func TestRSIExtremes(t *testing.T) {
	assert.InDelta(t, 100.0, RSI(ramp(30, 100, 1), RSIPeriod), 1e-9)
	down := RSI(ramp(30, 100, -1), RSIPeriod)
	assert.InDelta(t, 0.0, down, 1e-9)
	assert.True(t, math.IsNaN(RSI(constant(10, 5), RSIPeriod)))
}

func TestRSIMidrange(t *testing.T) {
	// Alternating gains and losses of equal size settle near 50.
	prices := make([]float64, 60)
	prices[0] = 100
	for i := 1; i < len(prices); i++ {
		if i%2 == 0 {
			prices[i] = prices[i-1] + 1
		} else {
			prices[i] = prices[i-1] - 1
		}
	}
	rsi := RSI(prices, RSIPeriod)
	assert.Greater(t, rsi, 35.0)
	assert.Less(t, rsi, 65.0)
}

func TestMACDNeedsHistory(t *testing.T) {
	line, signal, hist := MACD(constant(EMASlow+MACDSignal-1, 10))
	assert.True(t, math.IsNaN(line))
	assert.True(t, math.IsNaN(signal))
	assert.True(t, math.IsNaN(hist))
}

func TestMACDConstantSeriesIsFlat(t *testing.T) {
	line, signal, hist := MACD(constant(60, 10))
	assert.InDelta(t, 0.0, line, 1e-9)
	assert.InDelta(t, 0.0, signal, 1e-9)
	assert.InDelta(t, 0.0, hist, 1e-9)
}

func TestMACDRallyHistogramPositive(t *testing.T) {
	line, _, hist := MACD(ramp(60, 100, 1))
	assert.Greater(t, line, 0.0)
	assert.Greater(t, hist, 0.0)
}

func TestBollingerConstantSeries(t *testing.T) {
	upper, middle, lower := Bollinger(constant(30, 50), BBPeriod, BBStd)
	assert.InDelta(t, 50.0, upper, 1e-9)
	assert.InDelta(t, 50.0, middle, 1e-9)
	assert.InDelta(t, 50.0, lower, 1e-9)
}

func TestBollingerBandsBracketMean(t *testing.T) {
	prices := ramp(30, 100, 1)
	upper, middle, lower := Bollinger(prices, BBPeriod, BBStd)
	assert.Greater(t, upper, middle)
	assert.Less(t, lower, middle)
}

func barsFromCloses(closes []float64) []domain.Bar {
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{Close: c, Bid: c - 0.5, Ask: c + 0.5, Volume: 10}
	}
	return bars
}

func TestComputeAllFullHistory(t *testing.T) {
	signals := ComputeAll(barsFromCloses(ramp(60, 100, 0.5)))

	for _, name := range []string{
		"current_price", "spread", "volume_24h",
		"sma_20", "sma_50", "ema_12", "ema_26", "rsi_14",
		"macd_line", "macd_signal", "macd_histogram",
		"bb_upper", "bb_middle", "bb_lower",
	} {
		v, ok := signals[name]
		require.True(t, ok, "missing signal %s", name)
		assert.False(t, math.IsNaN(v), "signal %s is NaN", name)
	}
	assert.InDelta(t, 129.5, signals["current_price"], 1e-9)
	assert.InDelta(t, 1.0, signals["spread"], 1e-9)
	assert.InDelta(t, 600.0, signals["volume_24h"], 1e-9)
}

func TestComputeAllShortHistoryOmitsSignals(t *testing.T) {
	signals := ComputeAll(barsFromCloses(ramp(25, 100, 1)))

	_, hasSMA50 := signals["sma_50"]
	assert.False(t, hasSMA50, "sma_50 should be omitted below 50 bars")
	_, hasMACD := signals["macd_line"]
	assert.False(t, hasMACD, "macd_line should be omitted below 35 bars")
	assert.Contains(t, signals, "sma_20")
	assert.Contains(t, signals, "current_price")
}

func TestComputeAllEmpty(t *testing.T) {
	assert.Empty(t, ComputeAll(nil))
}
