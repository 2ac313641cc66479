// Package indicator computes the technical signals consumed by the deciders.
// All functions are pure and operate on close prices oldest-to-newest; they
// return NaN when the input is too short for the requested period.
package indicator

import (
	"math"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Indicator parameters.
const (
	SMAShort   = 20
	SMALong    = 50
	EMAFast    = 12
	EMASlow    = 26
	RSIPeriod  = 14
	MACDSignal = 9
	BBPeriod   = 20
	BBStd      = 2.0
)

// SMA is the simple moving average of the last period prices.
func SMA(prices []float64, period int) float64 {
	if len(prices) < period {
		return math.NaN()
	}
	var sum float64
	for _, p := range prices[len(prices)-period:] {
		sum += p
	}
	return sum / float64(period)
}

// EMA is the exponential moving average seeded from the SMA of the first
// period values.
func EMA(prices []float64, period int) float64 {
	if len(prices) < period {
		return math.NaN()
	}
	var seed float64
	for _, p := range prices[:period] {
		seed += p
	}
	result := seed / float64(period)
	k := 2.0 / float64(period+1)
	for _, p := range prices[period:] {
		result = p*k + result*(1-k)
	}
	return result
}

// RSI is the Relative Strength Index with Wilder's smoothing, in [0, 100].
func RSI(prices []float64, period int) float64 {
	if len(prices) < period+1 {
		return math.NaN()
	}
	gains := make([]float64, 0, len(prices)-1)
	losses := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		if delta > 0 {
			gains = append(gains, delta)
			losses = append(losses, 0)
		} else {
			gains = append(gains, 0)
			losses = append(losses, -delta)
		}
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		avgGain += gains[i]
		avgLoss += losses[i]
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(gains); i++ {
		avgGain = (avgGain*float64(period-1) + gains[i]) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + losses[i]) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1+rs)
}

// MACD returns the MACD line, signal line, and histogram for the standard
// (12, 26, 9) parameters.
func MACD(prices []float64) (line, signal, histogram float64) {
	if len(prices) < EMASlow+MACDSignal {
		return math.NaN(), math.NaN(), math.NaN()
	}
	// Build the MACD series over the tail so the signal EMA has history.
	series := make([]float64, 0, MACDSignal*2)
	for i := len(prices) - MACDSignal*2; i <= len(prices); i++ {
		if i < EMASlow {
			continue
		}
		window := prices[:i]
		series = append(series, EMA(window, EMAFast)-EMA(window, EMASlow))
	}
	if len(series) < MACDSignal {
		return math.NaN(), math.NaN(), math.NaN()
	}
	line = series[len(series)-1]
	signal = EMA(series, MACDSignal)
	return line, signal, line - signal
}

// Bollinger returns the upper, middle, and lower Bollinger bands.
func Bollinger(prices []float64, period int, stdDevs float64) (upper, middle, lower float64) {
	if len(prices) < period {
		return math.NaN(), math.NaN(), math.NaN()
	}
	middle = SMA(prices, period)
	var variance float64
	for _, p := range prices[len(prices)-period:] {
		d := p - middle
		variance += d * d
	}
	sd := math.Sqrt(variance / float64(period))
	return middle + stdDevs*sd, middle, middle - stdDevs*sd
}

// ComputeAll derives the full signal map from a bar window. The returned map
// always contains current_price and spread; indicator entries that cannot be
// computed from the available history are omitted rather than set to NaN.
func ComputeAll(bars []domain.Bar) map[string]float64 {
	signals := make(map[string]float64, 16)
	if len(bars) == 0 {
		return signals
	}

	closes := make([]float64, len(bars))
	var volume float64
	for i, b := range bars {
		closes[i] = b.Close
		volume += b.Volume
	}
	last := bars[len(bars)-1]

	signals["current_price"] = last.Close
	signals["spread"] = last.Ask - last.Bid
	signals["volume_24h"] = volume

	put := func(name string, v float64) {
		if !math.IsNaN(v) {
			signals[name] = v
		}
	}
	put("sma_20", SMA(closes, SMAShort))
	put("sma_50", SMA(closes, SMALong))
	put("ema_12", EMA(closes, EMAFast))
	put("ema_26", EMA(closes, EMASlow))
	put("rsi_14", RSI(closes, RSIPeriod))

	line, sig, hist := MACD(closes)
	put("macd_line", line)
	put("macd_signal", sig)
	put("macd_histogram", hist)

	up, mid, low := Bollinger(closes, BBPeriod, BBStd)
	put("bb_upper", up)
	put("bb_middle", mid)
	put("bb_lower", low)

	return signals
}
