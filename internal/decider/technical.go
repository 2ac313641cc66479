package decider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Technical is a deterministic local decider built from the same signal
// alignment rules the remote service is prompted with: RSI extremes gated by
// the SMA trend, MACD cross direction, and Bollinger band position. It exists
// for paper trading and for running without a reasoning service.
type Technical struct {
	logger *slog.Logger
}

// NewTechnical creates a Technical decider.
func NewTechnical(logger *slog.Logger) *Technical {
	return &Technical{logger: logger.With(slog.String("component", "technical_decider"))}
}

func (t *Technical) Name() string { return "technical" }

// Decide scores bullish and bearish signal alignment and emits BUY/SELL when
// one side clearly dominates, HOLD otherwise. Confidence scales with the
// number of aligned signals; a single aligned signal stays below the
// actionable threshold on purpose.
func (t *Technical) Decide(ctx context.Context, snap domain.MarketSnapshot, portfolio domain.PortfolioState) (domain.Decision, error) {
	price := snap.CurrentPrice()
	if !snap.Sufficient || price <= 0 {
		return domain.Decision{
			Action:       domain.ActionHold,
			StrategyName: "technical",
			Reasoning:    "insufficient market data",
		}, nil
	}

	sig := snap.Signals
	var bullish, bearish int
	var notes []string

	if rsi, ok := sig["rsi_14"]; ok {
		sma, hasSMA := sig["sma_20"]
		switch {
		case rsi < 40 && hasSMA && price > sma:
			bullish++
			notes = append(notes, fmt.Sprintf("RSI %.1f oversold in uptrend", rsi))
		case rsi > 65 && hasSMA && price < sma:
			bearish++
			notes = append(notes, fmt.Sprintf("RSI %.1f overbought in downtrend", rsi))
		}
	}

	if hist, ok := sig["macd_histogram"]; ok {
		if hist > 0 {
			bullish++
			notes = append(notes, "MACD histogram positive")
		} else if hist < 0 {
			bearish++
			notes = append(notes, "MACD histogram negative")
		}
	}

	if lower, ok := sig["bb_lower"]; ok {
		if upper, okU := sig["bb_upper"]; okU {
			if price <= lower {
				bullish++
				notes = append(notes, "price at lower Bollinger band")
			} else if price >= upper {
				bearish++
				notes = append(notes, "price at upper Bollinger band")
			}
		}
	}

	action := domain.ActionHold
	score := 0
	switch {
	case bullish >= 2 && bullish > bearish:
		action = domain.ActionBuy
		score = bullish
	case bearish >= 2 && bearish > bullish:
		action = domain.ActionSell
		score = bearish
	}

	decision := domain.Decision{
		Action:       action,
		TargetPrice:  price,
		StrategyName: "technical",
		Reasoning:    fmt.Sprintf("bullish=%d bearish=%d: %v", bullish, bearish, notes),
	}
	switch score {
	case 2:
		decision.Confidence = 0.70
	case 3:
		decision.Confidence = 0.85
	default:
		decision.Confidence = 0.40
	}
	if action != domain.ActionHold {
		decision.SizeFraction = 0.05
		decision.StopLoss = price * 0.98
		decision.TakeProfit = price * 1.03
		if action == domain.ActionSell {
			decision.StopLoss = price * 1.02
			decision.TakeProfit = price * 0.97
		}
	}

	t.logger.Debug("technical decision",
		slog.String("symbol", snap.Symbol),
		slog.String("action", string(action)),
		slog.Float64("confidence", decision.Confidence),
	)
	return decision, nil
}

// Compile-time interface check.
var _ Decider = (*Technical)(nil)
