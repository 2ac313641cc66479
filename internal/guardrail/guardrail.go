// Package guardrail implements the deterministic risk-rule chain that gates
// order execution. Evaluate is a pure function: no network or storage access,
// identical inputs always yield the identical verdict. Rules are applied in
// order and the first failing rule wins.
package guardrail

import (
	"fmt"
	"math"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Risk limits. Percentages are fractions of equity.
const (
	MinConfidence        = 0.65
	DailyLossLimitPct    = 0.02
	MaxDrawdownPct       = 0.05
	MaxPriceDeviationPct = 0.02
	MaxPositionPct       = 0.10
)

// Evaluate validates a decision against portfolio state and the current
// market price. currentPrice is the snapshot's reference price at gate time.
func Evaluate(decision *domain.Decision, portfolio domain.PortfolioState, currentPrice float64) domain.RiskVerdict {
	// Rule 1: decision present and well-formed.
	if decision == nil {
		return fail("no decision produced")
	}
	if err := decision.Validate(); err != nil {
		return fail(fmt.Sprintf("malformed decision: %v", err))
	}

	// Rule 2: confidence threshold.
	if decision.Confidence < MinConfidence {
		return fail(fmt.Sprintf("confidence %.2f below minimum %.2f", decision.Confidence, MinConfidence))
	}

	// Rule 3: daily loss limit.
	if portfolio.DailyPnLPct < -DailyLossLimitPct {
		return fail(fmt.Sprintf("daily loss %.2f%% exceeds limit %.0f%%",
			portfolio.DailyPnLPct*100, DailyLossLimitPct*100))
	}

	// Rule 4: drawdown limit.
	if portfolio.DrawdownPct > MaxDrawdownPct {
		return fail(fmt.Sprintf("drawdown %.2f%% exceeds max %.0f%%",
			portfolio.DrawdownPct*100, MaxDrawdownPct*100))
	}

	// Rules 5 and 6 only apply to actionable decisions.
	if !decision.Actionable() {
		return pass()
	}

	// Rule 5: target price deviation from current market price.
	if currentPrice > 0 && decision.TargetPrice > 0 {
		deviation := math.Abs(decision.TargetPrice-currentPrice) / currentPrice
		if deviation > MaxPriceDeviationPct {
			return fail(fmt.Sprintf("target price %.2f deviates %.2f%% from current %.2f (max %.0f%%)",
				decision.TargetPrice, deviation*100, currentPrice, MaxPriceDeviationPct*100))
		}
	}

	// Rule 6: position size limit.
	if decision.SizeFraction > MaxPositionPct {
		return fail(fmt.Sprintf("position size %.1f%% of equity exceeds max %.0f%%",
			decision.SizeFraction*100, MaxPositionPct*100))
	}

	return pass()
}

func fail(reason string) domain.RiskVerdict {
	return domain.RiskVerdict{Passed: false, Reason: reason}
}

func pass() domain.RiskVerdict {
	return domain.RiskVerdict{Passed: true, Reason: "all risk checks passed"}
}
