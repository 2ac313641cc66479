package domain

import "fmt"

// Action is the trade direction recommended by a decider.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Decision is the structured recommendation produced once per workflow cycle
// by the reasoning collaborator. It is immutable once produced and attached to
// the workflow instance for the remainder of its cycle.
type Decision struct {
	Action       Action  `json:"action"`
	Confidence   float64 `json:"confidence"`
	TargetPrice  float64 `json:"target_price"`
	StopLoss     float64 `json:"stop_loss"`
	TakeProfit   float64 `json:"take_profit"`
	SizeFraction float64 `json:"size_fraction"` // fraction of equity, 0..1
	StrategyName string  `json:"strategy_name"`
	Reasoning    string  `json:"reasoning"`
}

// Validate reports whether the decision is well-formed: a known action and a
// confidence inside [0, 1].
func (d Decision) Validate() error {
	switch d.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("decision: unknown action %q: %w", d.Action, ErrDecision)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("decision: confidence %.4f out of range: %w", d.Confidence, ErrDecision)
	}
	return nil
}

// Actionable returns true for decisions that ask for an order.
func (d Decision) Actionable() bool {
	return d.Action == ActionBuy || d.Action == ActionSell
}

// RiskVerdict is the outcome of the guardrail evaluation. Reason names the
// first failing rule when Passed is false. A failed verdict is a normal
// outcome, not an error.
type RiskVerdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}
