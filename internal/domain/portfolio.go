package domain

import "time"

// Position is one open position reported by the broker facade.
type Position struct {
	Symbol       string  `json:"symbol"`
	Qty          float64 `json:"qty"`
	MarketValue  float64 `json:"market_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// PortfolioState is the normalised account view fetched during COLLECT and
// consumed by the decider and the guardrail. Percentages are fractions
// (0.02 == 2%), with DrawdownPct always >= 0.
type PortfolioState struct {
	Cash        float64    `json:"cash"`
	Equity      float64    `json:"equity"`
	BuyingPower float64    `json:"buying_power"`
	DailyPnL    float64    `json:"daily_pnl"`
	DailyPnLPct float64    `json:"daily_pnl_pct"`
	DrawdownPct float64    `json:"drawdown_pct"`
	Positions   []Position `json:"positions"`
	FetchedAt   time.Time  `json:"fetched_at"`
}
