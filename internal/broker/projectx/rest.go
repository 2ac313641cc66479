package projectx

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Gateway order encoding: side 0=buy 1=sell, type 2=market.
const (
	sideBuy   = 0
	sideSell  = 1
	typeMarket = 2
)

// restClient wraps the gateway REST endpoints behind the auth session.
type restClient struct {
	auth      *AuthSession
	accountID int64
}

func newRESTClient(auth *AuthSession, accountID int64) *restClient {
	return &restClient{auth: auth, accountID: accountID}
}

func (r *restClient) req(ctx context.Context) *resty.Request {
	return r.auth.client().R().SetContext(ctx).SetAuthToken(r.auth.Token())
}

type placeOrderRequest struct {
	AccountID    int64   `json:"accountId"`
	ContractID   string  `json:"contractId"`
	Type         int     `json:"type"`
	Side         int     `json:"side"`
	Size         int     `json:"size"`
	CustomTag    string  `json:"customTag,omitempty"`
	LimitPrice   float64 `json:"limitPrice,omitempty"`
}

type placeOrderResponse struct {
	OrderID      int64  `json:"orderId"`
	Success      bool   `json:"success"`
	ErrorMessage string `json:"errorMessage"`
}

func (r *restClient) placeOrder(ctx context.Context, req domain.OrderRequest) (domain.BrokerOrderResult, error) {
	side := sideBuy
	if req.Side == domain.ActionSell {
		side = sideSell
	}
	size := int(math.Max(1, math.Round(req.Qty)))

	var out placeOrderResponse
	resp, err := r.req(ctx).
		SetBody(placeOrderRequest{
			AccountID:  r.accountID,
			ContractID: req.Symbol,
			Type:       typeMarket,
			Side:       side,
			Size:       size,
			CustomTag:  req.ClientOrderID,
		}).
		SetResult(&out).
		Post("/api/Order/place")
	if err != nil {
		return domain.BrokerOrderResult{}, fmt.Errorf("projectx: place order: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() {
		return domain.BrokerOrderResult{}, fmt.Errorf("projectx: place order status %d: %w", resp.StatusCode(), domain.ErrExecution)
	}
	if !out.Success {
		return domain.BrokerOrderResult{}, fmt.Errorf("projectx: order rejected: %s: %w", out.ErrorMessage, domain.ErrExecution)
	}
	return domain.BrokerOrderResult{
		OrderID: fmt.Sprintf("%d", out.OrderID),
		Status:  "submitted",
	}, nil
}

type gatewayAccount struct {
	ID       int64   `json:"id"`
	Balance  float64 `json:"balance"`
	DailyPnL float64 `json:"dailyPnl"`
}

type searchAccountsResponse struct {
	Accounts []gatewayAccount `json:"accounts"`
}

type gatewayPosition struct {
	ContractID    string  `json:"contractId"`
	Size          float64 `json:"size"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
}

type openPositionsResponse struct {
	Positions []gatewayPosition `json:"positions"`
}

func (r *restClient) portfolio(ctx context.Context) (domain.PortfolioState, error) {
	var accounts searchAccountsResponse
	resp, err := r.req(ctx).
		SetBody(map[string]bool{"onlyActiveAccounts": true}).
		SetResult(&accounts).
		Post("/api/Account/search")
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("projectx: search accounts: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() {
		return domain.PortfolioState{}, fmt.Errorf("projectx: search accounts status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}

	var acct gatewayAccount
	for _, a := range accounts.Accounts {
		if a.ID == r.accountID {
			acct = a
			break
		}
	}
	if acct.ID == 0 && len(accounts.Accounts) > 0 {
		acct = accounts.Accounts[0]
	}

	var open openPositionsResponse
	resp, err = r.req(ctx).
		SetBody(map[string]int64{"accountId": acct.ID}).
		SetResult(&open).
		Post("/api/Position/searchOpen")
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("projectx: open positions: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() {
		return domain.PortfolioState{}, fmt.Errorf("projectx: open positions status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}

	equity := acct.Balance
	dailyPnLPct := 0.0
	if equity != 0 {
		dailyPnLPct = acct.DailyPnL / equity
	}
	state := domain.PortfolioState{
		Cash:        equity,
		Equity:      equity,
		BuyingPower: equity,
		DailyPnL:    acct.DailyPnL,
		DailyPnLPct: dailyPnLPct,
		DrawdownPct: math.Max(0, -dailyPnLPct),
		FetchedAt:   time.Now(),
	}
	for _, p := range open.Positions {
		state.Positions = append(state.Positions, domain.Position{
			Symbol:       p.ContractID,
			Qty:          p.Size,
			UnrealizedPL: p.UnrealizedPnL,
		})
	}
	return state, nil
}

type gatewayBar struct {
	T string  `json:"t"`
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type retrieveBarsResponse struct {
	Bars []gatewayBar `json:"bars"`
}

// recentBars is the REST bar-history fallback: 5-minute bars over lookback.
func (r *restClient) recentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error) {
	now := time.Now().UTC()
	var out retrieveBarsResponse
	resp, err := r.req(ctx).
		SetBody(map[string]any{
			"contractId": symbol,
			"startTime":  now.Add(-lookback).Format(time.RFC3339),
			"endTime":    now.Format(time.RFC3339),
			"unit":       2, // minutes
			"unitNumber": 5,
			"limit":      200,
		}).
		SetResult(&out).
		Post("/api/History/retrieveBars")
	if err != nil {
		return nil, fmt.Errorf("projectx: retrieve bars: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("projectx: retrieve bars status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}

	bars := make([]domain.Bar, 0, len(out.Bars))
	for _, b := range out.Bars {
		ts, err := time.Parse(time.RFC3339Nano, b.T)
		if err != nil {
			continue
		}
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      b.O,
			High:      b.H,
			Low:       b.L,
			Close:     b.C,
			Volume:    b.V,
			Bid:       b.C,
			Ask:       b.C,
		})
	}
	return bars, nil
}
