package oanda

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

type accountSummary struct {
	Account struct {
		Balance      string `json:"balance"`
		NAV          string `json:"NAV"`
		UnrealizedPL string `json:"unrealizedPL"`
		MarginAvail  string `json:"marginAvailable"`
	} `json:"account"`
}

type openPositions struct {
	Positions []struct {
		Instrument   string `json:"instrument"`
		UnrealizedPL string `json:"unrealizedPL"`
		Long         struct {
			Units string `json:"units"`
		} `json:"long"`
		Short struct {
			Units string `json:"units"`
		} `json:"short"`
	} `json:"positions"`
}

// Portfolio implements domain.Broker against the v3 account summary and open
// positions endpoints. OANDA reports decimal strings throughout.
func (a *Adapter) Portfolio(ctx context.Context) (domain.PortfolioState, error) {
	var summary accountSummary
	resp, err := a.rest.R().
		SetContext(ctx).
		SetResult(&summary).
		Get(fmt.Sprintf("/v3/accounts/%s/summary", a.cfg.AccountID))
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("oanda: account summary: %v: %w", err, domain.ErrTransport)
	}
	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return domain.PortfolioState{}, fmt.Errorf("oanda: account summary status %d: %w", resp.StatusCode(), domain.ErrAuth)
	}
	if resp.IsError() {
		return domain.PortfolioState{}, fmt.Errorf("oanda: account summary status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}

	equity := parsePrice(summary.Account.NAV)
	unrealized := parsePrice(summary.Account.UnrealizedPL)
	dailyPnLPct := 0.0
	if equity > 0 {
		dailyPnLPct = unrealized / equity
	}
	state := domain.PortfolioState{
		Cash:        parsePrice(summary.Account.Balance),
		Equity:      equity,
		BuyingPower: parsePrice(summary.Account.MarginAvail),
		DailyPnL:    unrealized,
		DailyPnLPct: dailyPnLPct,
		DrawdownPct: math.Max(0, -dailyPnLPct),
		FetchedAt:   time.Now(),
	}

	var open openPositions
	resp, err = a.rest.R().
		SetContext(ctx).
		SetResult(&open).
		Get(fmt.Sprintf("/v3/accounts/%s/openPositions", a.cfg.AccountID))
	if err != nil {
		return domain.PortfolioState{}, fmt.Errorf("oanda: open positions: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() {
		return domain.PortfolioState{}, fmt.Errorf("oanda: open positions status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}
	for _, p := range open.Positions {
		qty := parsePrice(p.Long.Units) + parsePrice(p.Short.Units)
		state.Positions = append(state.Positions, domain.Position{
			Symbol:       p.Instrument,
			Qty:          qty,
			UnrealizedPL: parsePrice(p.UnrealizedPL),
		})
	}
	return state, nil
}

type orderBody struct {
	Order struct {
		Type       string `json:"type"`
		Instrument string `json:"instrument"`
		Units      string `json:"units"`
		ClientExt  struct {
			ID string `json:"id"`
		} `json:"clientExtensions"`
	} `json:"order"`
}

type orderResponse struct {
	OrderFillTransaction struct {
		ID string `json:"id"`
	} `json:"orderFillTransaction"`
	OrderCreateTransaction struct {
		ID string `json:"id"`
	} `json:"orderCreateTransaction"`
	OrderRejectTransaction struct {
		RejectReason string `json:"rejectReason"`
	} `json:"orderRejectTransaction"`
	ErrorMessage string `json:"errorMessage"`
}

// PlaceOrder implements domain.Broker. Sells are encoded as negative units.
func (a *Adapter) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.BrokerOrderResult, error) {
	units := req.Qty
	if req.Side == domain.ActionSell {
		units = -units
	}

	var body orderBody
	body.Order.Type = "MARKET"
	body.Order.Instrument = req.Symbol
	body.Order.Units = strconv.FormatFloat(units, 'f', 4, 64)
	body.Order.ClientExt.ID = req.ClientOrderID

	var out orderResponse
	resp, err := a.rest.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("/v3/accounts/%s/orders", a.cfg.AccountID))
	if err != nil {
		return domain.BrokerOrderResult{}, fmt.Errorf("oanda: place order: %v: %w", err, domain.ErrTransport)
	}
	if resp.IsError() || out.OrderRejectTransaction.RejectReason != "" {
		reason := out.OrderRejectTransaction.RejectReason
		if reason == "" {
			reason = out.ErrorMessage
		}
		return domain.BrokerOrderResult{}, fmt.Errorf("oanda: order rejected: %s: %w", reason, domain.ErrExecution)
	}

	id := out.OrderFillTransaction.ID
	if id == "" {
		id = out.OrderCreateTransaction.ID
	}
	return domain.BrokerOrderResult{OrderID: id, Status: "submitted"}, nil
}

type candlesResponse struct {
	Candles []struct {
		Time   string  `json:"time"`
		Volume float64 `json:"volume"`
		Mid    struct {
			O string `json:"o"`
			H string `json:"h"`
			L string `json:"l"`
			C string `json:"c"`
		} `json:"mid"`
	} `json:"candles"`
}

// RecentBars implements domain.Broker: M5 midpoint candles over the lookback
// window, oldest first.
func (a *Adapter) RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error) {
	count := int(lookback / (5 * time.Minute))
	if count < 1 {
		count = 1
	}
	if count > 500 {
		count = 500
	}

	var out candlesResponse
	resp, err := a.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"granularity": "M5",
			"count":       strconv.Itoa(count),
			"price":       "M",
		}).
		SetResult(&out).
		Get(fmt.Sprintf("/v3/instruments/%s/candles", symbol))
	if err != nil {
		return nil, fmt.Errorf("oanda: candles %s: %v: %w", symbol, err, domain.ErrTransport)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("oanda: candles %s status %d: %w", symbol, resp.StatusCode(), domain.ErrTransport)
	}

	bars := make([]domain.Bar, 0, len(out.Candles))
	for _, c := range out.Candles {
		ts, err := time.Parse(time.RFC3339Nano, c.Time)
		if err != nil {
			continue
		}
		closePx := parsePrice(c.Mid.C)
		bars = append(bars, domain.Bar{
			Timestamp: ts,
			Open:      parsePrice(c.Mid.O),
			High:      parsePrice(c.Mid.H),
			Low:       parsePrice(c.Mid.L),
			Close:     closePx,
			Volume:    c.Volume,
			Bid:       closePx,
			Ask:       closePx,
		})
	}
	return bars, nil
}
