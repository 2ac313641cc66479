// Package oanda implements the OANDA broker: a chunked-HTTP pricing stream
// for real-time quotes plus the v3 REST API for candles, account state, and
// order placement. Auth is a static bearer credential with no refresh cycle.
package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// streamPrice is one NDJSON chunk from the pricing stream. Chunks are either
// PRICE updates or HEARTBEAT keep-alives; prices arrive as decimal strings.
type streamPrice struct {
	Type       string        `json:"type"`
	Instrument string        `json:"instrument"`
	Time       string        `json:"time"`
	Bids       []streamLevel `json:"bids"`
	Asks       []streamLevel `json:"asks"`
}

type streamLevel struct {
	Price     string  `json:"price"`
	Liquidity float64 `json:"liquidity"`
}

// stream consumes the pricing stream for the given instruments, invoking
// onTick per PRICE chunk, until the connection drops or ctx is cancelled.
// A 401/403 on connect is a fatal domain.ErrAuth.
func (a *Adapter) stream(ctx context.Context, instruments []string) error {
	url := fmt.Sprintf("/v3/accounts/%s/pricing/stream", a.cfg.AccountID)

	resp, err := a.streamHTTP.R().
		SetContext(ctx).
		SetQueryParam("instruments", strings.Join(instruments, ",")).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return fmt.Errorf("oanda: stream connect: %v: %w", err, domain.ErrTransport)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() == 401 || resp.StatusCode() == 403 {
		return fmt.Errorf("oanda: stream rejected with status %d: %w", resp.StatusCode(), domain.ErrAuth)
	}
	if resp.IsError() {
		return fmt.Errorf("oanda: stream status %d: %w", resp.StatusCode(), domain.ErrTransport)
	}
	a.logger.Info("pricing stream connected", slog.Int("instruments", len(instruments)))

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		a.handleChunk(line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("oanda: stream read: %v: %w", err, domain.ErrTransport)
	}
	return fmt.Errorf("oanda: stream closed by server: %w", domain.ErrTransport)
}

func (a *Adapter) handleChunk(line []byte) {
	var msg streamPrice
	if err := json.Unmarshal(line, &msg); err != nil {
		return
	}
	switch msg.Type {
	case "HEARTBEAT":
		a.logger.Debug("stream heartbeat", slog.String("time", msg.Time))
		return
	case "PRICE":
	default:
		return
	}
	if len(msg.Bids) == 0 || len(msg.Asks) == 0 {
		return
	}

	bid := parsePrice(msg.Bids[0].Price)
	ask := parsePrice(msg.Asks[0].Price)
	ts := time.Now()
	if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
		ts = t
	}
	a.onTick(domain.Tick{
		Broker:     a.cfg.Name,
		Symbol:     msg.Instrument,
		Timestamp:  ts,
		Bid:        bid,
		Ask:        ask,
		Last:       (bid + ask) / 2,
		Volume:     msg.Bids[0].Liquidity + msg.Asks[0].Liquidity,
		ReceivedAt: time.Now(),
	})
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// newStreamClient builds the resty client against the streaming host. The
// stream itself must never time out; liveness comes from heartbeats.
func newStreamClient(streamURL, apiKey string) *resty.Client {
	return resty.New().
		SetBaseURL(streamURL).
		SetAuthToken(apiKey).
		SetTimeout(0)
}
