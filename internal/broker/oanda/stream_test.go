package oanda

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

func newTestAdapter(collected *[]domain.Tick) *Adapter {
	return New(Config{
		Name:      "oanda",
		APIURL:    "https://api-fxpractice.oanda.com",
		StreamURL: "https://stream-fxpractice.oanda.com",
		AccountID: "101-001-1234567-001",
		APIKey:    "token",
	}, func(t domain.Tick) {
		*collected = append(*collected, t)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestHandleChunkPrice(t *testing.T) {
	var ticks []domain.Tick
	a := newTestAdapter(&ticks)

	a.handleChunk([]byte(`{
		"type": "PRICE",
		"instrument": "EUR_USD",
		"time": "2025-06-02T14:30:00.123456789Z",
		"bids": [{"price": "1.08415", "liquidity": 1000000}],
		"asks": [{"price": "1.08431", "liquidity": 500000}]
	}`))

	require.Len(t, ticks, 1)
	tick := ticks[0]
	assert.Equal(t, "oanda", tick.Broker)
	assert.Equal(t, "EUR_USD", tick.Symbol)
	assert.InDelta(t, 1.08415, tick.Bid, 1e-9)
	assert.InDelta(t, 1.08431, tick.Ask, 1e-9)
	assert.InDelta(t, 1.08423, tick.Last, 1e-9)
	assert.InDelta(t, 1_500_000, tick.Volume, 1e-9)

	want, err := time.Parse(time.RFC3339Nano, "2025-06-02T14:30:00.123456789Z")
	require.NoError(t, err)
	assert.True(t, tick.Timestamp.Equal(want), "source-clock time must be preserved")
	assert.False(t, tick.ReceivedAt.IsZero())
}

func TestHandleChunkHeartbeatProducesNoTick(t *testing.T) {
	var ticks []domain.Tick
	a := newTestAdapter(&ticks)

	a.handleChunk([]byte(`{"type": "HEARTBEAT", "time": "2025-06-02T14:30:05Z"}`))
	assert.Empty(t, ticks)
}

func TestHandleChunkIgnoresMalformedInput(t *testing.T) {
	var ticks []domain.Tick
	a := newTestAdapter(&ticks)

	a.handleChunk([]byte(`not json at all`))
	a.handleChunk([]byte(`{"type": "UNSUBSCRIBE"}`))
	a.handleChunk([]byte(`{"type": "PRICE", "instrument": "EUR_USD", "bids": [], "asks": []}`))
	assert.Empty(t, ticks)
}

func TestHandleChunkBadTimestampFallsBackToNow(t *testing.T) {
	var ticks []domain.Tick
	a := newTestAdapter(&ticks)
	before := time.Now()

	a.handleChunk([]byte(`{
		"type": "PRICE",
		"instrument": "EUR_USD",
		"time": "garbage",
		"bids": [{"price": "1.1", "liquidity": 1}],
		"asks": [{"price": "1.2", "liquidity": 1}]
	}`))

	require.Len(t, ticks, 1)
	assert.False(t, ticks[0].Timestamp.Before(before))
}
