package snapshot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

type stubBarReader struct {
	bars []domain.Bar
	err  error
}

func (s *stubBarReader) Bars(context.Context, string, time.Duration) ([]domain.Bar, error) {
	return s.bars, s.err
}

type stubFallback struct {
	bars  []domain.Bar
	err   error
	calls int
}

func (s *stubFallback) RecentBars(context.Context, string, time.Duration) ([]domain.Bar, error) {
	s.calls++
	return s.bars, s.err
}

func makeBars(n int) []domain.Bar {
	bars := make([]domain.Bar, n)
	base := time.Now().Add(-time.Duration(n) * 5 * time.Minute)
	for i := range bars {
		price := 100 + float64(i)*0.1
		bars[i] = domain.Bar{
			Timestamp: base.Add(time.Duration(i) * 5 * time.Minute),
			Open:      price, High: price + 1, Low: price - 1, Close: price,
			Volume: 50, Bid: price - 0.25, Ask: price + 0.25,
		}
	}
	return bars
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestBuildSufficient(t *testing.T) {
	b := NewBuilder(&stubBarReader{bars: makeBars(80)}, nil, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.True(t, snap.Sufficient)
	assert.Len(t, snap.Bars, 80)
	assert.NotEmpty(t, snap.Signals)
	assert.Contains(t, snap.Signals, "current_price")
	assert.Greater(t, snap.BestAsk, snap.BestBid)
}

// One bar short of the minimum is a clean "cannot decide", not an error, and
// the signal map stays empty.
func TestBuildInsufficientIsNotAnError(t *testing.T) {
	b := NewBuilder(&stubBarReader{bars: makeBars(MinBars - 1)}, nil, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.False(t, snap.Sufficient)
	assert.Empty(t, snap.Signals)
	assert.Len(t, snap.Bars, MinBars-1)
}

func TestBuildFallbackFillsGap(t *testing.T) {
	fb := &stubFallback{bars: makeBars(90)}
	b := NewBuilder(&stubBarReader{bars: makeBars(10)}, fb, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.calls)
	assert.True(t, snap.Sufficient)
	assert.Len(t, snap.Bars, 90)
}

func TestBuildFallbackNotUsedWhenSinkSufficient(t *testing.T) {
	fb := &stubFallback{bars: makeBars(200)}
	b := NewBuilder(&stubBarReader{bars: makeBars(70)}, fb, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.Zero(t, fb.calls)
	assert.Len(t, snap.Bars, 70)
}

func TestBuildSinkErrorRecoveredByFallback(t *testing.T) {
	fb := &stubFallback{bars: makeBars(75)}
	b := NewBuilder(&stubBarReader{err: errors.New("connection refused")}, fb, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.True(t, snap.Sufficient)
	assert.Len(t, snap.Bars, 75)
}

func TestBuildBothSourcesFail(t *testing.T) {
	fb := &stubFallback{err: errors.New("gateway timeout")}
	b := NewBuilder(&stubBarReader{err: errors.New("connection refused")}, fb, 0, discard())

	_, err := b.Build(context.Background(), "EUR_USD")
	require.Error(t, err)
}

func TestBuildShortFallbackStillInsufficient(t *testing.T) {
	fb := &stubFallback{bars: makeBars(20)}
	b := NewBuilder(&stubBarReader{bars: makeBars(5)}, fb, 0, discard())

	snap, err := b.Build(context.Background(), "EUR_USD")
	require.NoError(t, err)
	assert.False(t, snap.Sufficient)
	assert.Empty(t, snap.Signals)
	assert.Len(t, snap.Bars, 20)
}
