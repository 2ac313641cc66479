package decider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

func remoteAgainst(srv *httptest.Server) *Remote {
	return NewRemote(srv.URL, "api-key", "test-model", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRemoteDecide(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/decide", r.URL.Path)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))

		var req decideRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "EUR_USD", req.Symbol)
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 100.0, req.Signals["current_price"])

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(domain.Decision{
			Action:       domain.ActionBuy,
			Confidence:   0.72,
			TargetPrice:  100,
			SizeFraction: 0.05,
			Reasoning:    "signals aligned",
		})
	}))
	defer srv.Close()

	snap := domain.MarketSnapshot{
		Symbol:     "EUR_USD",
		Signals:    map[string]float64{"current_price": 100},
		Sufficient: true,
	}
	out, err := remoteAgainst(srv).Decide(context.Background(), snap, domain.PortfolioState{Equity: 100_000})
	require.NoError(t, err)
	assert.Equal(t, domain.ActionBuy, out.Action)
	assert.Equal(t, 0.72, out.Confidence)
}

func TestRemoteDecideServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := remoteAgainst(srv).Decide(context.Background(), domain.MarketSnapshot{Symbol: "EUR_USD"}, domain.PortfolioState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecision)
}

func TestRemoteDecideMalformedDecision(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(domain.Decision{Action: "SHORT", Confidence: 2})
	}))
	defer srv.Close()

	_, err := remoteAgainst(srv).Decide(context.Background(), domain.MarketSnapshot{Symbol: "EUR_USD"}, domain.PortfolioState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecision)
}

func TestRemoteDecideUnreachable(t *testing.T) {
	r := NewRemote("http://127.0.0.1:1", "", "", 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := r.Decide(context.Background(), domain.MarketSnapshot{Symbol: "EUR_USD"}, domain.PortfolioState{})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDecision)
}
