package projectx

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// hubServer is a minimal SignalR-ish endpoint: it accepts the handshake frame
// and then pushes the configured frames to the client.
func hubServer(t *testing.T, frames [][]byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NotEmpty(t, r.URL.Query().Get("access_token"))
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// Consume the client's protocol handshake.
		_, handshake, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(handshake), `"protocol":"json"`)

		for _, frame := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame))
		}
		// Let the client drain before the connection drops.
		time.Sleep(100 * time.Millisecond)
	}))
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func quoteFrame(t *testing.T, contractID string, q gatewayQuote) []byte {
	t.Helper()
	payload, err := json.Marshal(q)
	require.NoError(t, err)
	id, err := json.Marshal(contractID)
	require.NoError(t, err)
	data, err := json.Marshal(hubMessage{
		Type:      1,
		Target:    "GatewayQuote",
		Arguments: []json.RawMessage{id, payload},
	})
	require.NoError(t, err)
	return append(data, recordSeparator...)
}

func TestReadQuotesDeliversGatewayQuotes(t *testing.T) {
	q := gatewayQuote{
		Symbol:    "MNQ",
		BestBid:   18100.25,
		BestAsk:   18100.50,
		LastPrice: 18100.25,
		Volume:    12,
		Timestamp: "2025-06-02T14:30:00Z",
	}
	srv := hubServer(t, [][]byte{quoteFrame(t, "CON.F.US.MNQ.H25", q)})
	defer srv.Close()

	hub, err := dialHub(context.Background(), wsURL(srv), "jwt", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer hub.close()

	type received struct {
		contractID string
		quote      gatewayQuote
	}
	got := make(chan received, 1)
	readErr := hub.readQuotes(context.Background(), func(contractID string, q gatewayQuote) {
		got <- received{contractID, q}
	})
	// The server closes after sending; a read error ends the pump.
	require.ErrorIs(t, readErr, domain.ErrTransport)

	select {
	case r := <-got:
		assert.Equal(t, "CON.F.US.MNQ.H25", r.contractID)
		assert.Equal(t, "MNQ", r.quote.Symbol)
		assert.Equal(t, 18100.25, r.quote.BestBid)
		assert.Equal(t, 18100.50, r.quote.BestAsk)
	default:
		t.Fatal("no quote received")
	}
}

func TestReadQuotesSplitsBatchedFrames(t *testing.T) {
	// Two invocations plus a server ping packed into one websocket message.
	var batch []byte
	batch = append(batch, quoteFrame(t, "A", gatewayQuote{Symbol: "A", LastPrice: 1})...)
	batch = append(batch, []byte(`{"type":6}`)...)
	batch = append(batch, recordSeparator...)
	batch = append(batch, quoteFrame(t, "B", gatewayQuote{Symbol: "B", LastPrice: 2})...)

	srv := hubServer(t, [][]byte{batch})
	defer srv.Close()

	hub, err := dialHub(context.Background(), wsURL(srv), "jwt", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer hub.close()

	var symbols []string
	_ = hub.readQuotes(context.Background(), func(_ string, q gatewayQuote) {
		symbols = append(symbols, q.Symbol)
	})
	assert.Equal(t, []string{"A", "B"}, symbols)
}

func TestReadQuotesSkipsMalformedFrames(t *testing.T) {
	frames := [][]byte{
		append([]byte(`this is not json`), recordSeparator...),
		append([]byte(`{"type":1,"target":"GatewayDepth","arguments":[]}`), recordSeparator...),
		quoteFrame(t, "MNQ", gatewayQuote{Symbol: "MNQ", LastPrice: 5}),
	}
	srv := hubServer(t, frames)
	defer srv.Close()

	hub, err := dialHub(context.Background(), wsURL(srv), "jwt", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer hub.close()

	var count int
	_ = hub.readQuotes(context.Background(), func(string, gatewayQuote) { count++ })
	assert.Equal(t, 1, count, "only the well-formed quote survives")
}

func TestDialHubUnreachable(t *testing.T) {
	_, err := dialHub(context.Background(), "ws://127.0.0.1:1/hub", "jwt", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}
