package projectx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// recordSeparator terminates every SignalR JSON frame.
var recordSeparator = []byte{0x1e}

// hubMessage is the wire shape of SignalR invocation frames. Type 1 is an
// invocation; type 6 is a server ping and carries no target.
type hubMessage struct {
	Type      int               `json:"type"`
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
}

// gatewayQuote is the payload of a GatewayQuote invocation.
type gatewayQuote struct {
	Symbol    string  `json:"symbol"`
	BestBid   float64 `json:"bestBid"`
	BestAsk   float64 `json:"bestAsk"`
	LastPrice float64 `json:"lastPrice"`
	Volume    float64 `json:"volume"`
	Timestamp string  `json:"timestamp"`
}

// hubClient is one live connection to the gateway market hub. It speaks the
// SignalR JSON sub-protocol over a gorilla WebSocket: a handshake frame, then
// record-separated invocation frames in both directions.
type hubClient struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	logger  *slog.Logger
}

// dialHub connects and completes the SignalR handshake. The JWT rides in the
// access_token query parameter, matching the gateway contract.
func dialHub(ctx context.Context, hubURL, token string, logger *slog.Logger) (*hubClient, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, hubURL+"?access_token="+token, nil)
	if err != nil {
		return nil, fmt.Errorf("projectx: hub dial: %v: %w", err, domain.ErrTransport)
	}

	h := &hubClient{conn: conn, logger: logger}
	if err := h.writeFrame(map[string]any{"protocol": "json", "version": 1}); err != nil {
		_ = conn.Close()
		return nil, err
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return h, nil
}

// subscribeQuotes invokes SubscribeContractQuotes for one contract.
func (h *hubClient) subscribeQuotes(contractID string) error {
	return h.writeFrame(hubMessage{
		Type:      1,
		Target:    "SubscribeContractQuotes",
		Arguments: []json.RawMessage{mustRaw(contractID)},
	})
}

func (h *hubClient) writeFrame(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("projectx: marshal frame: %w", err)
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := h.conn.WriteMessage(websocket.TextMessage, append(data, recordSeparator...)); err != nil {
		return fmt.Errorf("projectx: hub write: %v: %w", err, domain.ErrTransport)
	}
	return nil
}

// ping keeps the connection alive from our side.
func (h *hubClient) ping() error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	h.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return h.conn.WriteMessage(websocket.PingMessage, nil)
}

// readQuotes blocks reading frames and invokes onQuote for each GatewayQuote
// until the connection drops or ctx is cancelled.
func (h *hubClient) readQuotes(ctx context.Context, onQuote func(contractID string, q gatewayQuote)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, payload, err := h.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("projectx: hub read: %v: %w", err, domain.ErrTransport)
		}

		for _, frame := range bytes.Split(payload, recordSeparator) {
			if len(frame) == 0 {
				continue
			}
			var msg hubMessage
			if err := json.Unmarshal(frame, &msg); err != nil {
				h.logger.Debug("malformed hub frame", slog.Int("len", len(frame)))
				continue
			}
			if msg.Target != "GatewayQuote" || len(msg.Arguments) < 2 {
				continue
			}

			var contractID string
			if err := json.Unmarshal(msg.Arguments[0], &contractID); err != nil {
				continue
			}
			var q gatewayQuote
			if err := json.Unmarshal(msg.Arguments[1], &q); err != nil {
				h.logger.Debug("malformed quote payload", slog.String("contract", contractID))
				continue
			}
			onQuote(contractID, q)
		}
	}
}

func (h *hubClient) close() {
	_ = h.conn.Close()
}

func mustRaw(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
