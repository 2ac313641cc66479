package questdb

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Writer implements domain.TickWriter. Inserts land in the deduplicated
// market_data table, so at-least-once delivery from the bridge is safe.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer backed by the given client.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// WriteTick appends one tick row.
func (w *Writer) WriteTick(ctx context.Context, tick domain.Tick) error {
	const query = `
		INSERT INTO market_data (timestamp, broker, symbol, bid, ask, last, volume, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := w.client.pool.Exec(ctx, query,
		tick.Timestamp, tick.Broker, tick.Symbol,
		tick.Bid, tick.Ask, tick.Last, tick.Volume,
		tick.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("questdb: write tick %s: %w", tick.Symbol, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.TickWriter = (*Writer)(nil)
