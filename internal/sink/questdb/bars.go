package questdb

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// barLimit caps the number of bars returned by one aggregation query.
const barLimit = 100

// BarStore implements domain.BarReader using QuestDB's SAMPLE BY aggregation.
type BarStore struct {
	client *Client
	bucket string
}

// NewBarStore creates a BarStore aggregating into buckets of the given
// QuestDB interval (e.g. "5m").
func NewBarStore(c *Client, bucket string) *BarStore {
	if bucket == "" {
		bucket = "5m"
	}
	return &BarStore{client: c, bucket: bucket}
}

// Bars returns OHLCV bars for symbol over the lookback window, oldest first.
// Rows with a non-positive last price are excluded from aggregation.
func (s *BarStore) Bars(ctx context.Context, symbol string, lookback time.Duration) ([]domain.Bar, error) {
	// QuestDB SQL: interval and dateadd unit cannot be bind parameters.
	query := fmt.Sprintf(`
		SELECT
			timestamp,
			first(last) AS o,
			max(last)   AS h,
			min(last)   AS l,
			last(last)  AS c,
			sum(volume) AS v,
			last(bid)   AS bid,
			last(ask)   AS ask
		FROM market_data
		WHERE symbol = $1
		  AND last > 0
		  AND timestamp >= dateadd('s', -%d, now())
		SAMPLE BY %s ALIGN TO CALENDAR
		ORDER BY timestamp ASC
		LIMIT %d`,
		int64(lookback.Seconds()), s.bucket, barLimit,
	)

	rows, err := s.client.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("questdb: query bars %s: %w", symbol, err)
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Bid, &b.Ask); err != nil {
			return nil, fmt.Errorf("questdb: scan bar %s: %w", symbol, err)
		}
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("questdb: iterate bars %s: %w", symbol, err)
	}
	return bars, nil
}

// Compile-time interface check.
var _ domain.BarReader = (*BarStore)(nil)
