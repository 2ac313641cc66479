// Package domain defines the core data model shared by every layer of the
// agent: ticks, bars, snapshots, decisions, workflow instances, and the store
// interfaces their persistence goes through. It has no dependencies on any
// other internal package.
package domain

import (
	"fmt"
	"time"
)

// Tick is a single timestamped price/volume observation from a market data
// feed. Timestamp is the exchange (source-clock) time; ReceivedAt is stamped
// by the transport adapter on arrival so downstream consumers can detect
// staleness independently of the exchange clock.
type Tick struct {
	Broker     string    `json:"broker"`
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Bid        float64   `json:"bid"`
	Ask        float64   `json:"ask"`
	Last       float64   `json:"last"`
	Volume     float64   `json:"volume"`
	ReceivedAt time.Time `json:"received_at"`
}

// Key returns the (symbol, timestamp) identity used for duplicate detection.
func (t Tick) Key() string {
	return fmt.Sprintf("%s@%d", t.Symbol, t.Timestamp.UnixNano())
}

// Bar is an aggregated OHLCV summary over a fixed time bucket, plus the last
// observed bid/ask within the bucket.
type Bar struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    float64   `json:"v"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
}

// MarketSnapshot is the derived view the workflow decides on. It is rebuilt
// from the sink on every cycle and never persisted. Sufficient is true only
// once the minimum bar count is available; when false, Signals is empty and
// callers must treat the snapshot as "cannot decide", not as an error.
type MarketSnapshot struct {
	Symbol     string             `json:"symbol"`
	Bars       []Bar              `json:"bars"`
	Signals    map[string]float64 `json:"signals"`
	BestBid    float64            `json:"best_bid"`
	BestAsk    float64            `json:"best_ask"`
	Sufficient bool               `json:"sufficient"`
	BuiltAt    time.Time          `json:"built_at"`
}

// CurrentPrice returns the snapshot's reference price: the current_price
// signal when present, otherwise the close of the newest bar.
func (s MarketSnapshot) CurrentPrice() float64 {
	if p, ok := s.Signals["current_price"]; ok && p > 0 {
		return p
	}
	if n := len(s.Bars); n > 0 {
		return s.Bars[n-1].Close
	}
	return 0
}
