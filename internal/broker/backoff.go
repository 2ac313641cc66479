// Package broker holds pieces shared by the transport adapters.
package broker

import (
	"context"
	"math/rand"
	"time"
)

// Backoff produces exponentially growing reconnect delays with jitter.
// The zero value is not usable; use NewBackoff.
type Backoff struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a Backoff starting at base and capped at max.
func NewBackoff(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = 60 * time.Second
	}
	return &Backoff{base: base, max: max, current: base}
}

// Next returns the delay to wait before the next attempt and advances the
// schedule. Jitter of up to ±25% is applied so reconnecting adapters do not
// thundering-herd a recovering endpoint.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 2))
	return d - d/4 + jitter
}

// Reset restores the initial delay after a successful connection.
func (b *Backoff) Reset() {
	b.current = b.base
}

// Sleep waits for the next backoff delay or until ctx is cancelled.
func (b *Backoff) Sleep(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
