// Package feed bridges transport adapter callbacks into the single
// goroutine-per-adapter drain that writes the time-series sink. It is the one
// required thread-safe boundary in the system: Submit is safe from any
// adapter goroutine and never blocks it.
package feed

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// DefaultBufferSize is the per-adapter tick buffer used when the config does
// not override it.
const DefaultBufferSize = 1024

// defaultDedupWindow bounds how long a (symbol, timestamp) identity is
// remembered for duplicate detection.
const defaultDedupWindow = 5 * time.Minute

// Bridge fans ticks from adapter threads into per-adapter bounded queues and
// drains them to the sink. Per-symbol order is preserved because each adapter
// has exactly one queue and one drain goroutine; cross-adapter interleaving
// is unordered. On overflow the oldest buffered tick is dropped so the
// adapter's network goroutine is never starved.
type Bridge struct {
	sink       domain.TickWriter
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	queues map[string]chan domain.Tick
	seen   map[string]time.Time
	window time.Duration

	started atomic.Bool
	dropped atomic.Uint64
	deduped atomic.Uint64
}

// NewBridge creates a Bridge delivering to sink. bufferSize <= 0 selects
// DefaultBufferSize.
func NewBridge(sink domain.TickWriter, bufferSize int, logger *slog.Logger) *Bridge {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bridge{
		sink:       sink,
		bufferSize: bufferSize,
		logger:     logger.With(slog.String("component", "ingestion_bridge")),
		queues:     make(map[string]chan domain.Tick),
		seen:       make(map[string]time.Time),
		window:     defaultDedupWindow,
	}
}

// SetDedupWindow overrides how long a tick identity is remembered. Must be
// called before Run; d <= 0 keeps the default.
func (b *Bridge) SetDedupWindow(d time.Duration) {
	if d <= 0 {
		return
	}
	b.mu.Lock()
	b.window = d
	b.mu.Unlock()
}

// Attach registers an adapter by name and returns the handler the adapter
// should invoke for every tick. Must be called before Run.
func (b *Bridge) Attach(adapter string) domain.TickHandler {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.queues[adapter]
	if !ok {
		q = make(chan domain.Tick, b.bufferSize)
		b.queues[adapter] = q
	}
	return func(tick domain.Tick) {
		b.submit(adapter, q, tick)
	}
}

// submit enqueues a tick, dropping the oldest buffered one when full.
func (b *Bridge) submit(adapter string, q chan domain.Tick, tick domain.Tick) {
	for {
		select {
		case q <- tick:
			return
		default:
		}
		select {
		case <-q:
			b.dropped.Add(1)
			b.logger.Warn("tick buffer overflow, dropped oldest",
				slog.String("adapter", adapter),
				slog.Uint64("dropped_total", b.dropped.Load()),
			)
		default:
		}
	}
}

// Run drains all attached queues until ctx is cancelled. Sink write errors
// are logged and the tick is abandoned; delivery is at-least-once overall and
// consumers of the sink tolerate both gaps and duplicates.
func (b *Bridge) Run(ctx context.Context) error {
	if !b.started.CompareAndSwap(false, true) {
		return nil
	}
	b.mu.Lock()
	queues := make(map[string]chan domain.Tick, len(b.queues))
	for name, q := range b.queues {
		queues[name] = q
	}
	b.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for name, q := range queues {
		name, q := name, q
		g.Go(func() error {
			return b.drain(ctx, name, q)
		})
	}
	b.logger.Info("ingestion bridge started", slog.Int("adapters", len(queues)))
	return g.Wait()
}

func (b *Bridge) drain(ctx context.Context, adapter string, q chan domain.Tick) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-q:
			if b.isDuplicate(tick) {
				continue
			}
			if err := b.sink.WriteTick(ctx, tick); err != nil {
				b.logger.Warn("sink write failed",
					slog.String("adapter", adapter),
					slog.String("symbol", tick.Symbol),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// isDuplicate records the tick identity and reports whether it was already
// seen inside the dedup window. Expired entries are pruned opportunistically.
func (b *Bridge) isDuplicate(tick domain.Tick) bool {
	key := tick.Key()
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	if ts, ok := b.seen[key]; ok && now.Sub(ts) < b.window {
		b.deduped.Add(1)
		return true
	}
	b.seen[key] = now

	if len(b.seen) > 4*b.bufferSize {
		for k, ts := range b.seen {
			if now.Sub(ts) >= b.window {
				delete(b.seen, k)
			}
		}
	}
	return false
}

// Dropped returns the number of ticks discarded due to buffer overflow.
func (b *Bridge) Dropped() uint64 { return b.dropped.Load() }

// Deduplicated returns the number of ticks discarded as duplicates.
func (b *Bridge) Deduplicated() uint64 { return b.deduped.Load() }
