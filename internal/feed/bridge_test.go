package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

type memorySink struct {
	mu    sync.Mutex
	ticks []domain.Tick
}

func (s *memorySink) WriteTick(_ context.Context, tick domain.Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, tick)
	return nil
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ticks)
}

func (s *memorySink) all() []domain.Tick {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Tick(nil), s.ticks...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tickAt(symbol string, ts time.Time) domain.Tick {
	return domain.Tick{Broker: "test", Symbol: symbol, Timestamp: ts, Last: 100}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestBridgeDeliversToSink(t *testing.T) {
	sink := &memorySink{}
	b := NewBridge(sink, 16, testLogger())
	handler := b.Attach("alpha")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	base := time.Now()
	for i := 0; i < 5; i++ {
		handler(tickAt("EUR_USD", base.Add(time.Duration(i)*time.Second)))
	}

	waitFor(t, func() bool { return sink.count() == 5 })
	cancel()
	<-done

	// Per-adapter order is preserved.
	ticks := sink.all()
	for i := 1; i < len(ticks); i++ {
		assert.True(t, ticks[i].Timestamp.After(ticks[i-1].Timestamp))
	}
	assert.Zero(t, b.Dropped())
	assert.Zero(t, b.Deduplicated())
}

func TestBridgeDeduplicatesIdenticalTicks(t *testing.T) {
	sink := &memorySink{}
	b := NewBridge(sink, 16, testLogger())
	handler := b.Attach("alpha")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	dup := tickAt("EUR_USD", time.Now())
	handler(dup)
	handler(dup)
	handler(dup)
	handler(tickAt("EUR_USD", dup.Timestamp.Add(time.Second)))

	waitFor(t, func() bool { return sink.count() == 2 })
	waitFor(t, func() bool { return b.Deduplicated() == 2 })
	cancel()
	<-done
}

// The same (symbol, timestamp) arriving on two adapters is one logical tick.
func TestBridgeDeduplicatesAcrossAdapters(t *testing.T) {
	sink := &memorySink{}
	b := NewBridge(sink, 16, testLogger())
	ha := b.Attach("socket")
	hb := b.Attach("longpoll")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	shared := tickAt("MNQ", time.Now())
	ha(shared)
	hb(shared)

	waitFor(t, func() bool { return b.Deduplicated() == 1 })
	cancel()
	<-done
	assert.Equal(t, 1, sink.count())
}

func TestBridgeOverflowDropsOldest(t *testing.T) {
	sink := &memorySink{}
	b := NewBridge(sink, 4, testLogger())
	handler := b.Attach("alpha")

	// Not running yet, so the queue fills and the oldest ticks are evicted.
	base := time.Now()
	for i := 0; i < 10; i++ {
		handler(tickAt("EUR_USD", base.Add(time.Duration(i)*time.Second)))
	}
	require.Equal(t, uint64(6), b.Dropped())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	waitFor(t, func() bool { return sink.count() == 4 })
	cancel()
	<-done

	// The survivors are the newest four, still in order.
	ticks := sink.all()
	require.Len(t, ticks, 4)
	assert.Equal(t, base.Add(6*time.Second).Unix(), ticks[0].Timestamp.Unix())
	assert.Equal(t, base.Add(9*time.Second).Unix(), ticks[3].Timestamp.Unix())
}

func TestBridgeConcurrentSubmitters(t *testing.T) {
	sink := &memorySink{}
	b := NewBridge(sink, 1024, testLogger())
	handler := b.Attach("alpha")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()

	const goroutines = 8
	const perGoroutine = 50
	var wg sync.WaitGroup
	base := time.Now()
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				// Distinct timestamps per goroutine so nothing deduplicates.
				ts := base.Add(time.Duration(g*perGoroutine+i) * time.Millisecond)
				handler(tickAt("EUR_USD", ts))
			}
		}(g)
	}
	wg.Wait()

	waitFor(t, func() bool {
		return int(b.Dropped())+sink.count() == goroutines*perGoroutine
	})
	cancel()
	<-done
}

func TestBridgeRunTwice(t *testing.T) {
	b := NewBridge(&memorySink{}, 4, testLogger())
	b.Attach("alpha")

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	waitFor(t, func() bool { return b.started.Load() })
	// Second Run is a no-op rather than a second set of drain goroutines.
	assert.NoError(t, b.Run(ctx))
	cancel()
}
