package domain

import (
	"context"
	"time"
)

// TickWriter is the write side of the time-series sink. Writes are
// append-only and duplicate-tolerant: the sink must make repeated writes of
// the same (symbol, timestamp) row idempotent.
type TickWriter interface {
	WriteTick(ctx context.Context, tick Tick) error
}

// BarReader is the read side of the time-series sink: a bar aggregation query
// over a time window. Bars are returned oldest-to-newest; an empty slice (not
// an error) means no data.
type BarReader interface {
	Bars(ctx context.Context, symbol string, lookback time.Duration) ([]Bar, error)
}

// CheckpointStore persists workflow state keyed by workflow identity. Save
// must be exactly-once-visible: a crash mid-write must never leave a
// partially written checkpoint readable. Load returns ErrNotFound for an
// identity that has never been saved.
type CheckpointStore interface {
	Save(ctx context.Context, id WorkflowID, instance *WorkflowInstance) error
	Load(ctx context.Context, id WorkflowID) (*WorkflowInstance, error)
}

// OrderStore is the append-only order log. Create returns ErrAlreadyExists
// when a record for the same (workflow identity, cycle id) is present;
// GetByCycle returns ErrNotFound when there is none.
type OrderStore interface {
	Create(ctx context.Context, rec OrderRecord) error
	GetByCycle(ctx context.Context, id WorkflowID, cycleID int64) (OrderRecord, error)
	ListByWorkflow(ctx context.Context, id WorkflowID, limit int) ([]OrderRecord, error)
}

// AccountStore appends per-cycle portfolio snapshots for offline analysis.
type AccountStore interface {
	Append(ctx context.Context, id WorkflowID, state PortfolioState) error
}

// Broker is the facade every broker adapter must satisfy in addition to the
// transport contract: order placement, portfolio retrieval, and the REST
// bar-history fallback used when the sink has too few bars.
type Broker interface {
	Name() string
	PlaceOrder(ctx context.Context, req OrderRequest) (BrokerOrderResult, error)
	Portfolio(ctx context.Context) (PortfolioState, error)
	RecentBars(ctx context.Context, symbol string, lookback time.Duration) ([]Bar, error)
}

// TickHandler receives normalised ticks from a transport adapter. It may be
// invoked from the adapter's network goroutine and must not block.
type TickHandler func(Tick)

// MarketStream is the transport side of a broker adapter: it owns one live
// connection, authenticates, subscribes, reconnects with backoff, and pushes
// normalised ticks to the handler registered at construction. Run blocks
// until ctx is cancelled or a non-retryable error (ErrAuth) occurs.
type MarketStream interface {
	Run(ctx context.Context) error
	Subscribe(symbols []string)
}
