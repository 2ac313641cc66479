package domain

import "errors"

// Error taxonomy. ErrAuth is fatal and non-retryable; ErrTransport is
// contained inside the adapters and retried with backoff; the rest terminate
// only the owning workflow's current cycle.
var (
	ErrAuth             = errors.New("authentication failed")
	ErrTransport        = errors.New("transport error")
	ErrInsufficientData = errors.New("insufficient market data")
	ErrDecision         = errors.New("malformed or failed decision")
	ErrExecution        = errors.New("order execution failed")
	ErrCheckpoint       = errors.New("checkpoint persistence failed")
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStageTimeout     = errors.New("stage timed out")
)
