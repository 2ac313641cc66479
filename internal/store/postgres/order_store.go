package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// OrderStore implements the append-only order log on PostgreSQL. The unique
// constraint on (broker, symbol, cycle_id) is the database-side backstop for
// the at-most-one-order-per-cycle invariant.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Create inserts one order record. It returns domain.ErrAlreadyExists when a
// record for the same (workflow identity, cycle id) is already present.
func (s *OrderStore) Create(ctx context.Context, rec domain.OrderRecord) error {
	const query = `
		INSERT INTO orders (
			id, broker, symbol, cycle_id, action, qty, limit_price,
			broker_order_id, status, reason, submitted_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Workflow.Broker, rec.Workflow.Symbol, rec.CycleID,
		string(rec.Action), rec.Qty, rec.LimitPrice,
		rec.BrokerOrderID, string(rec.Status), rec.Reason, rec.SubmittedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create order %s: %w", rec.ID, err)
	}
	return nil
}

const orderSelectCols = `id, broker, symbol, cycle_id, action, qty, limit_price,
	broker_order_id, status, reason, submitted_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (domain.OrderRecord, error) {
	var rec domain.OrderRecord
	var action, status string
	err := scanner.Scan(
		&rec.ID, &rec.Workflow.Broker, &rec.Workflow.Symbol, &rec.CycleID,
		&action, &rec.Qty, &rec.LimitPrice,
		&rec.BrokerOrderID, &status, &rec.Reason, &rec.SubmittedAt,
	)
	if err != nil {
		return domain.OrderRecord{}, err
	}
	rec.Action = domain.Action(action)
	rec.Status = domain.OrderStatus(status)
	return rec, nil
}

// GetByCycle returns the order record for one (workflow identity, cycle id),
// or domain.ErrNotFound when none exists.
func (s *OrderStore) GetByCycle(ctx context.Context, id domain.WorkflowID, cycleID int64) (domain.OrderRecord, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM orders WHERE broker = $1 AND symbol = $2 AND cycle_id = $3`,
		orderSelectCols,
	)
	rec, err := scanOrder(s.pool.QueryRow(ctx, query, id.Broker, id.Symbol, cycleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OrderRecord{}, domain.ErrNotFound
		}
		return domain.OrderRecord{}, fmt.Errorf("postgres: get order %s cycle %d: %w", id.Key(), cycleID, err)
	}
	return rec, nil
}

// ListByWorkflow returns the most recent order records for one identity,
// newest first.
func (s *OrderStore) ListByWorkflow(ctx context.Context, id domain.WorkflowID, limit int) ([]domain.OrderRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(
		`SELECT %s FROM orders WHERE broker = $1 AND symbol = $2 ORDER BY cycle_id DESC LIMIT $3`,
		orderSelectCols,
	)
	rows, err := s.pool.Query(ctx, query, id.Broker, id.Symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders %s: %w", id.Key(), err)
	}
	defer rows.Close()

	var records []domain.OrderRecord
	for rows.Next() {
		rec, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate orders %s: %w", id.Key(), err)
	}
	return records, nil
}

// Compile-time interface check.
var _ domain.OrderStore = (*OrderStore)(nil)
