package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// AccountStore appends per-cycle portfolio snapshots to account_state.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Append records one portfolio snapshot for the workflow identity.
func (s *AccountStore) Append(ctx context.Context, id domain.WorkflowID, state domain.PortfolioState) error {
	const query = `
		INSERT INTO account_state (
			broker, symbol, cash, equity, buying_power,
			daily_pnl, daily_pnl_pct, drawdown_pct
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		id.Broker, id.Symbol,
		state.Cash, state.Equity, state.BuyingPower,
		state.DailyPnL, state.DailyPnLPct, state.DrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("postgres: append account state %s: %w", id.Key(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.AccountStore = (*AccountStore)(nil)
