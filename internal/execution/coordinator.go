// Package execution places at most one order per approved decision and
// durably records the outcome before the workflow advances.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// Coordinator submits approved decisions to a broker facade with idempotency
// keyed on (workflow identity, cycle id). Replays after a crash between
// broker submission and checkpoint write return the already-recorded order
// instead of submitting again.
type Coordinator struct {
	broker domain.Broker
	orders domain.OrderStore
	logger *slog.Logger
}

// NewCoordinator creates a Coordinator for one broker facade.
func NewCoordinator(broker domain.Broker, orders domain.OrderStore, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		broker: broker,
		orders: orders,
		logger: logger.With(slog.String("component", "execution_coordinator")),
	}
}

// Execute returns the durable OrderRecord for this (identity, cycle). If one
// already exists it is returned unchanged. Otherwise the decision is sized
// against equity, submitted to the broker, recorded (success or rejection),
// and returned. Broker-side rejection is a recorded outcome, not an error;
// only order-log failures are returned as errors.
func (c *Coordinator) Execute(ctx context.Context, id domain.WorkflowID, cycleID int64, decision domain.Decision, portfolio domain.PortfolioState) (domain.OrderRecord, error) {
	existing, err := c.orders.GetByCycle(ctx, id, cycleID)
	if err == nil {
		c.logger.Info("order already recorded for cycle, replaying",
			slog.String("workflow", id.Key()),
			slog.Int64("cycle_id", cycleID),
			slog.String("order_id", existing.ID),
		)
		return existing, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.OrderRecord{}, fmt.Errorf("execution: lookup order log: %w", err)
	}

	qty := sizeOrder(decision, portfolio)
	rec := domain.OrderRecord{
		ID:          uuid.NewString(),
		Workflow:    id,
		CycleID:     cycleID,
		Action:      decision.Action,
		Qty:         qty,
		SubmittedAt: time.Now(),
	}

	if qty <= 0 {
		rec.Status = domain.OrderStatusRejected
		rec.Reason = "computed order size is zero"
	} else {
		result, placeErr := c.broker.PlaceOrder(ctx, domain.OrderRequest{
			ClientOrderID: rec.ID,
			Symbol:        id.Symbol,
			Side:          decision.Action,
			Qty:           qty,
			Type:          "market",
		})
		if placeErr != nil {
			c.logger.Error("order placement failed",
				slog.String("workflow", id.Key()),
				slog.Int64("cycle_id", cycleID),
				slog.String("error", placeErr.Error()),
			)
			rec.Status = domain.OrderStatusRejected
			rec.Reason = placeErr.Error()
		} else {
			rec.BrokerOrderID = result.OrderID
			rec.Status = domain.OrderStatusSubmitted
			rec.Reason = result.Message
		}
	}

	if err := c.orders.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// A concurrent or crashed-and-resumed writer got there first.
			return c.orders.GetByCycle(ctx, id, cycleID)
		}
		return domain.OrderRecord{}, fmt.Errorf("execution: record order: %w", err)
	}

	c.logger.Info("order recorded",
		slog.String("workflow", id.Key()),
		slog.Int64("cycle_id", cycleID),
		slog.String("action", string(rec.Action)),
		slog.Float64("qty", rec.Qty),
		slog.String("status", string(rec.Status)),
	)
	return rec, nil
}

// sizeOrder converts the decision's equity fraction into a quantity at the
// target price. Rounded down to 4 decimal places so brokers with lot size
// checks do not reject on float noise.
func sizeOrder(decision domain.Decision, portfolio domain.PortfolioState) float64 {
	price := decision.TargetPrice
	if price <= 0 || portfolio.Equity <= 0 || decision.SizeFraction <= 0 {
		return 0
	}
	qty := portfolio.Equity * decision.SizeFraction / price
	return math.Floor(qty*10000) / 10000
}
