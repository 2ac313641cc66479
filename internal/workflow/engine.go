// Package workflow implements the checkpointed decision state machine:
// collect -> decide -> gate -> act -> done, with failed reachable from any
// stage. The full instance is persisted after every transition, before the
// next stage's side effect, so a crash at any point resumes exactly.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/quantagent/internal/domain"
	"github.com/alanyoungcy/quantagent/internal/guardrail"
)

// DefaultStageTimeout bounds each suspending stage (collect, decide, act).
const DefaultStageTimeout = 60 * time.Second

// SnapshotBuilder is the collect-stage market data collaborator.
type SnapshotBuilder interface {
	Build(ctx context.Context, symbol string) (domain.MarketSnapshot, error)
}

// Decider is the reasoning collaborator invoked during decide.
type Decider interface {
	Decide(ctx context.Context, snap domain.MarketSnapshot, portfolio domain.PortfolioState) (domain.Decision, error)
}

// OrderExecutor is the act-stage collaborator. It must be idempotent per
// (identity, cycle id).
type OrderExecutor interface {
	Execute(ctx context.Context, id domain.WorkflowID, cycleID int64, decision domain.Decision, portfolio domain.PortfolioState) (domain.OrderRecord, error)
}

// Reporter receives terminal-cycle notifications. notify.Notifier satisfies it.
type Reporter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// BrokerSet bundles the per-broker collaborators a workflow identity needs.
type BrokerSet struct {
	Broker    domain.Broker
	Snapshots SnapshotBuilder
	Executor  OrderExecutor
}

// Engine drives one cycle of the state machine per invocation. It is safe to
// run cycles for different identities concurrently; the scheduler guarantees
// cycles for the same identity never overlap.
type Engine struct {
	brokers      map[string]BrokerSet
	decider      Decider
	checkpoints  domain.CheckpointStore
	accounts     domain.AccountStore
	reporter     Reporter
	stageTimeout time.Duration
	logger       *slog.Logger
}

// NewEngine creates an Engine. accounts and reporter may be nil; timeout <= 0
// selects DefaultStageTimeout.
func NewEngine(
	brokers map[string]BrokerSet,
	dec Decider,
	checkpoints domain.CheckpointStore,
	accounts domain.AccountStore,
	reporter Reporter,
	stageTimeout time.Duration,
	logger *slog.Logger,
) *Engine {
	if stageTimeout <= 0 {
		stageTimeout = DefaultStageTimeout
	}
	return &Engine{
		brokers:      brokers,
		decider:      dec,
		checkpoints:  checkpoints,
		accounts:     accounts,
		reporter:     reporter,
		stageTimeout: stageTimeout,
		logger:       logger.With(slog.String("component", "workflow_engine")),
	}
}

// RunCycle advances the instance until it reaches a terminal stage. A fresh
// cycle is begun unless the instance was loaded mid-cycle from a checkpoint,
// in which case it resumes from the persisted stage. Only checkpoint
// persistence failures are returned as errors; every workflow-level failure
// lands the instance in the failed stage instead.
func (e *Engine) RunCycle(ctx context.Context, inst *domain.WorkflowInstance) error {
	set, ok := e.brokers[inst.ID.Broker]
	if !ok {
		return fmt.Errorf("workflow: no broker registered for %q", inst.ID.Broker)
	}

	if inst.MidCycle() {
		e.logger.Info("resuming cycle from checkpoint",
			slog.String("workflow", inst.ID.Key()),
			slog.Int64("cycle_id", inst.CycleID),
			slog.String("stage", string(inst.Stage)),
		)
	} else {
		inst.BeginCycle(time.Now())
		if err := e.checkpoint(ctx, inst); err != nil {
			return err
		}
	}

	for !inst.Stage.Terminal() {
		next := e.runStage(ctx, set, inst)
		inst.Stage = next
		inst.UpdatedAt = time.Now()
		if err := e.checkpoint(ctx, inst); err != nil {
			return err
		}
	}

	e.finishCycle(ctx, set, inst)
	return nil
}

// runStage executes the side effect of the current stage and returns the next
// stage. Unrecoverable errors record the failure on the instance and return
// failed.
func (e *Engine) runStage(ctx context.Context, set BrokerSet, inst *domain.WorkflowInstance) domain.Stage {
	switch inst.Stage {
	case domain.StageCollect:
		return e.collect(ctx, set, inst)
	case domain.StageDecide:
		return e.decide(ctx, inst)
	case domain.StageGate:
		return e.gate(inst)
	case domain.StageAct:
		return e.act(ctx, set, inst)
	default:
		inst.LastError = fmt.Sprintf("unexpected stage %q", inst.Stage)
		return domain.StageFailed
	}
}

func (e *Engine) collect(ctx context.Context, set BrokerSet, inst *domain.WorkflowInstance) domain.Stage {
	stageCtx, cancel := context.WithTimeoutCause(ctx, e.stageTimeout, domain.ErrStageTimeout)
	defer cancel()

	snap, err := set.Snapshots.Build(stageCtx, inst.ID.Symbol)
	if err != nil {
		return e.failStage(inst, "collect", fmt.Errorf("snapshot: %w", err))
	}
	inst.Snapshot = &snap

	portfolio, err := set.Broker.Portfolio(stageCtx)
	if err != nil {
		return e.failStage(inst, "collect", fmt.Errorf("portfolio: %w", err))
	}
	inst.Portfolio = &portfolio

	if !snap.Sufficient {
		// Cannot decide this cycle; not an error. Decide and gate are skipped.
		e.logger.Info("insufficient market data, ending cycle",
			slog.String("workflow", inst.ID.Key()),
			slog.Int64("cycle_id", inst.CycleID),
			slog.Int("bars", len(snap.Bars)),
		)
		return domain.StageDone
	}
	return domain.StageDecide
}

func (e *Engine) decide(ctx context.Context, inst *domain.WorkflowInstance) domain.Stage {
	stageCtx, cancel := context.WithTimeoutCause(ctx, e.stageTimeout, domain.ErrStageTimeout)
	defer cancel()

	decision, err := e.decider.Decide(stageCtx, *inst.Snapshot, *inst.Portfolio)
	if err != nil {
		return e.failStage(inst, "decide", err)
	}
	if err := decision.Validate(); err != nil {
		return e.failStage(inst, "decide", err)
	}
	inst.Decision = &decision
	return domain.StageGate
}

// gate never suspends: the guardrail is pure.
func (e *Engine) gate(inst *domain.WorkflowInstance) domain.Stage {
	var current float64
	if inst.Snapshot != nil {
		current = inst.Snapshot.CurrentPrice()
	}
	verdict := guardrail.Evaluate(inst.Decision, *inst.Portfolio, current)
	inst.Verdict = &verdict

	if verdict.Passed && inst.Decision.Actionable() {
		return domain.StageAct
	}
	if !verdict.Passed {
		e.logger.Info("guardrail rejected decision",
			slog.String("workflow", inst.ID.Key()),
			slog.Int64("cycle_id", inst.CycleID),
			slog.String("reason", verdict.Reason),
		)
	}
	return domain.StageDone
}

func (e *Engine) act(ctx context.Context, set BrokerSet, inst *domain.WorkflowInstance) domain.Stage {
	if inst.ActSubmitted && inst.Order != nil {
		// Side effect already confirmed durable before a crash; do not re-run.
		return domain.StageDone
	}

	stageCtx, cancel := context.WithTimeoutCause(ctx, e.stageTimeout, domain.ErrStageTimeout)
	defer cancel()

	rec, err := set.Executor.Execute(stageCtx, inst.ID, inst.CycleID, *inst.Decision, *inst.Portfolio)
	if err != nil {
		return e.failStage(inst, "act", fmt.Errorf("%v: %w", err, domain.ErrExecution))
	}
	inst.Order = &rec
	inst.ActSubmitted = true
	// Broker-side rejection is recorded in the order status, not retried.
	return domain.StageDone
}

func (e *Engine) failStage(inst *domain.WorkflowInstance, stage string, err error) domain.Stage {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%s: %w", stage, domain.ErrStageTimeout)
	}
	inst.LastError = err.Error()
	e.logger.Error("stage failed",
		slog.String("workflow", inst.ID.Key()),
		slog.Int64("cycle_id", inst.CycleID),
		slog.String("stage", stage),
		slog.String("error", err.Error()),
	)
	return domain.StageFailed
}

// checkpoint persists the instance. Persistence failures are fatal to the
// cycle because resume correctness depends on checkpoint integrity.
func (e *Engine) checkpoint(ctx context.Context, inst *domain.WorkflowInstance) error {
	if err := e.checkpoints.Save(ctx, inst.ID, inst); err != nil {
		e.logger.Error("checkpoint save failed",
			slog.String("workflow", inst.ID.Key()),
			slog.Int64("cycle_id", inst.CycleID),
			slog.String("stage", string(inst.Stage)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("workflow: checkpoint %s: %v: %w", inst.ID.Key(), err, domain.ErrCheckpoint)
	}
	return nil
}

// finishCycle reports the terminal outcome and appends the account snapshot.
func (e *Engine) finishCycle(ctx context.Context, set BrokerSet, inst *domain.WorkflowInstance) {
	e.logger.Info("cycle complete",
		slog.String("workflow", inst.ID.Key()),
		slog.Int64("cycle_id", inst.CycleID),
		slog.String("stage", string(inst.Stage)),
		slog.String("summary", cycleSummary(inst)),
	)

	if e.reporter != nil {
		event := "cycle_done"
		if inst.Stage == domain.StageFailed {
			event = "cycle_failed"
		}
		title := fmt.Sprintf("%s cycle %d: %s", inst.ID.Key(), inst.CycleID, inst.Stage)
		if err := e.reporter.Notify(ctx, event, title, cycleSummary(inst)); err != nil {
			e.logger.Warn("terminal cycle notification failed", slog.String("error", err.Error()))
		}
	}

	if e.accounts != nil && inst.Portfolio != nil {
		if err := e.accounts.Append(ctx, inst.ID, *inst.Portfolio); err != nil {
			e.logger.Warn("account state snapshot failed", slog.String("error", err.Error()))
		}
	}
}

// cycleSummary renders the action taken (or none) and the reason, for the
// operator-facing notification.
func cycleSummary(inst *domain.WorkflowInstance) string {
	switch {
	case inst.Stage == domain.StageFailed:
		return fmt.Sprintf("failed: %s", inst.LastError)
	case inst.Order != nil:
		return fmt.Sprintf("%s %.4f %s (%s)", inst.Order.Action, inst.Order.Qty, inst.ID.Symbol, inst.Order.Status)
	case inst.Verdict != nil && !inst.Verdict.Passed:
		return fmt.Sprintf("no order: %s", inst.Verdict.Reason)
	case inst.Decision != nil:
		return fmt.Sprintf("no order: action=%s confidence=%.2f", inst.Decision.Action, inst.Decision.Confidence)
	case inst.Snapshot != nil && !inst.Snapshot.Sufficient:
		return "no order: insufficient market data"
	default:
		return "no order"
	}
}
