package app

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantagent/internal/execution"
	"github.com/alanyoungcy/quantagent/internal/snapshot"
	"github.com/alanyoungcy/quantagent/internal/workflow"
)

// TradeMode runs the full pipeline against live broker accounts: transport
// adapters feed the sink through the bridge while the scheduler drives one
// checkpointed decision loop per configured identity.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("identities", len(deps.Identities)),
		slog.Int("adapters", len(deps.Adapters)),
	)
	return a.runPipeline(ctx, deps)
}

// PaperMode runs the same pipeline with order execution and account state
// simulated in memory. Market data, checkpointing, and the order log are all
// real, so a paper run exercises every durable path except the broker's
// order endpoint.
func (a *App) PaperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting paper mode",
		slog.Int("identities", len(deps.Identities)),
		slog.Float64("starting_cash", a.cfg.Paper.StartingCash),
	)
	return a.runPipeline(ctx, deps)
}

// runPipeline assembles the per-broker collaborator sets, starts the
// transport adapters and the ingestion bridge, and blocks in the scheduler
// until ctx is cancelled or a fatal error surfaces.
func (a *App) runPipeline(ctx context.Context, deps *Dependencies) error {
	logger := slog.Default()

	sets := make(map[string]workflow.BrokerSet, len(deps.Adapters))
	for name, entry := range deps.Adapters {
		sets[name] = workflow.BrokerSet{
			Broker:    entry.Exec,
			Snapshots: snapshot.NewBuilder(deps.Bars, entry.Live, 0, logger),
			Executor:  execution.NewCoordinator(entry.Exec, deps.Orders, logger),
		}
	}

	engine := workflow.NewEngine(
		sets,
		deps.Decider,
		deps.Checkpoints,
		deps.Accounts,
		deps.Notifier,
		a.cfg.Workflow.StageTimeout.Duration,
		logger,
	)
	scheduler := workflow.NewScheduler(
		engine,
		deps.Checkpoints,
		deps.Identities,
		a.cfg.Workflow.Interval.Duration,
		logger,
	)

	g, ctx := errgroup.WithContext(ctx)
	for _, entry := range deps.Adapters {
		entry := entry
		g.Go(func() error { return entry.Stream.Run(ctx) })
	}
	g.Go(func() error { return deps.Bridge.Run(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })
	return g.Wait()
}
