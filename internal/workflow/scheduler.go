package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/quantagent/internal/domain"
)

// DefaultInterval is the cycle cadence when the config does not override it.
const DefaultInterval = 5 * time.Minute

// Scheduler owns the registry mapping workflow identity to instance and
// drives one cycle per active identity at a fixed interval. Identities run as
// independent cooperative tasks; cycles for one identity are strictly
// sequential.
type Scheduler struct {
	engine      *Engine
	checkpoints domain.CheckpointStore
	interval    time.Duration
	identities  []domain.WorkflowID
	registry    map[string]*domain.WorkflowInstance
	logger      *slog.Logger
}

// NewScheduler creates a Scheduler for the configured identities.
func NewScheduler(engine *Engine, checkpoints domain.CheckpointStore, identities []domain.WorkflowID, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		engine:      engine,
		checkpoints: checkpoints,
		interval:    interval,
		identities:  identities,
		registry:    make(map[string]*domain.WorkflowInstance, len(identities)),
		logger:      logger.With(slog.String("component", "workflow_scheduler")),
	}
}

// Run restores every identity from its last checkpoint, then runs cycles at
// the configured interval until ctx is cancelled. The first cycle for each
// identity starts immediately; an identity restored mid-cycle resumes from
// its persisted stage before settling into the cadence. A cycle ending in
// failed does not block the next one.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.restore(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range s.identities {
		inst := s.registry[id.Key()]
		g.Go(func() error {
			return s.runIdentity(ctx, inst)
		})
	}
	s.logger.Info("scheduler started",
		slog.Int("identities", len(s.identities)),
		slog.Duration("interval", s.interval),
	)
	return g.Wait()
}

// restore loads persisted instances into the registry, creating fresh ones
// for identities never seen before.
func (s *Scheduler) restore(ctx context.Context) error {
	for _, id := range s.identities {
		inst, err := s.checkpoints.Load(ctx, id)
		switch {
		case err == nil:
			if inst.MidCycle() {
				s.logger.Info("restored mid-cycle workflow",
					slog.String("workflow", id.Key()),
					slog.Int64("cycle_id", inst.CycleID),
					slog.String("stage", string(inst.Stage)),
				)
			}
		case errors.Is(err, domain.ErrNotFound):
			inst = domain.NewWorkflowInstance(id)
		default:
			return err
		}
		s.registry[id.Key()] = inst
	}
	return nil
}

func (s *Scheduler) runIdentity(ctx context.Context, inst *domain.WorkflowInstance) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.engine.RunCycle(ctx, inst); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Checkpoint failures leave the instance mid-cycle; the next
			// tick resumes from the last durable stage.
			s.logger.Error("cycle aborted",
				slog.String("workflow", inst.ID.Key()),
				slog.Int64("cycle_id", inst.CycleID),
				slog.String("error", err.Error()),
			)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Instances returns the current registry contents, for status reporting.
func (s *Scheduler) Instances() []*domain.WorkflowInstance {
	out := make([]*domain.WorkflowInstance, 0, len(s.registry))
	for _, id := range s.identities {
		if inst, ok := s.registry[id.Key()]; ok {
			out = append(out, inst)
		}
	}
	return out
}
