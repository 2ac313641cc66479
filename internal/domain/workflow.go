package domain

import (
	"fmt"
	"time"
)

// WorkflowID identifies one independent decision pipeline instance.
type WorkflowID struct {
	Broker string `json:"broker"`
	Symbol string `json:"symbol"`
}

// Key returns the string identity under which checkpoints are stored.
func (id WorkflowID) Key() string {
	return fmt.Sprintf("%s:%s", id.Broker, id.Symbol)
}

func (id WorkflowID) String() string { return id.Key() }

// Stage is the workflow state machine position. Transitions:
// collect -> decide -> gate -> act -> done, with failed reachable from any
// stage on unrecoverable error. done and failed are terminal for the cycle.
type Stage string

const (
	StageCollect Stage = "collect"
	StageDecide  Stage = "decide"
	StageGate    Stage = "gate"
	StageAct     Stage = "act"
	StageDone    Stage = "done"
	StageFailed  Stage = "failed"
)

// Terminal reports whether the stage ends a cycle.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// WorkflowInstance is the full checkpointed state of one workflow identity.
// It is persisted after every stage transition and reloaded verbatim on
// restart, so every field must survive a JSON round trip.
//
// ActSubmitted distinguishes "act entered" from "act side effect confirmed":
// it is set only after the execution coordinator has durably recorded an
// OrderRecord, which is what makes resume-through-act safe.
type WorkflowInstance struct {
	ID             WorkflowID      `json:"id"`
	CycleID        int64           `json:"cycle_id"`
	Stage          Stage           `json:"stage"`
	Snapshot       *MarketSnapshot `json:"snapshot,omitempty"`
	Portfolio      *PortfolioState `json:"portfolio,omitempty"`
	Decision       *Decision       `json:"decision,omitempty"`
	Verdict        *RiskVerdict    `json:"verdict,omitempty"`
	Order          *OrderRecord    `json:"order,omitempty"`
	ActSubmitted   bool            `json:"act_submitted"`
	CycleStartedAt time.Time       `json:"cycle_started_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	LastError      string          `json:"last_error,omitempty"`
}

// NewWorkflowInstance creates a fresh instance for an identity at cycle 1.
func NewWorkflowInstance(id WorkflowID) *WorkflowInstance {
	return &WorkflowInstance{ID: id, CycleID: 0, Stage: StageDone}
}

// BeginCycle resets the instance for a new cycle: the cycle id is incremented
// and all per-cycle data is cleared. Checkpoint history from the previous
// cycle is overwritten by the first save of the new one.
func (w *WorkflowInstance) BeginCycle(now time.Time) {
	w.CycleID++
	w.Stage = StageCollect
	w.Snapshot = nil
	w.Portfolio = nil
	w.Decision = nil
	w.Verdict = nil
	w.Order = nil
	w.ActSubmitted = false
	w.CycleStartedAt = now
	w.UpdatedAt = now
	w.LastError = ""
}

// MidCycle reports whether the instance was checkpointed between a cycle
// start and a terminal stage, i.e. the previous run crashed and the cycle
// must be resumed rather than restarted.
func (w *WorkflowInstance) MidCycle() bool {
	return w.CycleID > 0 && !w.Stage.Terminal()
}
