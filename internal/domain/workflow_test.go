package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflowIDKey(t *testing.T) {
	id := WorkflowID{Broker: "oanda", Symbol: "EUR_USD"}
	assert.Equal(t, "oanda:EUR_USD", id.Key())
}

func TestStageTerminal(t *testing.T) {
	assert.True(t, StageDone.Terminal())
	assert.True(t, StageFailed.Terminal())
	for _, s := range []Stage{StageCollect, StageDecide, StageGate, StageAct} {
		assert.False(t, s.Terminal(), "stage %s", s)
	}
}

func TestBeginCycleResetsState(t *testing.T) {
	inst := NewWorkflowInstance(WorkflowID{Broker: "projectx", Symbol: "MNQ"})
	assert.False(t, inst.MidCycle())

	now := time.Now()
	inst.BeginCycle(now)
	assert.Equal(t, int64(1), inst.CycleID)
	assert.Equal(t, StageCollect, inst.Stage)
	assert.True(t, inst.MidCycle())

	inst.Snapshot = &MarketSnapshot{Symbol: "MNQ", Sufficient: true}
	inst.Decision = &Decision{Action: ActionBuy, Confidence: 0.8}
	inst.Order = &OrderRecord{ID: "abc"}
	inst.ActSubmitted = true
	inst.LastError = "boom"
	inst.Stage = StageFailed

	inst.BeginCycle(now.Add(time.Minute))
	assert.Equal(t, int64(2), inst.CycleID)
	assert.Equal(t, StageCollect, inst.Stage)
	assert.Nil(t, inst.Snapshot)
	assert.Nil(t, inst.Decision)
	assert.Nil(t, inst.Order)
	assert.False(t, inst.ActSubmitted)
	assert.Empty(t, inst.LastError)
}

func TestMidCycleAfterTerminal(t *testing.T) {
	inst := NewWorkflowInstance(WorkflowID{Broker: "oanda", Symbol: "EUR_USD"})
	inst.BeginCycle(time.Now())
	inst.Stage = StageDone
	assert.False(t, inst.MidCycle())
	inst.Stage = StageFailed
	assert.False(t, inst.MidCycle())
	inst.Stage = StageAct
	assert.True(t, inst.MidCycle())
}

// Checkpoints are JSON; a crash-resume round trip must preserve every field
// that resume correctness depends on.
func TestWorkflowInstanceRoundTrip(t *testing.T) {
	inst := &WorkflowInstance{
		ID:      WorkflowID{Broker: "oanda", Symbol: "EUR_USD"},
		CycleID: 7,
		Stage:   StageAct,
		Snapshot: &MarketSnapshot{
			Symbol:     "EUR_USD",
			Signals:    map[string]float64{"current_price": 1.1},
			Sufficient: true,
		},
		Portfolio:    &PortfolioState{Equity: 100_000, DailyPnLPct: -0.01},
		Decision:     &Decision{Action: ActionBuy, Confidence: 0.72, TargetPrice: 1.1},
		Verdict:      &RiskVerdict{Passed: true, Reason: "all risk checks passed"},
		ActSubmitted: false,
		LastError:    "",
	}

	data, err := json.Marshal(inst)
	require.NoError(t, err)

	var back WorkflowInstance
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, inst.ID, back.ID)
	assert.Equal(t, inst.CycleID, back.CycleID)
	assert.Equal(t, inst.Stage, back.Stage)
	assert.True(t, back.MidCycle())
	require.NotNil(t, back.Decision)
	assert.Equal(t, ActionBuy, back.Decision.Action)
	require.NotNil(t, back.Verdict)
	assert.True(t, back.Verdict.Passed)
	assert.False(t, back.ActSubmitted)
}

func TestDecisionValidate(t *testing.T) {
	ok := Decision{Action: ActionHold, Confidence: 0.5}
	require.NoError(t, ok.Validate())

	bad := Decision{Action: "SHORT", Confidence: 0.5}
	assert.ErrorIs(t, bad.Validate(), ErrDecision)

	outOfRange := Decision{Action: ActionBuy, Confidence: 1.5}
	assert.ErrorIs(t, outOfRange.Validate(), ErrDecision)
}

func TestDecisionActionable(t *testing.T) {
	assert.True(t, Decision{Action: ActionBuy}.Actionable())
	assert.True(t, Decision{Action: ActionSell}.Actionable())
	assert.False(t, Decision{Action: ActionHold}.Actionable())
}

func TestSnapshotCurrentPrice(t *testing.T) {
	s := MarketSnapshot{Signals: map[string]float64{"current_price": 42}}
	assert.Equal(t, 42.0, s.CurrentPrice())

	s = MarketSnapshot{Bars: []Bar{{Close: 10}, {Close: 11}}}
	assert.Equal(t, 11.0, s.CurrentPrice())

	assert.Equal(t, 0.0, MarketSnapshot{}.CurrentPrice())
}

func TestTickKey(t *testing.T) {
	ts := time.Unix(1700000000, 123)
	a := Tick{Symbol: "EUR_USD", Timestamp: ts}
	b := Tick{Symbol: "EUR_USD", Timestamp: ts, Bid: 9}
	assert.Equal(t, a.Key(), b.Key())
	c := Tick{Symbol: "EUR_USD", Timestamp: ts.Add(time.Nanosecond)}
	assert.NotEqual(t, a.Key(), c.Key())
}
