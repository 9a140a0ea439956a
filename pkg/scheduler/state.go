// Package scheduler implements the Per-Model Scheduler (C9): a driver
// that wakes on the configured trading frequency and enqueues a cycle
// per eligible model, plus manual execute/execute-buy/execute-sell
// requests, enforcing at-most-one-concurrent-cycle per model.
package scheduler

import "time"

// CycleState is one stage of a running cycle's explicit state machine.
// Done and Failed both release the model lock.
type CycleState string

const (
	StateIdle            CycleState = "idle"
	StateGatheringMarket CycleState = "gathering_market"
	StatePromptingLLM    CycleState = "prompting_llm"
	StateApplyingBuy     CycleState = "applying_buy"
	StateApplyingSell    CycleState = "applying_sell"
	StatePersisting      CycleState = "persisting"
	StateDone            CycleState = "done"
	StateFailed          CycleState = "failed"
)

// ExecuteScope selects which passes a manually triggered cycle runs.
type ExecuteScope string

const (
	ScopeFull ExecuteScope = "full"
	ScopeBuy  ExecuteScope = "buy"
	ScopeSell ExecuteScope = "sell"
)

// ModelStatus is the read-only view of a model's scheduling state,
// returned by Scheduler.Status for observability/HTTP surfacing.
type ModelStatus struct {
	ModelID   string
	Enabled   bool
	Running   bool
	State     CycleState
	LastRunAt time.Time
}
