// Package decision implements the Decision Applier (C8): it turns a
// parsed list of LLM actions into Portfolio Engine calls, closes before
// opens and otherwise in list order, recording a failed Trade for every
// rejection without halting the batch.
package decision

import "nof0-core/pkg/portfolio"

// ActionKind is the tagged variant an LLM response decodes into,
// mirroring portfolio.Kind plus the no-op Hold.
type ActionKind string

const (
	ActionOpenLong   ActionKind = "open_long"
	ActionOpenShort  ActionKind = "open_short"
	ActionCloseLong  ActionKind = "close_long"
	ActionCloseShort ActionKind = "close_short"
	ActionHold       ActionKind = "hold"
)

// Action is the structured-decode target for one LLM-proposed action.
// LeverageHint of 0 means "ask the LLM" and is resolved by
// resolveLeverage before it ever reaches the Portfolio Engine.
type Action struct {
	Kind         ActionKind `json:"action"`
	Symbol       string     `json:"symbol,omitempty"`
	Quantity     float64    `json:"quantity,omitempty"`
	LeverageHint int        `json:"leverage,omitempty"`
	Reasoning    string     `json:"reasoning,omitempty"`
}

// ActionBatch is the full structured-decode target for one pass's
// response: zero or more actions, each carrying its own Reasoning.
type ActionBatch struct {
	Actions []Action `json:"actions"`
}

// resolveLeverage replaces the ask-the-LLM sentinel (0) with the
// model's configured default leverage, per spec: an unresolved 0 must
// never reach Apply.
func resolveLeverage(hint, modelDefault int) int {
	if hint <= 0 {
		return modelDefault
	}
	return hint
}

// toDecision converts a validated Action into the portfolio.Decision
// Apply consumes.
func toDecision(a Action, modelDefaultLeverage int) portfolio.Decision {
	switch a.Kind {
	case ActionOpenLong:
		return portfolio.NewOpen(portfolio.OpenParams{
			Symbol:   a.Symbol,
			Side:     portfolio.SideLong,
			Qty:      a.Quantity,
			Leverage: resolveLeverage(a.LeverageHint, modelDefaultLeverage),
		})
	case ActionOpenShort:
		return portfolio.NewOpen(portfolio.OpenParams{
			Symbol:   a.Symbol,
			Side:     portfolio.SideShort,
			Qty:      a.Quantity,
			Leverage: resolveLeverage(a.LeverageHint, modelDefaultLeverage),
		})
	case ActionCloseLong, ActionCloseShort:
		var qty *float64
		if a.Quantity > 0 {
			q := a.Quantity
			qty = &q
		}
		side := portfolio.SideLong
		if a.Kind == ActionCloseShort {
			side = portfolio.SideShort
		}
		return portfolio.NewClose(portfolio.CloseParams{Symbol: a.Symbol, Side: side, Qty: qty})
	default:
		return portfolio.Decision{}
	}
}
