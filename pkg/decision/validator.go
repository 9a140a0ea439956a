package decision

import (
	"fmt"

	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
)

// ValidationContext carries the state a syntactic validation pass
// checks an Action against, prior to ever calling the Portfolio Engine
// (whose own Apply-time checks are the final authority).
type ValidationContext struct {
	Quotes      map[string]market.SnapshotRow
	Positions   []portfolio.Position
	MaxLeverage int
}

// Validate applies the cheap, stateless sanity checks the teacher
// performs before invoking the engine: symbol known and priced,
// quantity positive, leverage hint within bounds, and — for a close —
// a matching open position actually exists. It never mutates
// portfolio state; ApplyError-producing checks (margin, max
// positions) are left to the engine itself, which is the single
// source of truth for those invariants.
func Validate(a Action, vc ValidationContext) error {
	switch a.Kind {
	case ActionHold:
		return nil
	case ActionOpenLong, ActionOpenShort:
		if a.Symbol == "" {
			return fmt.Errorf("decision: symbol is required")
		}
		row, ok := vc.Quotes[a.Symbol]
		if !ok || !row.HasPrice {
			return fmt.Errorf("decision: %s has no known price", a.Symbol)
		}
		if a.Quantity <= 0 {
			return fmt.Errorf("decision: quantity must be positive, got %v", a.Quantity)
		}
		if a.LeverageHint < 0 || a.LeverageHint > vc.MaxLeverage {
			return fmt.Errorf("decision: leverage %d out of [0,%d]", a.LeverageHint, vc.MaxLeverage)
		}
		return nil
	case ActionCloseLong, ActionCloseShort:
		if a.Symbol == "" {
			return fmt.Errorf("decision: symbol is required")
		}
		side := portfolio.SideLong
		if a.Kind == ActionCloseShort {
			side = portfolio.SideShort
		}
		for _, p := range vc.Positions {
			if p.Symbol == a.Symbol && p.Side == side {
				return nil
			}
		}
		return fmt.Errorf("decision: no matching %s position to close for %s", side, a.Symbol)
	default:
		return fmt.Errorf("decision: unknown action %q", a.Kind)
	}
}
