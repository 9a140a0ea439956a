package decision

import (
	"time"

	"nof0-core/pkg/portfolio"
)

// BatchInput carries the per-cycle settings and live prices the
// Applier needs to turn each Action into a portfolio.ApplyInput.
type BatchInput struct {
	FeeRate         float64
	AutoBuyEnabled  bool
	AutoSellEnabled bool
	MaxPositions    int
	HistoryCap      int
	DefaultLeverage int
	BuyBatchSize    int
	Prices          map[string]float64
}

// Applier drives a batch of Actions through the Portfolio Engine in
// list order, after close-before-open reordering and buy-batch
// capping. It never halts a batch on a single failure: a rejected
// action yields a failed Trade and the next action is still attempted.
type Applier struct {
	engine *portfolio.Engine
}

// NewApplier wraps an existing Portfolio Engine.
func NewApplier(engine *portfolio.Engine) *Applier {
	return &Applier{engine: engine}
}

// Apply applies one pass's action batch for modelID and returns every
// Trade it produced, successful or failed, in application order.
func (ap *Applier) Apply(modelID string, actions []Action, vc ValidationContext, bi BatchInput, now time.Time) []portfolio.Trade {
	ordered := sortCloseFirst(actions)
	kept, dropped := capOpens(ordered, bi.BuyBatchSize)

	var trades []portfolio.Trade
	if dropped > 0 {
		trades = append(trades, portfolio.Trade{
			ModelID:   modelID,
			Status:    portfolio.TradeFailed,
			Message:   "batch size cap: dropped excess open action(s)",
			Timestamp: now,
		})
	}

	for _, a := range kept {
		if a.Kind == ActionHold {
			continue
		}
		if err := Validate(a, vc); err != nil {
			trades = append(trades, failedTrade(modelID, a, now, err.Error()))
			continue
		}

		in := portfolio.ApplyInput{
			Price:           bi.Prices[a.Symbol],
			FeeRate:         bi.FeeRate,
			AutoBuyEnabled:  bi.AutoBuyEnabled,
			AutoSellEnabled: bi.AutoSellEnabled,
			MaxPositions:    bi.MaxPositions,
			HistoryCap:      bi.HistoryCap,
		}
		d := toDecision(a, bi.DefaultLeverage)
		trade, err := ap.engine.Apply(modelID, d, in, now)
		if err != nil {
			trades = append(trades, failedTrade(modelID, a, now, err.Error()))
			continue
		}
		if trade != nil {
			trades = append(trades, *trade)
		}
	}
	return trades
}

func failedTrade(modelID string, a Action, now time.Time, message string) portfolio.Trade {
	return portfolio.Trade{
		ModelID:   modelID,
		Symbol:    a.Symbol,
		Signal:    actionSignal(a.Kind),
		Quantity:  a.Quantity,
		Status:    portfolio.TradeFailed,
		Message:   message,
		Timestamp: now,
	}
}

func actionSignal(kind ActionKind) portfolio.Signal {
	switch kind {
	case ActionOpenLong:
		return portfolio.SignalBuyToEnter
	case ActionOpenShort:
		return portfolio.SignalSellToEnter
	case ActionCloseLong, ActionCloseShort:
		return portfolio.SignalClosePosition
	default:
		return ""
	}
}
