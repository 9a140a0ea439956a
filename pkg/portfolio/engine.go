package portfolio

import (
	"sync"
	"time"
)

const (
	defaultHistoryCap = 1000
	minLeverage       = 1
	maxLeverage       = 125
)

// ApplyInput carries the per-call context Apply needs that isn't part
// of the Decision itself: the current mark price, fee rate, and the
// model's current trading settings. Settings are supplied by the
// caller (the Decision Applier, C8) rather than stored on Engine, so
// Apply stays a pure function of (state, decision, input).
type ApplyInput struct {
	Price           float64
	FeeRate         float64
	AutoBuyEnabled  bool
	AutoSellEnabled bool
	MaxPositions    int
	HistoryCap      int
}

type portfolioState struct {
	mu             sync.Mutex
	cash           float64
	initialCapital float64
	realizedPnl    float64
	positions      map[positionKey]Position
	history        []AccountValueSample
}

// Engine is the Portfolio Engine (C5): a pure, deterministic per-model
// accounting fold over Open/Close/Adjust decisions. Apply either
// commits its whole effect or returns an error and mutates nothing.
type Engine struct {
	mu     sync.Mutex
	models map[string]*portfolioState
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{models: make(map[string]*portfolioState)}
}

// Seed initializes a model's starting cash. Calling it on a model that
// already exists is a no-op; models should be seeded once, at creation.
func (e *Engine) Seed(modelID string, initialCapital float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.models[modelID]; ok {
		return
	}
	e.models[modelID] = &portfolioState{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[positionKey]Position),
	}
}

func (e *Engine) state(modelID string) *portfolioState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.models[modelID]
	if !ok {
		st = &portfolioState{positions: make(map[positionKey]Position)}
		e.models[modelID] = st
	}
	return st
}

// Apply folds one decision into modelID's state and returns the Trade
// record it produced (nil for Adjust, which never trades). now is
// supplied by the caller so Apply stays deterministic and testable.
func (e *Engine) Apply(modelID string, d Decision, input ApplyInput, now time.Time) (*Trade, error) {
	st := e.state(modelID)
	st.mu.Lock()
	defer st.mu.Unlock()

	switch d.Kind {
	case KindOpen:
		return st.applyOpen(modelID, d.Open, input, now)
	case KindClose:
		return st.applyClose(modelID, d.Close, input, now)
	case KindAdjust:
		// Settings mutation lives on the caller's model record (C8/C10
		// own AutoBuy/AutoSell/MaxPositions/Leverage/prompts); Engine
		// only owns cash/positions/history, so Adjust is a no-op here
		// and never produces a Trade.
		return nil, nil
	default:
		return nil, applyErr(ErrBadQuantity, "unknown decision kind %q", d.Kind)
	}
}

func (st *portfolioState) applyOpen(modelID string, p *OpenParams, in ApplyInput, now time.Time) (*Trade, error) {
	if !in.AutoBuyEnabled {
		return nil, applyErr(ErrDisabled, "auto-buy disabled for model %s", modelID)
	}
	if p.Qty <= 0 {
		return nil, applyErr(ErrBadQuantity, "qty must be > 0, got %v", p.Qty)
	}
	if p.Leverage < minLeverage || p.Leverage > maxLeverage {
		return nil, applyErr(ErrBadQuantity, "leverage %d out of [%d,%d] (0 must be resolved before Apply)", p.Leverage, minLeverage, maxLeverage)
	}
	if in.Price <= 0 {
		return nil, applyErr(ErrUnknownSymbol, "no price available for %s", p.Symbol)
	}

	key := positionKey{symbol: p.Symbol, side: p.Side}
	_, alreadyHeld := st.positions[key]
	if !alreadyHeld && len(st.positions) >= in.MaxPositions {
		return nil, applyErr(ErrMaxPositionsReached, "model %s already holds %d positions (max %d)", modelID, len(st.positions), in.MaxPositions)
	}

	notional := p.Qty * in.Price
	fee := notional * in.FeeRate
	margin := notional / float64(p.Leverage)
	if notional*(1+in.FeeRate) > st.cash*float64(p.Leverage) {
		return nil, applyErr(ErrInsufficientMargin, "notional %.8f exceeds cash %.8f * leverage %d", notional, st.cash, p.Leverage)
	}

	st.cash -= margin + fee

	if existing, ok := st.positions[key]; ok {
		totalQty := existing.Qty + p.Qty
		existing.AvgPrice = (existing.AvgPrice*existing.Qty + in.Price*p.Qty) / totalQty
		existing.Qty = totalQty
		st.positions[key] = existing
	} else {
		st.positions[key] = Position{
			Symbol:   p.Symbol,
			Side:     p.Side,
			Qty:      p.Qty,
			AvgPrice: in.Price,
			Leverage: p.Leverage,
			OpenedAt: now,
		}
	}

	signal := SignalBuyToEnter
	if p.Side == SideShort {
		signal = SignalSellToEnter
	}
	trade := &Trade{
		ModelID:   modelID,
		Symbol:    p.Symbol,
		Side:      p.Side,
		Signal:    signal,
		Price:     in.Price,
		Quantity:  p.Qty,
		Leverage:  p.Leverage,
		Fee:       fee,
		Status:    TradeSuccess,
		Timestamp: now,
	}
	st.appendHistory(p.Symbol, in, now)
	return trade, nil
}

func (st *portfolioState) applyClose(modelID string, p *CloseParams, in ApplyInput, now time.Time) (*Trade, error) {
	if !in.AutoSellEnabled {
		return nil, applyErr(ErrDisabled, "auto-sell disabled for model %s: closing is forbidden while disabled", modelID)
	}
	key := positionKey{symbol: p.Symbol, side: p.Side}
	pos, ok := st.positions[key]
	if !ok {
		return nil, applyErr(ErrNoSuchPosition, "model %s holds no %s position in %s", modelID, p.Side, p.Symbol)
	}
	if in.Price <= 0 {
		return nil, applyErr(ErrUnknownSymbol, "no price available for %s", p.Symbol)
	}

	closeQty := pos.Qty
	if p.Qty != nil {
		if *p.Qty <= 0 {
			return nil, applyErr(ErrBadQuantity, "close qty must be > 0, got %v", *p.Qty)
		}
		closeQty = *p.Qty
		if closeQty > pos.Qty {
			closeQty = pos.Qty
		}
	}

	notional := closeQty * in.Price
	fee := notional * in.FeeRate
	margin := closeQty * pos.AvgPrice / float64(pos.Leverage)
	grossPnl := (in.Price - pos.AvgPrice) * closeQty * pos.Side.dirSign()
	netPnl := grossPnl - fee

	st.cash += margin + grossPnl - fee
	st.realizedPnl += netPnl

	remaining := pos.Qty - closeQty
	if remaining <= 0 {
		delete(st.positions, key)
	} else {
		pos.Qty = remaining
		st.positions[key] = pos
	}

	trade := &Trade{
		ModelID:   modelID,
		Symbol:    p.Symbol,
		Side:      pos.Side,
		Signal:    SignalClosePosition,
		Price:     in.Price,
		Quantity:  closeQty,
		Leverage:  pos.Leverage,
		Pnl:       netPnl,
		Fee:       fee,
		Status:    TradeSuccess,
		Timestamp: now,
	}
	st.appendHistory(p.Symbol, in, now)
	return trade, nil
}

// appendHistory marks the just-traded symbol at in.Price and every
// other open position at its own avgPrice (zero unrealized pnl): Apply
// only ever learns one fresh price per call. Snapshot is the accurate,
// fully marked-to-market read; history is a best-effort timeline.
func (st *portfolioState) appendHistory(tradedSymbol string, in ApplyInput, now time.Time) {
	histCap := in.HistoryCap
	if histCap <= 0 {
		histCap = defaultHistoryCap
	}
	var positionsValue, unrealized float64
	for _, pos := range st.positions {
		price := pos.AvgPrice
		if pos.Symbol == tradedSymbol {
			price = in.Price
		}
		positionsValue += pos.PositionValue(price)
		unrealized += pos.UnrealizedPnl(price)
	}
	sample := AccountValueSample{
		Timestamp:      now,
		TotalValue:     st.cash + positionsValue,
		Cash:           st.cash,
		PositionsValue: positionsValue,
		RealizedPnl:    st.realizedPnl,
		UnrealizedPnl:  unrealized,
	}
	st.history = append(st.history, sample)
	if len(st.history) > histCap {
		st.history = st.history[len(st.history)-histCap:]
	}
}

// Snapshot is a pure read: it computes UnrealizedPnl and TotalValue on
// the fly from markPrice and never mutates engine state. markPrice
// should return (0, false) for a symbol with no known price; such a
// position contributes 0 to PositionsValue/UnrealizedPnl rather than
// panicking or guessing.
func (e *Engine) Snapshot(modelID string, markPrice func(symbol string) (float64, bool)) Snapshot {
	e.mu.Lock()
	st, ok := e.models[modelID]
	e.mu.Unlock()
	if !ok {
		return Snapshot{ModelID: modelID, Positions: []Position{}, History: []AccountValueSample{}}
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	positions := make([]Position, 0, len(st.positions))
	var positionsValue, unrealized float64
	for _, pos := range st.positions {
		positions = append(positions, pos)
		price, ok := markPrice(pos.Symbol)
		if !ok {
			continue
		}
		positionsValue += pos.PositionValue(price)
		unrealized += pos.UnrealizedPnl(price)
	}
	history := make([]AccountValueSample, len(st.history))
	copy(history, st.history)

	return Snapshot{
		ModelID:        modelID,
		Cash:           st.cash,
		InitialCapital: st.initialCapital,
		RealizedPnl:    st.realizedPnl,
		UnrealizedPnl:  unrealized,
		TotalValue:     st.cash + positionsValue,
		Positions:      positions,
		History:        history,
	}
}
