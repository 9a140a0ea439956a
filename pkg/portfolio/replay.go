package portfolio

import "sort"

// Replay reconstructs a Snapshot by folding successful trades, in
// timestamp order, over a seed snapshot -- the same pure-fold design
// Apply uses live, run here against a trade log instead of a single
// decision. Failed trades are skipped since they never mutated state
// when they were first applied. This is what the Store uses to recover
// a model's portfolio after a restart: seed with the last durable
// snapshot, replay whatever trades were recorded after it.
func Replay(seed Snapshot, trades []Trade) Snapshot {
	sorted := make([]Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	cash := seed.Cash
	realized := seed.RealizedPnl
	positions := make(map[positionKey]Position, len(seed.Positions))
	for _, p := range seed.Positions {
		positions[positionKey{symbol: p.Symbol, side: p.Side}] = p
	}

	for _, t := range sorted {
		if t.Status != TradeSuccess {
			continue
		}
		switch t.Signal {
		case SignalBuyToEnter, SignalSellToEnter:
			replayOpen(positions, &cash, t)
		case SignalClosePosition:
			replayClose(positions, &cash, &realized, t)
		}
	}

	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, p)
	}
	return Snapshot{
		ModelID:        seed.ModelID,
		Cash:           cash,
		InitialCapital: seed.InitialCapital,
		RealizedPnl:    realized,
		Positions:      out,
	}
}

func replayOpen(positions map[positionKey]Position, cash *float64, t Trade) {
	if t.Leverage <= 0 {
		return
	}
	notional := t.Quantity * t.Price
	margin := notional / float64(t.Leverage)
	*cash -= margin + t.Fee

	key := positionKey{symbol: t.Symbol, side: t.Side}
	if existing, ok := positions[key]; ok {
		totalQty := existing.Qty + t.Quantity
		existing.AvgPrice = (existing.Qty*existing.AvgPrice + t.Quantity*t.Price) / totalQty
		existing.Qty = totalQty
		existing.Leverage = t.Leverage
		positions[key] = existing
		return
	}
	positions[key] = Position{
		Symbol:   t.Symbol,
		Side:     t.Side,
		Qty:      t.Quantity,
		AvgPrice: t.Price,
		Leverage: t.Leverage,
		OpenedAt: t.Timestamp,
	}
}

func replayClose(positions map[positionKey]Position, cash, realized *float64, t Trade) {
	key := positionKey{symbol: t.Symbol, side: t.Side}
	pos, ok := positions[key]
	if !ok || pos.Leverage <= 0 {
		return
	}
	margin := t.Quantity * pos.AvgPrice / float64(pos.Leverage)
	grossPnl := t.Pnl + t.Fee // Trade.Pnl is net of fee: gross = net + fee
	*cash += margin + grossPnl - t.Fee
	*realized += t.Pnl

	remaining := pos.Qty - t.Quantity
	if remaining <= 0 {
		delete(positions, key)
		return
	}
	pos.Qty = remaining
	positions[key] = pos
}

// Restore seeds a model's live state directly from a recovered
// Snapshot (e.g. the output of Replay at startup), bypassing Seed's
// initial-cash-only setup.
func (e *Engine) Restore(modelID string, snap Snapshot) {
	st := e.state(modelID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.cash = snap.Cash
	st.initialCapital = snap.InitialCapital
	st.realizedPnl = snap.RealizedPnl
	st.positions = make(map[positionKey]Position, len(snap.Positions))
	for _, p := range snap.Positions {
		st.positions[positionKey{symbol: p.Symbol, side: p.Side}] = p
	}
	st.history = append([]AccountValueSample(nil), snap.History...)
}
