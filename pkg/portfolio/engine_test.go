package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseInput(price float64) ApplyInput {
	return ApplyInput{
		Price:           price,
		FeeRate:         0.001,
		AutoBuyEnabled:  true,
		AutoSellEnabled: true,
		MaxPositions:    5,
	}
}

func TestApplyOpenThenClose(t *testing.T) {
	now := time.Unix(1700000000, 0)
	e := NewEngine()
	e.Seed("model-1", 10000)

	open := NewOpen(OpenParams{Symbol: "BTCUSDT", Side: SideLong, Qty: 0.1, Leverage: 10})
	trade, err := e.Apply("model-1", open, baseInput(30000), now)
	require.NoError(t, err)
	require.NotNil(t, trade)
	assert.Equal(t, SignalBuyToEnter, trade.Signal)
	assert.InDelta(t, 3.0, trade.Fee, 1e-9)

	snap := e.Snapshot("model-1", func(symbol string) (float64, bool) { return 30000, true })
	assert.InDelta(t, 9697, snap.Cash, 1e-9)
	require.Len(t, snap.Positions, 1)
	assert.Equal(t, "BTCUSDT", snap.Positions[0].Symbol)
	assert.InDelta(t, 30000, snap.Positions[0].AvgPrice, 1e-9)

	snapAtNewPrice := e.Snapshot("model-1", func(symbol string) (float64, bool) { return 31000, true })
	assert.InDelta(t, 100, snapAtNewPrice.UnrealizedPnl, 1e-9)

	closeAll := NewClose(CloseParams{Symbol: "BTCUSDT", Side: SideLong})
	closeTrade, err := e.Apply("model-1", closeAll, baseInput(31000), now.Add(time.Minute))
	require.NoError(t, err)
	require.NotNil(t, closeTrade)
	assert.Equal(t, SignalClosePosition, closeTrade.Signal)
	assert.InDelta(t, 96.9, closeTrade.Pnl, 1e-9)

	finalSnap := e.Snapshot("model-1", func(symbol string) (float64, bool) { return 31000, true })
	assert.InDelta(t, 10093.9, finalSnap.Cash, 1e-9)
	assert.InDelta(t, 96.9, finalSnap.RealizedPnl, 1e-9)
	assert.Empty(t, finalSnap.Positions)
}

func TestApplyOpenRejectsWhenMaxPositionsReached(t *testing.T) {
	now := time.Unix(1700000000, 0)
	e := NewEngine()
	e.Seed("model-1", 100000)

	in := baseInput(100)
	in.MaxPositions = 2

	_, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 5}), in, now)
	require.NoError(t, err)
	_, err = e.Apply("model-1", NewOpen(OpenParams{Symbol: "BBB", Side: SideLong, Qty: 1, Leverage: 5}), in, now)
	require.NoError(t, err)

	_, err = e.Apply("model-1", NewOpen(OpenParams{Symbol: "CCC", Side: SideLong, Qty: 1, Leverage: 5}), in, now)
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrMaxPositionsReached, appErr.Kind)

	snap := e.Snapshot("model-1", func(string) (float64, bool) { return 100, true })
	assert.Len(t, snap.Positions, 2)
}

func TestApplyOpenRejectsDisabledAutoBuy(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 10000)
	in := baseInput(100)
	in.AutoBuyEnabled = false

	_, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 5}), in, time.Unix(0, 0))
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDisabled, appErr.Kind)
}

func TestApplyCloseForbiddenWhenAutoSellDisabled(t *testing.T) {
	now := time.Unix(0, 0)
	e := NewEngine()
	e.Seed("model-1", 10000)
	_, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 5}), baseInput(100), now)
	require.NoError(t, err)

	in := baseInput(100)
	in.AutoSellEnabled = false
	_, err = e.Apply("model-1", NewClose(CloseParams{Symbol: "AAA", Side: SideLong}), in, now)
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrDisabled, appErr.Kind)

	snap := e.Snapshot("model-1", func(string) (float64, bool) { return 100, true })
	assert.Len(t, snap.Positions, 1, "a rejected close must not mutate state")
}

func TestApplyCloseRejectsUnknownPosition(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 10000)
	_, err := e.Apply("model-1", NewClose(CloseParams{Symbol: "AAA", Side: SideLong}), baseInput(100), time.Unix(0, 0))
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrNoSuchPosition, appErr.Kind)
}

func TestApplyOpenRejectsInsufficientMargin(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 100)
	_, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 100, Leverage: 1}), baseInput(100), time.Unix(0, 0))
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrInsufficientMargin, appErr.Kind)
}

func TestApplyOpenRejectsUnresolvedZeroLeverage(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 10000)
	_, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 0}), baseInput(100), time.Unix(0, 0))
	require.Error(t, err)
	var appErr *ApplyError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, ErrBadQuantity, appErr.Kind, "leverage 0 is the ask-the-LLM sentinel and must never reach Apply unresolved")
}

func TestCashNeverNegativeAfterSuccessfulOpen(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 1000)
	trade, err := e.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 10}), baseInput(100), time.Unix(0, 0))
	require.NoError(t, err)
	require.NotNil(t, trade)

	snap := e.Snapshot("model-1", func(string) (float64, bool) { return 100, true })
	assert.GreaterOrEqual(t, snap.Cash, 0.0)
}

func TestDisjointPositionsAreOrderIndependent(t *testing.T) {
	now := time.Unix(0, 0)

	e1 := NewEngine()
	e1.Seed("model-1", 100000)
	_, err := e1.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 5}), baseInput(100), now)
	require.NoError(t, err)
	_, err = e1.Apply("model-1", NewOpen(OpenParams{Symbol: "BBB", Side: SideLong, Qty: 1, Leverage: 5}), baseInput(200), now)
	require.NoError(t, err)

	e2 := NewEngine()
	e2.Seed("model-1", 100000)
	_, err = e2.Apply("model-1", NewOpen(OpenParams{Symbol: "BBB", Side: SideLong, Qty: 1, Leverage: 5}), baseInput(200), now)
	require.NoError(t, err)
	_, err = e2.Apply("model-1", NewOpen(OpenParams{Symbol: "AAA", Side: SideLong, Qty: 1, Leverage: 5}), baseInput(100), now)
	require.NoError(t, err)

	markPrice := func(symbol string) (float64, bool) {
		if symbol == "AAA" {
			return 100, true
		}
		return 200, true
	}
	snap1 := e1.Snapshot("model-1", markPrice)
	snap2 := e2.Snapshot("model-1", markPrice)
	assert.InDelta(t, snap1.Cash, snap2.Cash, 1e-9)
	assert.InDelta(t, snap1.TotalValue, snap2.TotalValue, 1e-9)
}

func TestAdjustNeverProducesATradeOrMutatesCash(t *testing.T) {
	e := NewEngine()
	e.Seed("model-1", 10000)
	maxPositions := 3
	trade, err := e.Apply("model-1", NewAdjust(AdjustParams{MaxPositions: &maxPositions}), baseInput(100), time.Unix(0, 0))
	require.NoError(t, err)
	assert.Nil(t, trade)

	snap := e.Snapshot("model-1", func(string) (float64, bool) { return 100, true })
	assert.InDelta(t, 10000, snap.Cash, 1e-9)
}
