package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
)

func TestApplyOrdersCloseBeforeOpen(t *testing.T) {
	now := time.Unix(0, 0)
	engine := portfolio.NewEngine()
	engine.Seed("model-1", 100000)
	_, err := engine.Apply("model-1", portfolio.NewOpen(portfolio.OpenParams{Symbol: "AAA", Side: portfolio.SideLong, Qty: 1, Leverage: 5}), portfolio.ApplyInput{
		Price: 100, FeeRate: 0.001, AutoBuyEnabled: true, MaxPositions: 1,
	}, now)
	require.NoError(t, err)

	ap := NewApplier(engine)
	actions := []Action{
		{Kind: ActionOpenLong, Symbol: "BBB", Quantity: 1},
		{Kind: ActionCloseLong, Symbol: "AAA"},
	}
	vc := ValidationContext{
		Quotes: map[string]market.SnapshotRow{
			"AAA": {Symbol: "AAA", Price: 100, HasPrice: true},
			"BBB": {Symbol: "BBB", Price: 200, HasPrice: true},
		},
		Positions:   []portfolio.Position{{Symbol: "AAA", Side: portfolio.SideLong, Qty: 1, AvgPrice: 100, Leverage: 5}},
		MaxLeverage: 125,
	}
	bi := BatchInput{
		FeeRate: 0.001, AutoBuyEnabled: true, AutoSellEnabled: true,
		MaxPositions: 1, DefaultLeverage: 5, BuyBatchSize: 5,
		Prices: map[string]float64{"AAA": 100, "BBB": 200},
	}

	trades := ap.Apply("model-1", actions, vc, bi, now)
	require.Len(t, trades, 2)
	assert.Equal(t, portfolio.SignalClosePosition, trades[0].Signal, "close must apply before open so the freed slot is available")
	assert.Equal(t, portfolio.SignalBuyToEnter, trades[1].Signal)
	assert.Equal(t, portfolio.TradeSuccess, trades[0].Status)
	assert.Equal(t, portfolio.TradeSuccess, trades[1].Status)
}

func TestApplyCapsExcessOpensWithWarningTrade(t *testing.T) {
	now := time.Unix(0, 0)
	engine := portfolio.NewEngine()
	engine.Seed("model-1", 1000000)
	ap := NewApplier(engine)

	actions := []Action{
		{Kind: ActionOpenLong, Symbol: "AAA", Quantity: 1},
		{Kind: ActionOpenLong, Symbol: "BBB", Quantity: 1},
	}
	vc := ValidationContext{
		Quotes: map[string]market.SnapshotRow{
			"AAA": {Symbol: "AAA", Price: 100, HasPrice: true},
			"BBB": {Symbol: "BBB", Price: 100, HasPrice: true},
		},
		MaxLeverage: 125,
	}
	bi := BatchInput{
		FeeRate: 0.001, AutoBuyEnabled: true, MaxPositions: 5,
		DefaultLeverage: 5, BuyBatchSize: 1,
		Prices: map[string]float64{"AAA": 100, "BBB": 100},
	}

	trades := ap.Apply("model-1", actions, vc, bi, now)
	require.Len(t, trades, 2)
	assert.Equal(t, portfolio.TradeFailed, trades[0].Status)
	assert.Contains(t, trades[0].Message, "batch size cap")
	assert.Equal(t, portfolio.TradeSuccess, trades[1].Status)
}

func TestApplyRecordsFailedTradeWithoutHaltingBatch(t *testing.T) {
	now := time.Unix(0, 0)
	engine := portfolio.NewEngine()
	engine.Seed("model-1", 100000)
	ap := NewApplier(engine)

	actions := []Action{
		{Kind: ActionCloseLong, Symbol: "UNKNOWN"},
		{Kind: ActionOpenLong, Symbol: "AAA", Quantity: 1},
	}
	vc := ValidationContext{
		Quotes: map[string]market.SnapshotRow{
			"AAA": {Symbol: "AAA", Price: 100, HasPrice: true},
		},
		MaxLeverage: 125,
	}
	bi := BatchInput{
		FeeRate: 0.001, AutoBuyEnabled: true, AutoSellEnabled: true,
		MaxPositions: 5, DefaultLeverage: 5, BuyBatchSize: 5,
		Prices: map[string]float64{"AAA": 100},
	}

	trades := ap.Apply("model-1", actions, vc, bi, now)
	require.Len(t, trades, 2)
	assert.Equal(t, portfolio.TradeFailed, trades[0].Status)
	assert.Equal(t, portfolio.TradeSuccess, trades[1].Status, "a prior failure must not block later actions in the batch")
}

func TestApplySkipsHoldWithNoTrade(t *testing.T) {
	now := time.Unix(0, 0)
	engine := portfolio.NewEngine()
	engine.Seed("model-1", 100000)
	ap := NewApplier(engine)

	trades := ap.Apply("model-1", []Action{{Kind: ActionHold}}, ValidationContext{}, BatchInput{DefaultLeverage: 5}, now)
	assert.Empty(t, trades)
}

func TestApplyForbidsCloseWhenAutoSellDisabled(t *testing.T) {
	now := time.Unix(0, 0)
	engine := portfolio.NewEngine()
	engine.Seed("model-1", 100000)
	_, err := engine.Apply("model-1", portfolio.NewOpen(portfolio.OpenParams{Symbol: "AAA", Side: portfolio.SideLong, Qty: 1, Leverage: 5}), portfolio.ApplyInput{
		Price: 100, FeeRate: 0.001, AutoBuyEnabled: true, MaxPositions: 1,
	}, now)
	require.NoError(t, err)

	ap := NewApplier(engine)
	vc := ValidationContext{
		Quotes:    map[string]market.SnapshotRow{"AAA": {Symbol: "AAA", Price: 100, HasPrice: true}},
		Positions: []portfolio.Position{{Symbol: "AAA", Side: portfolio.SideLong, Qty: 1, AvgPrice: 100, Leverage: 5}},
	}
	bi := BatchInput{
		FeeRate: 0.001, AutoSellEnabled: false, DefaultLeverage: 5,
		Prices: map[string]float64{"AAA": 100},
	}

	trades := ap.Apply("model-1", []Action{{Kind: ActionCloseLong, Symbol: "AAA"}}, vc, bi, now)
	require.Len(t, trades, 1)
	assert.Equal(t, portfolio.TradeFailed, trades[0].Status)
	assert.Contains(t, trades[0].Message, "Disabled")
}
