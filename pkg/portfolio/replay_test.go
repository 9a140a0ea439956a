package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMatchesLiveApplyForOpenThenClose(t *testing.T) {
	engine := NewEngine()
	engine.Seed("m1", 10000)
	now := time.Now()

	openTrade, err := engine.Apply("m1", NewOpen(OpenParams{
		Symbol: "BTCUSDT", Side: SideLong, Qty: 0.1, Leverage: 10,
	}), ApplyInput{Price: 30000, FeeRate: 0.001, AutoBuyEnabled: true, MaxPositions: 10}, now)
	require.NoError(t, err)

	closeTrade, err := engine.Apply("m1", NewClose(CloseParams{
		Symbol: "BTCUSDT", Side: SideLong,
	}), ApplyInput{Price: 31000, FeeRate: 0.001, AutoSellEnabled: true}, now.Add(time.Hour))
	require.NoError(t, err)

	live := engine.Snapshot("m1", func(string) (float64, bool) { return 31000, true })

	replayed := Replay(Snapshot{ModelID: "m1", Cash: 10000}, []Trade{*closeTrade, *openTrade})

	assert.InDelta(t, live.Cash, replayed.Cash, 1e-9)
	assert.InDelta(t, live.RealizedPnl, replayed.RealizedPnl, 1e-9)
	assert.Empty(t, replayed.Positions)
}

func TestReplaySkipsFailedTrades(t *testing.T) {
	seed := Snapshot{ModelID: "m1", Cash: 1000}
	trades := []Trade{
		{Symbol: "ETHUSDT", Side: SideLong, Signal: SignalBuyToEnter, Price: 2000, Quantity: 1, Leverage: 5, Status: TradeFailed, Timestamp: time.Now()},
	}
	out := Replay(seed, trades)
	assert.Equal(t, 1000.0, out.Cash)
	assert.Empty(t, out.Positions)
}

func TestReplayReconstructsOpenPosition(t *testing.T) {
	now := time.Now()
	seed := Snapshot{ModelID: "m1", Cash: 10000}
	trades := []Trade{
		{Symbol: "BTCUSDT", Side: SideLong, Signal: SignalBuyToEnter, Price: 30000, Quantity: 0.1, Leverage: 10, Fee: 3, Status: TradeSuccess, Timestamp: now},
	}
	out := Replay(seed, trades)
	require.Len(t, out.Positions, 1)
	assert.Equal(t, "BTCUSDT", out.Positions[0].Symbol)
	assert.InDelta(t, 0.1, out.Positions[0].Qty, 1e-9)
	assert.InDelta(t, 9697, out.Cash, 1e-9)
}

func TestRestoreSeedsEngineFromReplayedSnapshot(t *testing.T) {
	engine := NewEngine()
	snap := Snapshot{
		ModelID:        "m1",
		Cash:           9697,
		InitialCapital: 10000,
		RealizedPnl:    0,
		Positions: []Position{
			{Symbol: "BTCUSDT", Side: SideLong, Qty: 0.1, AvgPrice: 30000, Leverage: 10, OpenedAt: time.Now()},
		},
	}
	engine.Restore("m1", snap)

	restored := engine.Snapshot("m1", func(string) (float64, bool) { return 30000, true })
	assert.InDelta(t, 9697, restored.Cash, 1e-9)
	require.Len(t, restored.Positions, 1)
	assert.Equal(t, "BTCUSDT", restored.Positions[0].Symbol)
}
