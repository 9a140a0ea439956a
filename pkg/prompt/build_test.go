package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
)

func sampleInputs() Inputs {
	return Inputs{
		Model: ModelProfile{
			ModelID:         "model-1",
			BuyPrompt:       "you are a disciplined crypto trader",
			SellPrompt:      "you manage downside risk",
			Leverage:        10,
			AutoBuyEnabled:  true,
			AutoSellEnabled: true,
			MaxPositions:    5,
			BuyBatchSize:    1,
		},
		Portfolio: portfolio.Snapshot{
			ModelID:    "model-1",
			Cash:       9697,
			TotalValue: 9997,
			Positions: []portfolio.Position{
				{Symbol: "BTCUSDT", Side: portfolio.SideLong, Qty: 0.1, AvgPrice: 30000, Leverage: 10},
			},
		},
		CandidateQuotes: map[string]market.SnapshotRow{
			"BTCUSDT": {Symbol: "BTCUSDT", Price: 31000, HasPrice: true, Change24h: 3.2},
			"ETHUSDT": {Symbol: "ETHUSDT", Price: 2000, HasPrice: true, Change24h: -1.1},
		},
		Indicators: map[string]map[string]market.IntervalIndicators{
			"ETHUSDT": {"1h": {Change: 0.5}},
		},
		AvailableCash: 9697,
		Now:           time.Unix(1700000000, 0),
	}
}

func TestBuildBuyPassExcludesHeldSymbols(t *testing.T) {
	out, ok := BuildBuyPass(sampleInputs())
	require.True(t, ok)
	assert.Equal(t, PassBuy, out.Pass)
	assert.Contains(t, out.UserMessage, "ETHUSDT")
	assert.NotContains(t, out.UserMessage, "Candidate symbols (no current position): BTCUSDT")
}

func TestBuildBuyPassDisabledReturnsNotOK(t *testing.T) {
	in := sampleInputs()
	in.Model.AutoBuyEnabled = false
	out, ok := BuildBuyPass(in)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestBuildSellPassListsOnlyHeldPositions(t *testing.T) {
	out, ok := BuildSellPass(sampleInputs())
	require.True(t, ok)
	assert.Equal(t, PassSell, out.Pass)
	assert.Contains(t, out.UserMessage, "BTCUSDT")
	assert.NotContains(t, out.UserMessage, "ETHUSDT")
}

func TestBuildSellPassDisabledReturnsNotOK(t *testing.T) {
	in := sampleInputs()
	in.Model.AutoSellEnabled = false
	out, ok := BuildSellPass(in)
	assert.False(t, ok)
	assert.Nil(t, out)
}

func TestBuilderIsPureAndDeterministic(t *testing.T) {
	in := sampleInputs()
	out1, _ := BuildBuyPass(in)
	out2, _ := BuildBuyPass(in)
	assert.Equal(t, out1.UserMessage, out2.UserMessage)
}
