// Package prompt implements the Strategy Prompt Builder (C6): pure
// composition of the two per-cycle LLM prompts (buy pass, sell pass)
// from portfolio state, market data, and model-specific templates. It
// never calls the LLM.
package prompt

import (
	"time"

	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
)

// Pass distinguishes the buy and sell cycle variants.
type Pass string

const (
	PassBuy  Pass = "buy"
	PassSell Pass = "sell"
)

// ModelProfile carries the per-model settings the builder needs:
// custom prompt text, leverage defaults, and the auto-trade flags that
// gate whether a pass runs at all.
type ModelProfile struct {
	ModelID         string
	BuyPrompt       string
	SellPrompt      string
	Leverage        int
	AutoBuyEnabled  bool
	AutoSellEnabled bool
	MaxPositions    int
	BuyBatchSize    int
}

// Inputs aggregates everything the builder folds into a prompt.
type Inputs struct {
	Model           ModelProfile
	Portfolio       portfolio.Snapshot
	CandidateQuotes map[string]market.SnapshotRow
	Indicators      map[string]map[string]market.IntervalIndicators // symbol -> interval -> indicators
	RecentTrades    []portfolio.Trade
	AvailableCash   float64
	Now             time.Time
}

// Output is the rendered pair the LLM Client consumes.
type Output struct {
	Pass          Pass
	SystemMessage string
	UserMessage   string
}
