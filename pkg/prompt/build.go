package prompt

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
)

const recentTradesWindow = 10

// BuildBuyPass composes the buy-pass prompt: symbols with no current
// position, asking for at most one Open per cycle. ok is false when
// the model has auto-buy disabled, in which case no Output is built.
func BuildBuyPass(in Inputs) (out *Output, ok bool) {
	if !in.Model.AutoBuyEnabled {
		return nil, false
	}

	held := heldSymbols(in.Portfolio.Positions)
	unheld := make([]string, 0, len(in.CandidateQuotes))
	for symbol := range in.CandidateQuotes {
		if _, isHeld := held[symbol]; !isHeld {
			unheld = append(unheld, symbol)
		}
	}
	sort.Strings(unheld)

	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n", in.Now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Account: %s\n", formatAccount(in.Portfolio, in.AvailableCash))
	fmt.Fprintf(&b, "Open positions: %s\n", formatPositions(in.Portfolio.Positions))
	fmt.Fprintf(&b, "Risk budget: %s\n", formatRiskBudget(in.Model, len(in.Portfolio.Positions)))
	fmt.Fprintf(&b, "Candidate symbols (no current position): %s\n", formatSymbolList(unheld))
	fmt.Fprintf(&b, "Market snapshot: %s\n", formatMarketJSON(unheld, in.CandidateQuotes, in.Indicators))
	fmt.Fprintf(&b, "Recent trades: %s\n", formatTrades(in.RecentTrades))
	b.WriteString("\nPropose at most one Open action this cycle, or Hold if nothing qualifies.\n")

	return &Output{
		Pass:          PassBuy,
		SystemMessage: in.Model.BuyPrompt,
		UserMessage:   b.String(),
	}, true
}

// BuildSellPass composes the sell-pass prompt: current positions,
// asking for zero or more Close actions. ok is false when the model
// has auto-sell disabled.
func BuildSellPass(in Inputs) (out *Output, ok bool) {
	if !in.Model.AutoSellEnabled {
		return nil, false
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n", in.Now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Account: %s\n", formatAccount(in.Portfolio, in.AvailableCash))
	fmt.Fprintf(&b, "Open positions: %s\n", formatPositions(in.Portfolio.Positions))

	heldSymbolList := make([]string, 0, len(in.Portfolio.Positions))
	for _, p := range in.Portfolio.Positions {
		heldSymbolList = append(heldSymbolList, p.Symbol)
	}
	sort.Strings(heldSymbolList)
	fmt.Fprintf(&b, "Market snapshot for held symbols: %s\n", formatMarketJSON(heldSymbolList, in.CandidateQuotes, in.Indicators))
	fmt.Fprintf(&b, "Recent trades: %s\n", formatTrades(in.RecentTrades))
	b.WriteString("\nPropose zero or more Close actions for the positions above, or Hold to keep all of them open.\n")

	return &Output{
		Pass:          PassSell,
		SystemMessage: in.Model.SellPrompt,
		UserMessage:   b.String(),
	}, true
}

func heldSymbols(positions []portfolio.Position) map[string]struct{} {
	out := make(map[string]struct{}, len(positions))
	for _, p := range positions {
		out[p.Symbol] = struct{}{}
	}
	return out
}

func formatAccount(snap portfolio.Snapshot, availableCash float64) string {
	return fmt.Sprintf("totalValue=%.2f, cash=%.2f, available=%.2f, realizedPnl=%.2f, unrealizedPnl=%.2f, positions=%d",
		snap.TotalValue, snap.Cash, availableCash, snap.RealizedPnl, snap.UnrealizedPnl, len(snap.Positions),
	)
}

func formatPositions(positions []portfolio.Position) string {
	if len(positions) == 0 {
		return "(none)"
	}
	items := make([]string, 0, len(positions))
	for _, p := range positions {
		items = append(items, fmt.Sprintf("%s %s qty=%.6f lev=%dx entry=%.4f",
			p.Symbol, p.Side, p.Qty, p.Leverage, p.AvgPrice,
		))
	}
	sort.Strings(items)
	return strings.Join(items, "\n")
}

func formatRiskBudget(model ModelProfile, openCount int) string {
	remaining := model.MaxPositions - openCount
	if remaining < 0 {
		remaining = 0
	}
	return fmt.Sprintf("max_positions=%d (remaining=%d), leverage=%dx, buy_batch_size=%d",
		model.MaxPositions, remaining, model.Leverage, model.BuyBatchSize,
	)
}

func formatSymbolList(symbols []string) string {
	if len(symbols) == 0 {
		return "(none)"
	}
	return strings.Join(symbols, ", ")
}

func formatTrades(trades []portfolio.Trade) string {
	if len(trades) == 0 {
		return "(none)"
	}
	n := len(trades)
	if n > recentTradesWindow {
		trades = trades[n-recentTradesWindow:]
	}
	items := make([]string, 0, len(trades))
	for _, t := range trades {
		items = append(items, fmt.Sprintf("%s %s %s qty=%.6f price=%.4f pnl=%.2f status=%s",
			t.Timestamp.UTC().Format(time.RFC3339), t.Symbol, t.Signal, t.Quantity, t.Price, t.Pnl, t.Status,
		))
	}
	return strings.Join(items, "\n")
}

// marketLite trims a market.SnapshotRow + its indicators down to the
// fields worth spending tokens on, mirroring the teacher's payload
// reduction for market snapshots.
type marketLite struct {
	Price      float64                          `json:"price"`
	Change24h  float64                          `json:"change_24h"`
	Indicators map[string]market.IntervalIndicators `json:"indicators,omitempty"`
}

func formatMarketJSON(symbols []string, quotes map[string]market.SnapshotRow, indicators map[string]map[string]market.IntervalIndicators) string {
	if len(symbols) == 0 {
		return "{}"
	}
	out := make(map[string]marketLite, len(symbols))
	for _, symbol := range symbols {
		row, ok := quotes[symbol]
		if !ok || !row.HasPrice {
			continue
		}
		out[symbol] = marketLite{
			Price:      row.Price,
			Change24h:  row.Change24h,
			Indicators: indicators[symbol],
		}
	}
	b, _ := json.Marshal(out)
	return string(b)
}
