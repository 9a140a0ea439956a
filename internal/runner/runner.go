// Package runner provides the concrete scheduler.CycleRunner: the glue
// that threads one model's cycle through every component the rest of
// the tree only describes in the abstract — Market Cache (C2) read,
// Strategy Prompt Builder (C6), LLM Client (C7), Decision Applier
// (C8), Portfolio Engine (C5) and finally the Store (C10). Everything
// here is orchestration; the actual domain logic lives in the
// packages it calls.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-core/internal/store"
	"nof0-core/pkg/decision"
	"nof0-core/pkg/journal"
	"nof0-core/pkg/llm"
	"nof0-core/pkg/market"
	"nof0-core/pkg/portfolio"
	"nof0-core/pkg/prompt"
	"nof0-core/pkg/scheduler"
)

const (
	defaultFeeRate     = 0.0005
	defaultMaxLeverage = 20
	defaultHistoryCap  = 1000
	defaultTokenBudget = 4000
	defaultCallTimeout = 60 * time.Second
)

// Runner is the production scheduler.CycleRunner.
type Runner struct {
	Store   store.Store
	Cache   *market.Cache
	Engine  *portfolio.Engine
	LLM     *llm.Client
	Journal *journal.Writer

	recoverOnce sync.Map // modelID -> struct{}, guards one Store.Recover per model per process
}

// New wires a Runner from its components. Journal may be nil, in which
// case cycle audit records are skipped but trading still proceeds.
func New(st store.Store, cache *market.Cache, engine *portfolio.Engine, llmClient *llm.Client, jw *journal.Writer) *Runner {
	return &Runner{Store: st, Cache: cache, Engine: engine, LLM: llmClient, Journal: jw}
}

// recover hydrates the Engine's in-memory state for modelID from the
// Store exactly once per process, by replaying the durable snapshot +
// trade log (the same recovery path a restart relies on). Later cycles
// find the model already present and this is a no-op; Engine.Seed
// alone would otherwise silently reset a restarted process back to
// InitialCapital, discarding every trade made before the restart.
func (r *Runner) recover(ctx context.Context, modelID string, initialCapital float64) {
	if _, loaded := r.recoverOnce.LoadOrStore(modelID, struct{}{}); loaded {
		return
	}
	snap, err := r.Store.Recover(ctx, modelID, initialCapital)
	if err != nil {
		logx.Errorf("runner: model %s recover from store: %v", modelID, err)
		r.Engine.Seed(modelID, initialCapital)
		return
	}
	r.Engine.Restore(modelID, snap)
}

// RunCycle implements scheduler.CycleRunner. It runs the buy pass, the
// sell pass, or both depending on scope, recording every produced
// Trade and a final portfolio checkpoint regardless of which passes
// actually ran.
func (r *Runner) RunCycle(ctx context.Context, modelID string, scope scheduler.ExecuteScope, report func(scheduler.CycleState)) error {
	cfg, err := r.Store.GetModel(ctx, modelID)
	if err != nil {
		return fmt.Errorf("runner: load model %s: %w", modelID, err)
	}
	if !cfg.Enabled {
		report(scheduler.StateDone)
		return nil
	}

	report(scheduler.StateGatheringMarket)
	r.recover(ctx, modelID, cfg.InitialCapital)

	quotes := r.Cache.GetSnapshot()
	indicators := make(map[string]map[string]market.IntervalIndicators, len(quotes))
	prices := make(map[string]float64, len(quotes))
	for symbol, row := range quotes {
		indicators[symbol] = r.Cache.GetIndicators(symbol)
		if row.HasPrice {
			prices[symbol] = row.Price
		}
	}
	markPrice := func(symbol string) (float64, bool) {
		p, ok := prices[symbol]
		return p, ok
	}

	recentTrades, err := r.Store.RecentTrades(ctx, modelID, 20)
	if err != nil {
		logx.Errorf("runner: model %s recent trades: %v", modelID, err)
	}

	profile := prompt.ModelProfile{
		ModelID:         cfg.ID,
		BuyPrompt:       cfg.BuyPrompt,
		SellPrompt:      cfg.SellPrompt,
		Leverage:        cfg.DefaultLeverage,
		AutoBuyEnabled:  cfg.AutoBuyEnabled,
		AutoSellEnabled: cfg.AutoSellEnabled,
		MaxPositions:    cfg.MaxPositions,
		BuyBatchSize:    cfg.BuyBatchSize,
	}
	bi := decision.BatchInput{
		FeeRate:         defaultFeeRate,
		AutoBuyEnabled:  cfg.AutoBuyEnabled,
		AutoSellEnabled: cfg.AutoSellEnabled,
		MaxPositions:    cfg.MaxPositions,
		HistoryCap:      defaultHistoryCap,
		DefaultLeverage: cfg.DefaultLeverage,
		BuyBatchSize:    cfg.BuyBatchSize,
		Prices:          prices,
	}
	applier := decision.NewApplier(r.Engine)

	runPass := func(pass prompt.Pass, state scheduler.CycleState) error {
		report(state)
		snap := r.Engine.Snapshot(modelID, markPrice)
		in := prompt.Inputs{
			Model:           profile,
			Portfolio:       snap,
			CandidateQuotes: quotes,
			Indicators:      indicators,
			RecentTrades:    recentTrades,
			AvailableCash:   snap.Cash,
			Now:             time.Now(),
		}
		vc := decision.ValidationContext{
			Quotes:      quotes,
			Positions:   snap.Positions,
			MaxLeverage: defaultMaxLeverage,
		}
		return r.runPass(ctx, modelID, pass, in, vc, bi, applier, cfg)
	}

	if scope == scheduler.ScopeFull || scope == scheduler.ScopeBuy {
		report(scheduler.StatePromptingLLM)
		if err := runPass(prompt.PassBuy, scheduler.StateApplyingBuy); err != nil {
			report(scheduler.StateFailed)
			return err
		}
	}
	if scope == scheduler.ScopeFull || scope == scheduler.ScopeSell {
		if err := runPass(prompt.PassSell, scheduler.StateApplyingSell); err != nil {
			report(scheduler.StateFailed)
			return err
		}
	}

	report(scheduler.StatePersisting)
	final := r.Engine.Snapshot(modelID, markPrice)
	if err := r.Store.RecordSnapshot(ctx, final); err != nil {
		logx.Errorf("runner: model %s record snapshot: %v", modelID, err)
	}
	if err := r.Store.SetTraderState(ctx, modelID, cfg.Enabled, string(scheduler.StateDone), time.Now()); err != nil {
		logx.Errorf("runner: model %s set trader state: %v", modelID, err)
	}
	report(scheduler.StateDone)
	return nil
}

// runPass builds and sends one buy-pass or sell-pass prompt, parses
// and applies the resulting actions, records every trade, and mirrors
// the whole exchange into the journal. A pass that BuildBuyPass/
// BuildSellPass gates off (auto-trade disabled, nothing to do) is a
// silent no-op, not an error.
func (r *Runner) runPass(ctx context.Context, modelID string, pass prompt.Pass, in prompt.Inputs, vc decision.ValidationContext, bi decision.BatchInput, applier *decision.Applier, cfg store.ModelConfig) error {
	out, ok := buildPass(pass, in)
	if !ok {
		return nil
	}

	rec := &journal.CycleRecord{
		ModelID:       modelID,
		Pass:          string(pass),
		Timestamp:     time.Now(),
		PromptDigest:  llm.DigestString(out.UserMessage),
		SystemMessage: out.SystemMessage,
		UserMessage:   out.UserMessage,
		Account:       toMap(in.Portfolio),
		Positions:     toMapSlice(in.Portfolio.Positions),
		MarketDigest:  toMap(in.CandidateQuotes),
	}

	resp, err := r.LLM.Invoke(ctx, cfg.Provider, out.SystemMessage, out.UserMessage, defaultTokenBudget, defaultCallTimeout)
	if err != nil {
		rec.Success = false
		rec.ErrorMessage = err.Error()
		r.writeJournal(rec)
		return nil
	}
	rec.ResponseText = resp.Content

	actions, err := decision.Parse(resp.Content)
	if err != nil {
		failed := portfolio.Trade{ModelID: modelID, Status: portfolio.TradeFailed, Message: err.Error(), Timestamp: time.Now()}
		if recErr := r.Store.RecordTrade(ctx, failed); recErr != nil {
			logx.Errorf("runner: model %s record parse-error trade: %v", modelID, recErr)
		}
		rec.Success = false
		rec.ErrorMessage = err.Error()
		r.writeJournal(rec)
		return nil
	}
	decisionsJSON, _ := json.Marshal(actions)
	rec.DecisionsJSON = string(decisionsJSON)

	trades := applier.Apply(modelID, actions, vc, bi, time.Now())
	rec.Actions = toMapSlice(trades)
	rec.Success = true
	for _, trade := range trades {
		if err := r.Store.RecordTrade(ctx, trade); err != nil {
			logx.Errorf("runner: model %s record trade: %v", modelID, err)
		}
	}
	r.writeJournal(rec)
	return nil
}

func (r *Runner) writeJournal(rec *journal.CycleRecord) {
	if r.Journal == nil {
		return
	}
	if _, err := r.Journal.WriteCycle(rec); err != nil {
		logx.Errorf("runner: model %s write journal: %v", rec.ModelID, err)
	}
}

func buildPass(pass prompt.Pass, in prompt.Inputs) (*prompt.Output, bool) {
	if pass == prompt.PassSell {
		return prompt.BuildSellPass(in)
	}
	return prompt.BuildBuyPass(in)
}

// toMap round-trips v through JSON into a map, the cheapest way to get
// a free-form journal field out of a concrete domain struct without
// hand-maintaining a second copy of its fields.
func toMap(v interface{}) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func toMapSlice(v interface{}) []map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
