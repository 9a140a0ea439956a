// Package store implements the Store (C10): durable persistence for
// model config, the trade log, portfolio checkpoints, the cycle
// journal mirror, and per-model scheduler state, plus replay-based
// recovery of a model's live portfolio after a restart.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"nof0-core/internal/model"
	"nof0-core/pkg/journal"
	"nof0-core/pkg/portfolio"
)

// ModelConfig is a model's durable configuration, the domain view of a
// model.Models row.
type ModelConfig struct {
	ID                      string
	Name                    string
	Provider                string
	BuyPrompt               string
	SellPrompt              string
	DefaultLeverage         int
	AutoBuyEnabled          bool
	AutoSellEnabled         bool
	MaxPositions            int
	BuyBatchSize            int
	TradingFrequencyMinutes int
	InitialCapital          float64
	Enabled                 bool
}

// Store is the persistence boundary every other component talks to;
// manager/scheduler code is written against this interface so tests
// can swap in an in-memory fake instead of a real database.
type Store interface {
	ListModels(ctx context.Context) ([]ModelConfig, error)
	GetModel(ctx context.Context, id string) (ModelConfig, error)
	UpsertModel(ctx context.Context, cfg ModelConfig) error
	SetModelEnabled(ctx context.Context, id string, enabled bool) error

	RecordTrade(ctx context.Context, trade portfolio.Trade) error
	RecentTrades(ctx context.Context, modelID string, limit int) ([]portfolio.Trade, error)

	RecordSnapshot(ctx context.Context, snap portfolio.Snapshot) error
	Recover(ctx context.Context, modelID string, initialCapital float64) (portfolio.Snapshot, error)

	SetTraderState(ctx context.Context, modelID string, enabled bool, state string, lastRunAt time.Time) error
	TraderStates(ctx context.Context) (map[string]TraderState, error)

	Setting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error

	journal.Mirror
}

// TraderState is the durable half of a scheduler.ModelStatus.
type TraderState struct {
	Enabled   bool
	State     string
	LastRunAt time.Time
}

type postgresStore struct {
	models      model.ModelsModel
	trades      model.TradesModel
	snapshots   model.PortfolioSnapshotsModel
	convos      model.ConversationsModel
	convoMsgs   model.ConversationMessagesModel
	cycles      model.DecisionCyclesModel
	traderState model.TraderStateModel
	settings    model.SettingsModel
}

// New builds the production Store on top of the internal/model data
// layer.
func New(
	models model.ModelsModel,
	trades model.TradesModel,
	snapshots model.PortfolioSnapshotsModel,
	convos model.ConversationsModel,
	convoMsgs model.ConversationMessagesModel,
	cycles model.DecisionCyclesModel,
	traderState model.TraderStateModel,
	settings model.SettingsModel,
) Store {
	return &postgresStore{
		models:      models,
		trades:      trades,
		snapshots:   snapshots,
		convos:      convos,
		convoMsgs:   convoMsgs,
		cycles:      cycles,
		traderState: traderState,
		settings:    settings,
	}
}

func (s *postgresStore) ListModels(ctx context.Context) ([]ModelConfig, error) {
	rows, err := s.models.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ModelConfig, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromModelsRow(r))
	}
	return out, nil
}

func (s *postgresStore) GetModel(ctx context.Context, id string) (ModelConfig, error) {
	row, err := s.models.FindOne(ctx, id)
	if err != nil {
		return ModelConfig{}, err
	}
	return fromModelsRow(*row), nil
}

func (s *postgresStore) UpsertModel(ctx context.Context, cfg ModelConfig) error {
	row := toModelsRow(cfg)
	if _, err := s.models.FindOne(ctx, cfg.ID); err == model.ErrNotFound {
		return s.models.Insert(ctx, &row)
	} else if err != nil {
		return err
	}
	return s.models.Update(ctx, &row)
}

func (s *postgresStore) SetModelEnabled(ctx context.Context, id string, enabled bool) error {
	return s.models.SetEnabled(ctx, id, enabled)
}

func (s *postgresStore) RecordTrade(ctx context.Context, trade portfolio.Trade) error {
	row := toTradesRow(trade)
	return s.trades.Insert(ctx, &row)
}

func (s *postgresStore) RecentTrades(ctx context.Context, modelID string, limit int) ([]portfolio.Trade, error) {
	rows, err := s.trades.RecentByModel(ctx, modelID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]portfolio.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, fromTradesRow(r))
	}
	return out, nil
}

func (s *postgresStore) RecordSnapshot(ctx context.Context, snap portfolio.Snapshot) error {
	positionsJSON, err := model.EncodePositions(snap.Positions)
	if err != nil {
		return fmt.Errorf("store: encode positions: %w", err)
	}
	row := model.PortfolioSnapshots{
		ModelID:        snap.ModelID,
		Cash:           snap.Cash,
		InitialCapital: snap.InitialCapital,
		RealizedPnl:    snap.RealizedPnl,
		PositionsJSON:  positionsJSON,
		RecordedAt:     time.Now().UTC(),
	}
	return s.snapshots.Insert(ctx, &row)
}

// Recover reconstructs a model's live portfolio by loading the latest
// checkpoint (falling back to a seed holding InitialCapital as its
// opening cash for a brand-new model) and folding every trade
// recorded since that checkpoint over it.
func (s *postgresStore) Recover(ctx context.Context, modelID string, initialCapital float64) (portfolio.Snapshot, error) {
	seed := portfolio.Snapshot{ModelID: modelID, Cash: initialCapital, InitialCapital: initialCapital}
	since := time.Time{}

	latest, err := s.snapshots.Latest(ctx, modelID)
	switch {
	case err == model.ErrNotFound:
		// no checkpoint yet, replay the whole trade log against the seed
	case err != nil:
		return portfolio.Snapshot{}, err
	default:
		var positions []portfolio.Position
		if len(latest.PositionsJSON) > 0 {
			if uerr := json.Unmarshal(latest.PositionsJSON, &positions); uerr != nil {
				return portfolio.Snapshot{}, fmt.Errorf("store: decode positions: %w", uerr)
			}
		}
		seed = portfolio.Snapshot{
			ModelID:        modelID,
			Cash:           latest.Cash,
			InitialCapital: latest.InitialCapital,
			RealizedPnl:    latest.RealizedPnl,
			Positions:      positions,
		}
		since = latest.RecordedAt
	}

	rows, err := s.trades.SinceTimestamp(ctx, modelID, since)
	if err != nil {
		return portfolio.Snapshot{}, err
	}
	trades := make([]portfolio.Trade, 0, len(rows))
	for _, r := range rows {
		trades = append(trades, fromTradesRow(r))
	}
	return portfolio.Replay(seed, trades), nil
}

func (s *postgresStore) SetTraderState(ctx context.Context, modelID string, enabled bool, state string, lastRunAt time.Time) error {
	return s.traderState.Upsert(ctx, &model.TraderState{
		ModelID:   modelID,
		Enabled:   enabled,
		LastState: state,
		LastRunAt: lastRunAt,
	})
}

func (s *postgresStore) TraderStates(ctx context.Context) (map[string]TraderState, error) {
	rows, err := s.traderState.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]TraderState, len(rows))
	for _, r := range rows {
		out[r.ModelID] = TraderState{Enabled: r.Enabled, State: r.LastState, LastRunAt: r.LastRunAt}
	}
	return out, nil
}

func (s *postgresStore) Setting(ctx context.Context, key string) (string, bool, error) {
	v, err := s.settings.Get(ctx, key)
	if err == model.ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *postgresStore) SetSetting(ctx context.Context, key, value string) error {
	return s.settings.Set(ctx, key, value)
}

// MirrorCycle implements journal.Mirror: it durably records one
// prompt/response pass plus its parent cycle row. Errors are logged,
// not returned, matching Writer.WriteCycle's "file already landed"
// contract for mirror failures.
func (s *postgresStore) MirrorCycle(rec *journal.CycleRecord) {
	ctx := context.Background()

	convoID, err := s.convos.Insert(ctx, &model.Conversations{
		ModelID:      rec.ModelID,
		Pass:         rec.Pass,
		PromptDigest: rec.PromptDigest,
		Success:      rec.Success,
		ErrorMessage: rec.ErrorMessage,
		CreatedAt:    rec.Timestamp,
	})
	if err != nil {
		logx.Errorf("store: mirror conversation for %s: %v", rec.ModelID, err)
	} else {
		s.insertConversationMessages(ctx, convoID, rec)
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		logx.Errorf("store: marshal cycle record for %s: %v", rec.ModelID, err)
		return
	}
	err = s.cycles.Insert(ctx, &model.DecisionCycles{
		ModelID:      rec.ModelID,
		CycleNumber:  int64(rec.CycleNumber),
		RecordJSON:   recordJSON,
		Success:      rec.Success,
		ErrorMessage: rec.ErrorMessage,
		RecordedAt:   rec.Timestamp,
	})
	if err != nil {
		logx.Errorf("store: mirror decision cycle for %s: %v", rec.ModelID, err)
	}
}

func (s *postgresStore) insertConversationMessages(ctx context.Context, convoID int64, rec *journal.CycleRecord) {
	if rec.SystemMessage != "" {
		s.insertMessage(ctx, convoID, "system", rec.SystemMessage)
	}
	if rec.UserMessage != "" {
		s.insertMessage(ctx, convoID, "user", rec.UserMessage)
	}
	if rec.ResponseText != "" {
		s.insertMessage(ctx, convoID, "assistant", rec.ResponseText)
	}
}

func (s *postgresStore) insertMessage(ctx context.Context, convoID int64, role, content string) {
	row := model.ConversationMessages{ConversationID: convoID, Role: role, Content: content, CreatedAt: time.Now().UTC()}
	if err := s.convoMsgs.Insert(ctx, &row); err != nil {
		logx.Errorf("store: insert %s message for conversation %d: %v", role, convoID, err)
	}
}

func fromModelsRow(r model.Models) ModelConfig {
	return ModelConfig{
		ID:                      r.Id,
		Name:                    r.Name,
		Provider:                r.Provider,
		BuyPrompt:               r.BuyPrompt,
		SellPrompt:              r.SellPrompt,
		DefaultLeverage:         int(r.DefaultLeverage),
		AutoBuyEnabled:          r.AutoBuyEnabled,
		AutoSellEnabled:         r.AutoSellEnabled,
		MaxPositions:            int(r.MaxPositions),
		BuyBatchSize:            int(r.BuyBatchSize),
		TradingFrequencyMinutes: int(r.TradingFrequencyMinutes),
		InitialCapital:          r.InitialCapital,
		Enabled:                 r.Enabled,
	}
}

func toModelsRow(c ModelConfig) model.Models {
	return model.Models{
		Id:                      c.ID,
		Name:                    c.Name,
		Provider:                c.Provider,
		BuyPrompt:               c.BuyPrompt,
		SellPrompt:              c.SellPrompt,
		DefaultLeverage:         int64(c.DefaultLeverage),
		AutoBuyEnabled:          c.AutoBuyEnabled,
		AutoSellEnabled:         c.AutoSellEnabled,
		MaxPositions:            int64(c.MaxPositions),
		BuyBatchSize:            int64(c.BuyBatchSize),
		TradingFrequencyMinutes: int64(c.TradingFrequencyMinutes),
		InitialCapital:          c.InitialCapital,
		Enabled:                 c.Enabled,
	}
}

func toTradesRow(t portfolio.Trade) model.Trades {
	return model.Trades{
		ModelID:    t.ModelID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		Signal:     string(t.Signal),
		Price:      t.Price,
		Quantity:   t.Quantity,
		Leverage:   int64(t.Leverage),
		Fee:        t.Fee,
		Pnl:        t.Pnl,
		Status:     string(t.Status),
		Message:    t.Message,
		OccurredAt: t.Timestamp,
	}
}

func fromTradesRow(r model.Trades) portfolio.Trade {
	return portfolio.Trade{
		ModelID:   r.ModelID,
		Symbol:    r.Symbol,
		Side:      portfolio.Side(r.Side),
		Signal:    portfolio.Signal(r.Signal),
		Price:     r.Price,
		Quantity:  r.Quantity,
		Leverage:  int(r.Leverage),
		Pnl:       r.Pnl,
		Fee:       r.Fee,
		Status:    portfolio.TradeStatus(r.Status),
		Message:   r.Message,
		Timestamp: r.OccurredAt,
	}
}
