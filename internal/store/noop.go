package store

import (
	"context"
	"time"

	"nof0-core/pkg/journal"
	"nof0-core/pkg/portfolio"
)

// noopStore discards everything it's given. It lets manager/scheduler
// code run (tests, a dry-run CLI invocation, a config with no Postgres
// section configured) without a database behind it.
type noopStore struct{}

// NewNoop returns a Store that persists nothing.
func NewNoop() Store { return noopStore{} }

func (noopStore) ListModels(ctx context.Context) ([]ModelConfig, error) { return nil, nil }

func (noopStore) GetModel(ctx context.Context, id string) (ModelConfig, error) {
	return ModelConfig{}, ErrNotFound
}

func (noopStore) UpsertModel(ctx context.Context, cfg ModelConfig) error { return nil }

func (noopStore) SetModelEnabled(ctx context.Context, id string, enabled bool) error { return nil }

func (noopStore) RecordTrade(ctx context.Context, trade portfolio.Trade) error { return nil }

func (noopStore) RecentTrades(ctx context.Context, modelID string, limit int) ([]portfolio.Trade, error) {
	return nil, nil
}

func (noopStore) RecordSnapshot(ctx context.Context, snap portfolio.Snapshot) error { return nil }

func (noopStore) Recover(ctx context.Context, modelID string, initialCapital float64) (portfolio.Snapshot, error) {
	return portfolio.Snapshot{ModelID: modelID, Cash: initialCapital, InitialCapital: initialCapital}, nil
}

func (noopStore) SetTraderState(ctx context.Context, modelID string, enabled bool, state string, lastRunAt time.Time) error {
	return nil
}

func (noopStore) TraderStates(ctx context.Context) (map[string]TraderState, error) { return nil, nil }

func (noopStore) Setting(ctx context.Context, key string) (string, bool, error) { return "", false, nil }

func (noopStore) SetSetting(ctx context.Context, key, value string) error { return nil }

func (noopStore) MirrorCycle(rec *journal.CycleRecord) {}
