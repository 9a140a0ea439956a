package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
)

var _ TraderStateModel = (*defaultTraderStateModel)(nil)

// TraderState is the public.trader_state row: the durable half of a
// scheduler.ModelStatus, so Enabled/LastRunAt survive a restart instead
// of resetting every model to idle.
type TraderState struct {
	ModelID   string
	Enabled   bool
	LastState string
	LastRunAt time.Time
	UpdatedAt time.Time
}

// TraderStateModel is the data layer for the trader_state table.
type TraderStateModel interface {
	Upsert(ctx context.Context, row *TraderState) error
	FindOne(ctx context.Context, modelID string) (*TraderState, error)
	FindAll(ctx context.Context) ([]TraderState, error)
}

type defaultTraderStateModel struct {
	base
	table string
}

// NewTraderStateModel returns a model for the database table.
func NewTraderStateModel(conn sqlx.SqlConn, c cache.Cache, ttl cachekeys.TTLSet) TraderStateModel {
	return &defaultTraderStateModel{base: base{conn: conn, cache: c, ttl: ttl}, table: "public.trader_state"}
}

func (m *defaultTraderStateModel) Upsert(ctx context.Context, row *TraderState) error {
	query := fmt.Sprintf(`INSERT INTO %s (model_id, enabled, last_state, last_run_at, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (model_id) DO UPDATE SET enabled = $2, last_state = $3, last_run_at = $4, updated_at = NOW()`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, row.ModelID, row.Enabled, row.LastState, row.LastRunAt)
	if err != nil {
		return fmt.Errorf("traderState.Upsert: %w", err)
	}
	m.delCache(ctx, cachekeys.TraderStateKey(row.ModelID))
	return nil
}

func (m *defaultTraderStateModel) FindOne(ctx context.Context, modelID string) (*TraderState, error) {
	var row TraderState
	cacheKey := cachekeys.TraderStateKey(modelID)
	if ok, err := m.getCache(ctx, cacheKey, &row); err != nil {
		return nil, err
	} else if ok {
		return &row, nil
	}

	query := fmt.Sprintf(`SELECT model_id, enabled, last_state, last_run_at, updated_at
FROM %s WHERE model_id = $1`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row, query, modelID); err != nil {
		if err == sqlx.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("traderState.FindOne: %w", err)
	}
	m.setCache(ctx, cacheKey, cachekeys.TraderStateTTL(m.ttl), &row)
	return &row, nil
}

func (m *defaultTraderStateModel) FindAll(ctx context.Context) ([]TraderState, error) {
	query := fmt.Sprintf(`SELECT model_id, enabled, last_state, last_run_at, updated_at FROM %s`, m.table)
	var rows []TraderState
	if err := m.conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("traderState.FindAll: %w", err)
	}
	return rows, nil
}
