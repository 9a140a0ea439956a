package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
)

var _ TradesModel = (*defaultTradesModel)(nil)

// Trades is the public.trades row: one append-only record per
// portfolio.Trade, successful or failed.
type Trades struct {
	Id         int64
	ModelID    string
	Symbol     string
	Side       string
	Signal     string
	Price      float64
	Quantity   float64
	Leverage   int64
	Fee        float64
	Pnl        float64
	Status     string
	Message    string
	OccurredAt time.Time
}

// TradesModel is the data layer for the trades table.
type TradesModel interface {
	Insert(ctx context.Context, row *Trades) error
	RecentByModel(ctx context.Context, modelID string, limit int) ([]Trades, error)
	SinceTimestamp(ctx context.Context, modelID string, since time.Time) ([]Trades, error)
}

type defaultTradesModel struct {
	base
	table string
}

// NewTradesModel returns a model for the database table.
func NewTradesModel(conn sqlx.SqlConn, c cache.Cache, ttl cachekeys.TTLSet) TradesModel {
	return &defaultTradesModel{base: base{conn: conn, cache: c, ttl: ttl}, table: "public.trades"}
}

func (m *defaultTradesModel) Insert(ctx context.Context, row *Trades) error {
	query := fmt.Sprintf(`INSERT INTO %s
(model_id, symbol, side, signal, price, quantity, leverage, fee, pnl, status, message, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row.Id, query, row.ModelID, row.Symbol, row.Side, row.Signal,
		row.Price, row.Quantity, row.Leverage, row.Fee, row.Pnl, row.Status, row.Message, row.OccurredAt); err != nil {
		return fmt.Errorf("trades.Insert: %w", err)
	}
	m.delCache(ctx, cachekeys.TradesRecentKey(row.ModelID))
	return nil
}

// RecentByModel returns trades ordered by occurred_at descending, limit
// defaulting to 200 when non-positive.
func (m *defaultTradesModel) RecentByModel(ctx context.Context, modelID string, limit int) ([]Trades, error) {
	if limit <= 0 {
		limit = 200
	}
	query := fmt.Sprintf(`SELECT id, model_id, symbol, side, signal, price, quantity, leverage, fee, pnl,
status, message, occurred_at FROM %s WHERE model_id = $1 ORDER BY occurred_at DESC LIMIT $2`, m.table)
	var rows []Trades
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, modelID, limit); err != nil {
		return nil, fmt.Errorf("trades.RecentByModel: %w", err)
	}
	return rows, nil
}

// SinceTimestamp returns every trade recorded at or after since, in no
// particular order -- Replay sorts them itself.
func (m *defaultTradesModel) SinceTimestamp(ctx context.Context, modelID string, since time.Time) ([]Trades, error) {
	query := fmt.Sprintf(`SELECT id, model_id, symbol, side, signal, price, quantity, leverage, fee, pnl,
status, message, occurred_at FROM %s WHERE model_id = $1 AND occurred_at >= $2`, m.table)
	var rows []Trades
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, modelID, since); err != nil {
		return nil, fmt.Errorf("trades.SinceTimestamp: %w", err)
	}
	return rows, nil
}
