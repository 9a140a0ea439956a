package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
)

var _ PortfolioSnapshotsModel = (*defaultPortfolioSnapshotsModel)(nil)

// PortfolioSnapshots is the public.portfolio_snapshots row: a durable
// checkpoint of one model's portfolio.Snapshot, positions encoded as
// JSON since their shape is owned by the Portfolio Engine, not by SQL.
type PortfolioSnapshots struct {
	Id             int64
	ModelID        string
	Cash           float64
	InitialCapital float64
	RealizedPnl    float64
	PositionsJSON  []byte
	RecordedAt     time.Time
}

// PortfolioSnapshotsModel is the data layer for the portfolio_snapshots
// table, which backs Store restart recovery (Replay) and the
// account-value history endpoint.
type PortfolioSnapshotsModel interface {
	Insert(ctx context.Context, row *PortfolioSnapshots) error
	Latest(ctx context.Context, modelID string) (*PortfolioSnapshots, error)
}

type defaultPortfolioSnapshotsModel struct {
	base
	table string
}

// NewPortfolioSnapshotsModel returns a model for the database table.
func NewPortfolioSnapshotsModel(conn sqlx.SqlConn, c cache.Cache, ttl cachekeys.TTLSet) PortfolioSnapshotsModel {
	return &defaultPortfolioSnapshotsModel{base: base{conn: conn, cache: c, ttl: ttl}, table: "public.portfolio_snapshots"}
}

func (m *defaultPortfolioSnapshotsModel) cacheKey(modelID string) string {
	return cachekeys.FormatCacheKey("portfolio_snapshots", "latest", modelID)
}

func (m *defaultPortfolioSnapshotsModel) Insert(ctx context.Context, row *PortfolioSnapshots) error {
	query := fmt.Sprintf(`INSERT INTO %s
(model_id, cash, initial_capital, realized_pnl, positions_json, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row.Id, query, row.ModelID, row.Cash, row.InitialCapital,
		row.RealizedPnl, row.PositionsJSON, row.RecordedAt); err != nil {
		return fmt.Errorf("portfolioSnapshots.Insert: %w", err)
	}
	m.delCache(ctx, m.cacheKey(row.ModelID))
	return nil
}

// Latest returns the most recently recorded snapshot for modelID, or
// ErrNotFound if none exists yet (a brand-new model).
func (m *defaultPortfolioSnapshotsModel) Latest(ctx context.Context, modelID string) (*PortfolioSnapshots, error) {
	var row PortfolioSnapshots
	cacheKey := m.cacheKey(modelID)
	if ok, err := m.getCache(ctx, cacheKey, &row); err != nil {
		return nil, err
	} else if ok {
		return &row, nil
	}

	query := fmt.Sprintf(`SELECT id, model_id, cash, initial_capital, realized_pnl, positions_json, recorded_at
FROM %s WHERE model_id = $1 ORDER BY recorded_at DESC LIMIT 1`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row, query, modelID); err != nil {
		if err == sqlx.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("portfolioSnapshots.Latest: %w", err)
	}
	m.setCache(ctx, cacheKey, m.ttl.Scaled(cachekeys.TTLShort, 3), &row)
	return &row, nil
}

// EncodePositions is a small helper so callers don't reimplement the
// JSON shape the positions_json column expects.
func EncodePositions(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
