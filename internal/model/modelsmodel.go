package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
)

var _ ModelsModel = (*defaultModelsModel)(nil)

// Models is the public.models row: one row per LLM-backed trading
// model, holding its prompts and trading settings.
type Models struct {
	Id                      string
	Name                    string
	Provider                string
	BuyPrompt               string
	SellPrompt              string
	DefaultLeverage         int64
	AutoBuyEnabled          bool
	AutoSellEnabled         bool
	MaxPositions            int64
	BuyBatchSize            int64
	TradingFrequencyMinutes int64
	InitialCapital          float64
	Enabled                 bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// ModelsModel is the data layer for the models table.
type ModelsModel interface {
	Insert(ctx context.Context, row *Models) error
	FindOne(ctx context.Context, id string) (*Models, error)
	FindAll(ctx context.Context) ([]Models, error)
	Update(ctx context.Context, row *Models) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

type defaultModelsModel struct {
	base
	table string
}

// NewModelsModel returns a model for the database table.
func NewModelsModel(conn sqlx.SqlConn, c cache.Cache, ttl cachekeys.TTLSet) ModelsModel {
	return &defaultModelsModel{
		base:  base{conn: conn, cache: c, ttl: ttl},
		table: "public.models",
	}
}

func (m *defaultModelsModel) cacheKey(id string) string { return cachekeys.FormatCacheKey("models", id) }

func (m *defaultModelsModel) Insert(ctx context.Context, row *Models) error {
	query := fmt.Sprintf(`INSERT INTO %s
(id, name, provider, buy_prompt, sell_prompt, default_leverage, auto_buy_enabled,
 auto_sell_enabled, max_positions, buy_batch_size, trading_frequency_minutes,
 initial_capital, enabled, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW(),NOW())`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, row.Id, row.Name, row.Provider, row.BuyPrompt, row.SellPrompt,
		row.DefaultLeverage, row.AutoBuyEnabled, row.AutoSellEnabled, row.MaxPositions, row.BuyBatchSize,
		row.TradingFrequencyMinutes, row.InitialCapital, row.Enabled)
	if err != nil {
		return fmt.Errorf("models.Insert: %w", err)
	}
	m.delCache(ctx, m.cacheKey(row.Id))
	return nil
}

func (m *defaultModelsModel) FindOne(ctx context.Context, id string) (*Models, error) {
	var row Models
	if ok, err := m.getCache(ctx, m.cacheKey(id), &row); err != nil {
		return nil, err
	} else if ok {
		return &row, nil
	}

	query := fmt.Sprintf(`SELECT id, name, provider, buy_prompt, sell_prompt, default_leverage,
auto_buy_enabled, auto_sell_enabled, max_positions, buy_batch_size, trading_frequency_minutes,
initial_capital, enabled, created_at, updated_at FROM %s WHERE id = $1`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row, query, id); err != nil {
		if err == sqlx.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("models.FindOne: %w", err)
	}
	m.setCache(ctx, m.cacheKey(id), m.ttl.Duration(cachekeys.TTLMedium), &row)
	return &row, nil
}

func (m *defaultModelsModel) FindAll(ctx context.Context) ([]Models, error) {
	query := fmt.Sprintf(`SELECT id, name, provider, buy_prompt, sell_prompt, default_leverage,
auto_buy_enabled, auto_sell_enabled, max_positions, buy_batch_size, trading_frequency_minutes,
initial_capital, enabled, created_at, updated_at FROM %s ORDER BY id`, m.table)
	var rows []Models
	if err := m.conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("models.FindAll: %w", err)
	}
	return rows, nil
}

func (m *defaultModelsModel) Update(ctx context.Context, row *Models) error {
	query := fmt.Sprintf(`UPDATE %s SET name=$2, provider=$3, buy_prompt=$4, sell_prompt=$5,
default_leverage=$6, auto_buy_enabled=$7, auto_sell_enabled=$8, max_positions=$9,
buy_batch_size=$10, trading_frequency_minutes=$11, initial_capital=$12, enabled=$13, updated_at=NOW()
WHERE id=$1`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, row.Id, row.Name, row.Provider, row.BuyPrompt, row.SellPrompt,
		row.DefaultLeverage, row.AutoBuyEnabled, row.AutoSellEnabled, row.MaxPositions, row.BuyBatchSize,
		row.TradingFrequencyMinutes, row.InitialCapital, row.Enabled)
	if err != nil {
		return fmt.Errorf("models.Update: %w", err)
	}
	m.delCache(ctx, m.cacheKey(row.Id))
	return nil
}

func (m *defaultModelsModel) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := fmt.Sprintf(`UPDATE %s SET enabled=$2, updated_at=NOW() WHERE id=$1`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, id, enabled)
	if err != nil {
		return fmt.Errorf("models.SetEnabled: %w", err)
	}
	m.delCache(ctx, m.cacheKey(id))
	return nil
}
