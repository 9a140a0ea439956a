package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	cachekeys "nof0-core/internal/cache"
)

var _ SettingsModel = (*defaultSettingsModel)(nil)

// Settings is the public.settings row: a flat key/value table for
// process-wide trading knobs (fee rate, shutdown grace, history caps)
// that aren't tied to any one model.
type Settings struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// SettingsModel is the data layer for the settings table.
type SettingsModel interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

type defaultSettingsModel struct {
	base
	table string
}

// NewSettingsModel returns a model for the database table.
func NewSettingsModel(conn sqlx.SqlConn, c cache.Cache, ttl cachekeys.TTLSet) SettingsModel {
	return &defaultSettingsModel{base: base{conn: conn, cache: c, ttl: ttl}, table: "public.settings"}
}

func (m *defaultSettingsModel) cacheKey(key string) string {
	return cachekeys.FormatCacheKey("settings", key)
}

func (m *defaultSettingsModel) Get(ctx context.Context, key string) (string, error) {
	var row Settings
	if ok, err := m.getCache(ctx, m.cacheKey(key), &row); err != nil {
		return "", err
	} else if ok {
		return row.Value, nil
	}

	query := fmt.Sprintf(`SELECT key, value, updated_at FROM %s WHERE key = $1`, m.table)
	if err := m.conn.QueryRowCtx(ctx, &row, query, key); err != nil {
		if err == sqlx.ErrNotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("settings.Get: %w", err)
	}
	m.setCache(ctx, m.cacheKey(key), m.ttl.Duration(cachekeys.TTLMedium), &row)
	return row.Value, nil
}

func (m *defaultSettingsModel) Set(ctx context.Context, key, value string) error {
	query := fmt.Sprintf(`INSERT INTO %s (key, value, updated_at) VALUES ($1,$2,NOW())
ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = NOW()`, m.table)
	if _, err := m.conn.ExecCtx(ctx, query, key, value); err != nil {
		return fmt.Errorf("settings.Set: %w", err)
	}
	m.delCache(ctx, m.cacheKey(key))
	return nil
}

func (m *defaultSettingsModel) All(ctx context.Context) (map[string]string, error) {
	query := fmt.Sprintf(`SELECT key, value, updated_at FROM %s`, m.table)
	var rows []Settings
	if err := m.conn.QueryRowsCtx(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("settings.All: %w", err)
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}
