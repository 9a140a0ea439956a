package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ DecisionCyclesModel = (*defaultDecisionCyclesModel)(nil)

// DecisionCycles is the public.decision_cycles row: the durable mirror
// of one journal.CycleRecord, one row per cycle regardless of how many
// passes (buy/sell) it ran.
type DecisionCycles struct {
	Id           int64
	ModelID      string
	CycleNumber  int64
	RecordJSON   []byte
	Success      bool
	ErrorMessage string
	RecordedAt   time.Time
}

// DecisionCyclesModel is the data layer for the decision_cycles table.
type DecisionCyclesModel interface {
	Insert(ctx context.Context, row *DecisionCycles) error
	RecentByModel(ctx context.Context, modelID string, limit int) ([]DecisionCycles, error)
}

type defaultDecisionCyclesModel struct {
	base
	table string
}

// NewDecisionCyclesModel returns a model for the database table.
func NewDecisionCyclesModel(conn sqlx.SqlConn, c cache.Cache) DecisionCyclesModel {
	return &defaultDecisionCyclesModel{base: base{conn: conn, cache: c}, table: "public.decision_cycles"}
}

func (m *defaultDecisionCyclesModel) Insert(ctx context.Context, row *DecisionCycles) error {
	query := fmt.Sprintf(`INSERT INTO %s (model_id, cycle_number, record_json, success, error_message, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6)`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, row.ModelID, row.CycleNumber, row.RecordJSON, row.Success,
		row.ErrorMessage, row.RecordedAt)
	if err != nil {
		return fmt.Errorf("decisionCycles.Insert: %w", err)
	}
	return nil
}

func (m *defaultDecisionCyclesModel) RecentByModel(ctx context.Context, modelID string, limit int) ([]DecisionCycles, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, model_id, cycle_number, record_json, success, error_message, recorded_at
FROM %s WHERE model_id = $1 ORDER BY recorded_at DESC LIMIT $2`, m.table)
	var rows []DecisionCycles
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, modelID, limit); err != nil {
		return nil, fmt.Errorf("decisionCycles.RecentByModel: %w", err)
	}
	return rows, nil
}
