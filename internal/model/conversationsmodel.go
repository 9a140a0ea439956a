package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ConversationsModel = (*defaultConversationsModel)(nil)

// Conversations is the public.conversations row: one row per cycle's
// prompt/response pass, the durable mirror of a journal.CycleRecord.
type Conversations struct {
	Id           int64
	ModelID      string
	Pass         string
	PromptDigest string
	Success      bool
	ErrorMessage string
	CreatedAt    time.Time
}

// ConversationsModel is the data layer for the conversations table.
type ConversationsModel interface {
	Insert(ctx context.Context, row *Conversations) (int64, error)
	RecentByModel(ctx context.Context, modelID string, limit int) ([]Conversations, error)
}

type defaultConversationsModel struct {
	base
	table string
}

// NewConversationsModel returns a model for the database table.
func NewConversationsModel(conn sqlx.SqlConn, c cache.Cache) ConversationsModel {
	return &defaultConversationsModel{base: base{conn: conn, cache: c}, table: "public.conversations"}
}

func (m *defaultConversationsModel) Insert(ctx context.Context, row *Conversations) (int64, error) {
	query := fmt.Sprintf(`INSERT INTO %s (model_id, pass, prompt_digest, success, error_message, created_at)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING id`, m.table)
	var id int64
	if err := m.conn.QueryRowCtx(ctx, &id, query, row.ModelID, row.Pass, row.PromptDigest,
		row.Success, row.ErrorMessage, row.CreatedAt); err != nil {
		return 0, fmt.Errorf("conversations.Insert: %w", err)
	}
	return id, nil
}

func (m *defaultConversationsModel) RecentByModel(ctx context.Context, modelID string, limit int) ([]Conversations, error) {
	if limit <= 0 {
		limit = 100
	}
	query := fmt.Sprintf(`SELECT id, model_id, pass, prompt_digest, success, error_message, created_at
FROM %s WHERE model_id = $1 ORDER BY created_at DESC LIMIT $2`, m.table)
	var rows []Conversations
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, modelID, limit); err != nil {
		return nil, fmt.Errorf("conversations.RecentByModel: %w", err)
	}
	return rows, nil
}
