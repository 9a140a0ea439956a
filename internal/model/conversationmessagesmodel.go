package model

import (
	"context"
	"fmt"
	"time"

	"github.com/zeromicro/go-zero/core/stores/cache"
	"github.com/zeromicro/go-zero/core/stores/sqlx"
)

var _ ConversationMessagesModel = (*defaultConversationMessagesModel)(nil)

// ConversationMessages is the public.conversation_messages row: the
// system/user/assistant turns belonging to one Conversations row.
type ConversationMessages struct {
	Id             int64
	ConversationID int64
	Role           string
	Content        string
	Tokens         int64
	CreatedAt      time.Time
}

// ConversationMessagesModel is the data layer for conversation_messages.
type ConversationMessagesModel interface {
	Insert(ctx context.Context, row *ConversationMessages) error
	ByConversation(ctx context.Context, conversationID int64) ([]ConversationMessages, error)
}

type defaultConversationMessagesModel struct {
	base
	table string
}

// NewConversationMessagesModel returns a model for the database table.
func NewConversationMessagesModel(conn sqlx.SqlConn, c cache.Cache) ConversationMessagesModel {
	return &defaultConversationMessagesModel{base: base{conn: conn, cache: c}, table: "public.conversation_messages"}
}

func (m *defaultConversationMessagesModel) Insert(ctx context.Context, row *ConversationMessages) error {
	query := fmt.Sprintf(`INSERT INTO %s (conversation_id, role, content, tokens, created_at)
VALUES ($1,$2,$3,$4,$5)`, m.table)
	_, err := m.conn.ExecCtx(ctx, query, row.ConversationID, row.Role, row.Content, row.Tokens, row.CreatedAt)
	if err != nil {
		return fmt.Errorf("conversationMessages.Insert: %w", err)
	}
	return nil
}

func (m *defaultConversationMessagesModel) ByConversation(ctx context.Context, conversationID int64) ([]ConversationMessages, error) {
	query := fmt.Sprintf(`SELECT id, conversation_id, role, content, tokens, created_at
FROM %s WHERE conversation_id = $1 ORDER BY id`, m.table)
	var rows []ConversationMessages
	if err := m.conn.QueryRowsCtx(ctx, &rows, query, conversationID); err != nil {
		return nil, fmt.Errorf("conversationMessages.ByConversation: %w", err)
	}
	return rows, nil
}
