package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists conversations, appointments and supporting clinic data in
// PostgreSQL. All queries are tenant-scoped.
type Store struct {
	db *sql.DB
}

// New creates a store around an open database handle.
func New(db *sql.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// UpsertConversation creates or updates the conversation for (tenant, chat)
// and returns its id. Inbound messages increment the unread counter and may
// refresh the display name; outbound messages only touch the last-message
// fields.
func (s *Store) UpsertConversation(ctx context.Context, tenantID, chatID, displayName, lastMessage string, at time.Time, inbound bool) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}

	increment := 0
	if inbound {
		increment = 1
	} else {
		displayName = ""
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO conversations (
			tenant_id, chat_id, display_name, last_message, last_message_at,
			unread_count, agent_mode, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'auto', $5, $5)
		ON CONFLICT (tenant_id, chat_id) DO UPDATE SET
			last_message = EXCLUDED.last_message,
			last_message_at = EXCLUDED.last_message_at,
			display_name = CASE
				WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name
				ELSE conversations.display_name
			END,
			unread_count = conversations.unread_count + $6,
			updated_at = EXCLUDED.last_message_at
		RETURNING id
	`, tenantID, chatID, displayName, lastMessage, at, increment).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: upsert conversation: %w", err)
	}
	return id, nil
}

// AppendMessage inserts a message row and returns its id.
func (s *Store) AppendMessage(ctx context.Context, msg MessageRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := msg.Status
	if status == "" {
		status = "received"
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (
			conversation_id, direction, content, media_ref,
			provider_message_id, status, created_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7)
		RETURNING id
	`, msg.ConversationID, msg.Direction, msg.Content, msg.MediaRef,
		msg.ProviderMessageID, status, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: append message: %w", err)
	}
	return id, nil
}

// ListRecentMessages returns the most recent messages of a conversation in
// chronological order.
func (s *Store) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]MessageRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, direction, content,
			   COALESCE(media_ref, ''), COALESCE(provider_message_id, ''),
			   COALESCE(status, 'received'), created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list recent messages: %w", err)
	}
	defer rows.Close()

	var newestFirst []MessageRecord
	for rows.Next() {
		var msg MessageRecord
		if err := rows.Scan(
			&msg.ID, &msg.ConversationID, &msg.Direction, &msg.Content,
			&msg.MediaRef, &msg.ProviderMessageID, &msg.Status, &msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan message: %w", err)
		}
		newestFirst = append(newestFirst, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list recent messages: %w", err)
	}

	chronological := make([]MessageRecord, 0, len(newestFirst))
	for i := len(newestFirst) - 1; i >= 0; i-- {
		chronological = append(chronological, newestFirst[i])
	}
	return chronological, nil
}

// ListConversations returns the tenant's conversations, most recently active
// first.
func (s *Store) ListConversations(ctx context.Context, tenantID string, limit int) ([]ConversationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, chat_id, COALESCE(display_name, ''),
			   COALESCE(last_message, ''), last_message_at, unread_count,
			   COALESCE(agent_mode, 'auto')
		FROM conversations
		WHERE tenant_id = $1
		ORDER BY last_message_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []ConversationRecord
	for rows.Next() {
		var conv ConversationRecord
		if err := rows.Scan(
			&conv.ID, &conv.TenantID, &conv.ChatID, &conv.DisplayName,
			&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AgentMode,
		); err != nil {
			return nil, fmt.Errorf("storage: scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list conversations: %w", err)
	}
	return conversations, nil
}

// GetConversation returns the conversation for (tenant, chat) or nil when it
// does not exist yet.
func (s *Store) GetConversation(ctx context.Context, tenantID, chatID string) (*ConversationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var conv ConversationRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, chat_id, COALESCE(display_name, ''),
			   COALESCE(last_message, ''), last_message_at, unread_count,
			   COALESCE(agent_mode, 'auto')
		FROM conversations
		WHERE tenant_id = $1 AND chat_id = $2
	`, tenantID, chatID).Scan(
		&conv.ID, &conv.TenantID, &conv.ChatID, &conv.DisplayName,
		&conv.LastMessage, &conv.LastMessageAt, &conv.UnreadCount, &conv.AgentMode,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get conversation: %w", err)
	}
	return &conv, nil
}
