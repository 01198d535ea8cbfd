package storage

import (
	"context"
	"fmt"
	"time"
)

// ListActiveRules returns the tenant's active auto-reply rules in ascending
// priority order. Evaluation order matters: the resolver takes the first
// match.
func (s *Store) ListActiveRules(ctx context.Context, tenantID string) ([]RuleRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, trigger, response, priority, is_active
		FROM auto_reply_rules
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY priority ASC, id ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("storage: list active rules: %w", err)
	}
	defer rows.Close()

	var rules []RuleRecord
	for rows.Next() {
		var rule RuleRecord
		if err := rows.Scan(&rule.ID, &rule.TenantID, &rule.Trigger, &rule.Response, &rule.Priority, &rule.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list active rules: %w", err)
	}
	return rules, nil
}

// InsertChatLog records an analytics entry for a sent reply.
func (s *Store) InsertChatLog(ctx context.Context, entry ChatLogRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_logs (tenant_id, log_type, rule_id, phone, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.TenantID, entry.LogType, entry.RuleID, entry.Phone, entry.Content, createdAt)
	if err != nil {
		return fmt.Errorf("storage: insert chat log: %w", err)
	}
	return nil
}
