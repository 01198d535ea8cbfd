package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// FindTagByName looks up a tag by exact name. Returns nil when no tag exists;
// the extractor silently ignores unknown tag names.
func (s *Store) FindTagByName(ctx context.Context, tenantID, name string) (*TagRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var tag TagRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name
		FROM customer_tags
		WHERE tenant_id = $1 AND name = $2
	`, tenantID, name).Scan(&tag.ID, &tag.TenantID, &tag.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find tag: %w", err)
	}
	return &tag, nil
}

// ListTags returns every tag defined for the tenant, by name.
func (s *Store) ListTags(ctx context.Context, tenantID string) ([]TagRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name
		FROM customer_tags
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("storage: list tags: %w", err)
	}
	defer rows.Close()

	var tags []TagRecord
	for rows.Next() {
		var tag TagRecord
		if err := rows.Scan(&tag.ID, &tag.TenantID, &tag.Name); err != nil {
			return nil, fmt.Errorf("storage: scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list tags: %w", err)
	}
	return tags, nil
}

// AttachTag associates a tag with a customer phone. Idempotent: attaching an
// already-attached tag is a no-op.
func (s *Store) AttachTag(ctx context.Context, tenantID, phone string, tagID int64) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customer_tag_map (tenant_id, phone, tag_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, phone, tag_id) DO NOTHING
	`, tenantID, phone, tagID)
	if err != nil {
		return fmt.Errorf("storage: attach tag: %w", err)
	}
	return nil
}
