package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSetting returns a tenant setting value, or "" when the key is unset.
func (s *Store) GetSetting(ctx context.Context, tenantID, key string) (string, error) {
	if s == nil || s.db == nil {
		return "", nil
	}

	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT value FROM settings WHERE tenant_id = $1 AND key = $2
	`, tenantID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: get setting: %w", err)
	}
	return value, nil
}

// ListServices returns the tenant's active service catalog.
func (s *Store) ListServices(ctx context.Context, tenantID string) ([]ServiceRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, name, COALESCE(description, ''), is_active
		FROM services
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	defer rows.Close()

	var services []ServiceRecord
	for rows.Next() {
		var svc ServiceRecord
		if err := rows.Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.Description, &svc.IsActive); err != nil {
			return nil, fmt.Errorf("storage: scan service: %w", err)
		}
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list services: %w", err)
	}
	return services, nil
}
