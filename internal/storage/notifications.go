package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertNotification persists an in-app notification row.
func (s *Store) InsertNotification(ctx context.Context, n NotificationRecord) error {
	if s == nil || s.db == nil {
		return nil
	}

	createdAt := n.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	metadata := n.Metadata
	if metadata == "" {
		metadata = "{}"
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (
			tenant_id, event_type, title, message, priority,
			patient_id, appointment_id, metadata, is_read, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
	`, n.TenantID, n.EventType, n.Title, n.Message, n.Priority,
		n.PatientID, n.AppointmentID, metadata, createdAt)
	if err != nil {
		return fmt.Errorf("storage: insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns the tenant's notifications, newest first.
func (s *Store) ListNotifications(ctx context.Context, tenantID string, limit int) ([]NotificationRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, event_type, title, message, priority,
			   patient_id, appointment_id, COALESCE(metadata, '{}'),
			   is_read, read_at, created_at
		FROM notifications
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: list notifications: %w", err)
	}
	defer rows.Close()

	var notifications []NotificationRecord
	for rows.Next() {
		var n NotificationRecord
		var patientID, appointmentID sql.NullInt64
		var readAt sql.NullTime
		if err := rows.Scan(
			&n.ID, &n.TenantID, &n.EventType, &n.Title, &n.Message, &n.Priority,
			&patientID, &appointmentID, &n.Metadata, &n.IsRead, &readAt, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan notification: %w", err)
		}
		if patientID.Valid {
			n.PatientID = &patientID.Int64
		}
		if appointmentID.Valid {
			n.AppointmentID = &appointmentID.Int64
		}
		if readAt.Valid {
			n.ReadAt = &readAt.Time
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list notifications: %w", err)
	}
	return notifications, nil
}

// MarkNotificationRead marks one notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, tenantID string, id int64) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE tenant_id = $2 AND id = $3
	`, time.Now().UTC(), tenantID, id)
	if err != nil {
		return fmt.Errorf("storage: mark notification read: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead marks every unread notification as read.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, tenantID string) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = TRUE, read_at = $1
		WHERE tenant_id = $2 AND is_read = FALSE
	`, time.Now().UTC(), tenantID)
	if err != nil {
		return fmt.Errorf("storage: mark all notifications read: %w", err)
	}
	return nil
}

// UnreadNotificationCount returns how many notifications are unread.
func (s *Store) UnreadNotificationCount(ctx context.Context, tenantID string) (int, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE tenant_id = $1 AND is_read = FALSE
	`, tenantID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: unread notification count: %w", err)
	}
	return count, nil
}
