package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertAppointment persists an appointment and returns its id.
func (s *Store) InsertAppointment(ctx context.Context, appt AppointmentRecord) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}

	createdAt := appt.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	status := appt.Status
	if status == "" {
		status = AppointmentScheduled
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO appointments (
			tenant_id, contact_id, phone, customer_name, scheduled_at,
			notes, status, appointment_type, reminder_sent, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE, $9)
		RETURNING id
	`, appt.TenantID, appt.ContactID, appt.Phone, appt.CustomerName,
		appt.ScheduledAt, appt.Notes, status, appt.Type, createdAt).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: insert appointment: %w", err)
	}
	return id, nil
}

// FindAppointmentsInWindow returns appointments scheduled inside [start, end]
// inclusive, regardless of status. Used by conflict detection.
func (s *Store) FindAppointmentsInWindow(ctx context.Context, tenantID string, start, end time.Time) ([]AppointmentRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, contact_id, phone, customer_name, scheduled_at,
			   COALESCE(notes, ''), status, COALESCE(appointment_type, ''),
			   reminder_sent, created_at
		FROM appointments
		WHERE tenant_id = $1 AND scheduled_at BETWEEN $2 AND $3
		ORDER BY scheduled_at ASC
	`, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: find appointments in window: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows, false)
}

// FindDueReminders returns scheduled, not-yet-reminded appointments inside
// [start, end] inclusive, with the contact name joined in when a patient
// record shares the phone key.
func (s *Store) FindDueReminders(ctx context.Context, tenantID string, start, end time.Time) ([]AppointmentRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.tenant_id, a.contact_id, a.phone, a.customer_name,
			   a.scheduled_at, COALESCE(a.notes, ''), a.status,
			   COALESCE(a.appointment_type, ''), a.reminder_sent, a.created_at,
			   COALESCE(c.name, '')
		FROM appointments a
		LEFT JOIN contacts c ON c.tenant_id = a.tenant_id AND c.phone = a.phone
		WHERE a.tenant_id = $1
		  AND a.scheduled_at BETWEEN $2 AND $3
		  AND a.reminder_sent = FALSE
		  AND a.status = 'scheduled'
		ORDER BY a.scheduled_at ASC
	`, tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("storage: find due reminders: %w", err)
	}
	defer rows.Close()

	return scanAppointments(rows, true)
}

// MarkReminderSent flips the reminder flag. Monotonic: it is never reset.
func (s *Store) MarkReminderSent(ctx context.Context, id int64) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE appointments SET reminder_sent = TRUE WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("storage: mark reminder sent: %w", err)
	}
	return nil
}

// FindContactByPhone returns the patient record sharing the phone key, or nil.
func (s *Store) FindContactByPhone(ctx context.Context, tenantID, phone string) (*ContactRecord, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	var contact ContactRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, tenant_id, COALESCE(name, ''), phone
		FROM contacts
		WHERE tenant_id = $1 AND phone = $2
	`, tenantID, phone).Scan(&contact.ID, &contact.TenantID, &contact.Name, &contact.Phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find contact: %w", err)
	}
	return &contact, nil
}

func scanAppointments(rows *sql.Rows, withContactName bool) ([]AppointmentRecord, error) {
	var appts []AppointmentRecord
	for rows.Next() {
		var appt AppointmentRecord
		var contactID sql.NullInt64
		dest := []any{
			&appt.ID, &appt.TenantID, &contactID, &appt.Phone, &appt.CustomerName,
			&appt.ScheduledAt, &appt.Notes, &appt.Status, &appt.Type,
			&appt.ReminderSent, &appt.CreatedAt,
		}
		if withContactName {
			dest = append(dest, &appt.ContactName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("storage: scan appointment: %w", err)
		}
		if contactID.Valid {
			appt.ContactID = &contactID.Int64
		}
		appts = append(appts, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: scan appointments: %w", err)
	}
	return appts, nil
}
