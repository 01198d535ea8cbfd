package storage

import "time"

// ConversationRecord represents a chat thread with one customer.
type ConversationRecord struct {
	ID            int64
	TenantID      string
	ChatID        string
	DisplayName   string
	LastMessage   string
	LastMessageAt time.Time
	UnreadCount   int
	AgentMode     string
}

// MessageDirection distinguishes inbound from outbound messages.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MessageRecord is one message in a conversation. Append-only; only the
// delivery status may change after creation.
type MessageRecord struct {
	ID                int64
	ConversationID    int64
	Direction         string
	Content           string
	MediaRef          string
	ProviderMessageID string
	Status            string
	CreatedAt         time.Time
}

// RuleRecord is an auto-reply rule evaluated in ascending priority order.
type RuleRecord struct {
	ID       int64
	TenantID string
	Trigger  string
	Response string
	Priority int
	IsActive bool
}

// TagRecord is a customer tag available for assignment.
type TagRecord struct {
	ID       int64
	TenantID string
	Name     string
}

// ContactRecord is a patient record keyed by phone.
type ContactRecord struct {
	ID       int64
	TenantID string
	Name     string
	Phone    string
}

// Appointment statuses.
const (
	AppointmentScheduled = "scheduled"
)

// AppointmentRecord is a booked appointment.
type AppointmentRecord struct {
	ID           int64
	TenantID     string
	ContactID    *int64
	Phone        string
	CustomerName string
	ContactName  string // joined from contacts when listing reminders
	ScheduledAt  time.Time
	Notes        string
	Status       string
	Type         string
	ReminderSent bool
	CreatedAt    time.Time
}

// ServiceRecord is one entry of the tenant's service catalog.
type ServiceRecord struct {
	ID          int64
	TenantID    string
	Name        string
	Description string
	IsActive    bool
}

// ChatLogRecord is an analytics entry describing why a reply was sent.
type ChatLogRecord struct {
	ID        int64
	TenantID  string
	LogType   string
	RuleID    *int64
	Phone     string
	Content   string
	CreatedAt time.Time
}

// NotificationRecord is a persisted in-app notification.
type NotificationRecord struct {
	ID            int64
	TenantID      string
	EventType     string
	Title         string
	Message       string
	Priority      string
	PatientID     *int64
	AppointmentID *int64
	Metadata      string
	IsRead        bool
	ReadAt        *time.Time
	CreatedAt     time.Time
}
