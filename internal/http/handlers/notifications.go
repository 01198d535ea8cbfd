package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/internal/tenancy"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

type notificationStore interface {
	ListNotifications(ctx context.Context, tenantID string, limit int) ([]storage.NotificationRecord, error)
	UnreadNotificationCount(ctx context.Context, tenantID string) (int, error)
	MarkNotificationRead(ctx context.Context, tenantID string, id int64) error
	MarkAllNotificationsRead(ctx context.Context, tenantID string) error
}

// NotificationsHandler serves the admin notification feed.
type NotificationsHandler struct {
	store         notificationStore
	defaultTenant string
	logger        *logging.Logger
}

// NewNotificationsHandler creates a notifications handler.
func NewNotificationsHandler(store notificationStore, defaultTenant string, logger *logging.Logger) *NotificationsHandler {
	if store == nil {
		panic("handlers: notifications handler requires a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &NotificationsHandler{
		store:         store,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

func (h *NotificationsHandler) tenantID(r *http.Request) string {
	if tenant, ok := tenancy.TenantIDFromContext(r.Context()); ok && tenant != "" {
		return tenant
	}
	if tenant := r.URL.Query().Get("tenant_id"); tenant != "" {
		return tenant
	}
	return h.defaultTenant
}

// NotificationResponse is one feed entry.
type NotificationResponse struct {
	ID            int64           `json:"id"`
	EventType     string          `json:"event_type"`
	Title         string          `json:"title"`
	Message       string          `json:"message"`
	Priority      string          `json:"priority"`
	PatientID     *int64          `json:"patient_id,omitempty"`
	AppointmentID *int64          `json:"appointment_id,omitempty"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	IsRead        bool            `json:"is_read"`
	CreatedAt     string          `json:"created_at"`
}

// List returns the most recent notifications.
// GET /admin/notifications?limit=50
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > 200 {
		limit = 200
	}

	records, err := h.store.ListNotifications(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("notification list failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}

	response := make([]NotificationResponse, 0, len(records))
	for _, record := range records {
		entry := NotificationResponse{
			ID:            record.ID,
			EventType:     record.EventType,
			Title:         record.Title,
			Message:       record.Message,
			Priority:      record.Priority,
			PatientID:     record.PatientID,
			AppointmentID: record.AppointmentID,
			IsRead:        record.IsRead,
			CreatedAt:     record.CreatedAt.Format(time.RFC3339),
		}
		if record.Metadata != "" {
			entry.Metadata = json.RawMessage(record.Metadata)
		}
		response = append(response, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": response})
}

// UnreadCount returns the number of unread notifications.
// GET /admin/notifications/unread-count
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	count, err := h.store.UnreadNotificationCount(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("unread count failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to count notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// MarkRead marks a single notification as read.
// POST /admin/notifications/{notificationID}/read
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	id, err := strconv.ParseInt(chi.URLParam(r, "notificationID"), 10, 64)
	if err != nil || id <= 0 {
		jsonError(w, "invalid notification id", http.StatusBadRequest)
		return
	}

	if err := h.store.MarkNotificationRead(r.Context(), tenantID, id); err != nil {
		h.logger.Error("mark read failed", "tenant_id", tenantID, "notification_id", id, "error", err.Error())
		jsonError(w, "failed to mark notification read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MarkAllRead marks every notification of the tenant as read.
// POST /admin/notifications/read-all
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	if err := h.store.MarkAllNotificationsRead(r.Context(), tenantID); err != nil {
		h.logger.Error("mark all read failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to mark notifications read", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
