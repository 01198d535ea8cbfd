package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

type fakeNotificationStore struct {
	records   []storage.NotificationRecord
	unread    int
	listErr   error
	readIDs   []int64
	allTenant string
}

func (f *fakeNotificationStore) ListNotifications(_ context.Context, _ string, limit int) ([]storage.NotificationRecord, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if limit < len(f.records) {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeNotificationStore) UnreadNotificationCount(context.Context, string) (int, error) {
	return f.unread, nil
}

func (f *fakeNotificationStore) MarkNotificationRead(_ context.Context, _ string, id int64) error {
	f.readIDs = append(f.readIDs, id)
	return nil
}

func (f *fakeNotificationStore) MarkAllNotificationsRead(_ context.Context, tenantID string) error {
	f.allTenant = tenantID
	return nil
}

func TestNotificationsList(t *testing.T) {
	store := &fakeNotificationStore{records: []storage.NotificationRecord{{
		ID:        3,
		EventType: "NEW_MESSAGE",
		Title:     "رسالة جديدة 💬",
		Message:   "رسالة جديدة من محمد",
		Priority:  "MEDIUM",
		Metadata:  `{"phone":"962791234567"}`,
		CreatedAt: time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC),
	}}}
	handler := NewNotificationsHandler(store, "clinic-1", nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/notifications", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response struct {
		Notifications []NotificationResponse `json:"notifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Notifications, 1)
	entry := response.Notifications[0]
	assert.Equal(t, int64(3), entry.ID)
	assert.Equal(t, "NEW_MESSAGE", entry.EventType)
	assert.Equal(t, "رسالة جديدة من محمد", entry.Message)
	assert.JSONEq(t, `{"phone":"962791234567"}`, string(entry.Metadata))
	assert.False(t, entry.IsRead)
}

func TestNotificationsListInvalidLimit(t *testing.T) {
	handler := NewNotificationsHandler(&fakeNotificationStore{}, "clinic-1", nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/notifications?limit=abc", nil)
	rec := httptest.NewRecorder()
	handler.List(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationsUnreadCount(t *testing.T) {
	handler := NewNotificationsHandler(&fakeNotificationStore{unread: 4}, "clinic-1", nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/notifications/unread-count", nil)
	rec := httptest.NewRecorder()
	handler.UnreadCount(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":4}`, rec.Body.String())
}

func TestNotificationsMarkRead(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewNotificationsHandler(store, "clinic-1", nil)

	router := chi.NewRouter()
	router.Post("/admin/notifications/{notificationID}/read", handler.MarkRead)

	req := httptest.NewRequest(http.MethodPost, "/admin/notifications/9/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{9}, store.readIDs)
}

func TestNotificationsMarkReadInvalidID(t *testing.T) {
	handler := NewNotificationsHandler(&fakeNotificationStore{}, "clinic-1", nil)

	router := chi.NewRouter()
	router.Post("/admin/notifications/{notificationID}/read", handler.MarkRead)

	req := httptest.NewRequest(http.MethodPost, "/admin/notifications/zero/read", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotificationsMarkAllRead(t *testing.T) {
	store := &fakeNotificationStore{}
	handler := NewNotificationsHandler(store, "clinic-1", nil)

	req := httptest.NewRequest(http.MethodPost, "/admin/notifications/read-all?tenant_id=clinic-7", nil)
	rec := httptest.NewRecorder()
	handler.MarkAllRead(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "clinic-7", store.allTenant)
}
