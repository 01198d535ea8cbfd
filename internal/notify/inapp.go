package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

type notificationStore interface {
	InsertNotification(ctx context.Context, n storage.NotificationRecord) error
}

// InAppSender persists notifications as rows the admin UI feed reads.
type InAppSender struct {
	store notificationStore
}

// NewInAppSender creates the in-app channel sender.
func NewInAppSender(store notificationStore) *InAppSender {
	if store == nil {
		panic("notify: in-app sender requires a store")
	}
	return &InAppSender{store: store}
}

func (s *InAppSender) Channel() Channel {
	return ChannelInApp
}

func (s *InAppSender) Send(ctx context.Context, event Event) error {
	metadata := "{}"
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("notify: encode metadata: %w", err)
		}
		metadata = string(raw)
	}

	return s.store.InsertNotification(ctx, storage.NotificationRecord{
		TenantID:      event.TenantID,
		EventType:     string(event.Type),
		Title:         event.Title,
		Message:       event.Message,
		Priority:      string(event.Priority),
		PatientID:     event.PatientID,
		AppointmentID: event.AppointmentID,
		Metadata:      metadata,
		CreatedAt:     event.CreatedAt,
	})
}
