package notify

import (
	"context"
	"errors"
)

// platformClient is the slice of the session manager the platform channel
// needs: sending one text to one destination.
type platformClient interface {
	Send(ctx context.Context, tenantID, destination, text string) error
}

// PlatformSender delivers the notification message as a chat-platform text.
// The destination phone must be present in the event metadata.
type PlatformSender struct {
	client platformClient
}

// NewPlatformSender creates the platform-message channel sender.
func NewPlatformSender(client platformClient) *PlatformSender {
	if client == nil {
		panic("notify: platform sender requires a client")
	}
	return &PlatformSender{client: client}
}

func (s *PlatformSender) Channel() Channel {
	return ChannelPlatform
}

func (s *PlatformSender) Send(ctx context.Context, event Event) error {
	phone := event.Metadata["phone"]
	if phone == "" {
		return errors.New("notify: platform channel requires a phone in metadata")
	}
	return s.client.Send(ctx, event.TenantID, phone, event.Message)
}
