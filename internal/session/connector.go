package session

import (
	"context"
	"io"
	"time"
)

// State of one tenant's platform session.
type State string

const (
	StateIdle            State = "idle"
	StateConnecting      State = "connecting"
	StateAwaitingPairing State = "awaiting_pairing"
	StateConnected       State = "connected"
	StateClosing         State = "closing"
	StateLoggedOut       State = "logged_out"
)

// CloseReason classifies why the underlying connection dropped.
type CloseReason string

const (
	// CloseLogout: the user unlinked the device. Terminal, no reconnect.
	CloseLogout CloseReason = "logout"
	// CloseConflict: another client paired with the same account.
	CloseConflict CloseReason = "conflict"
	// CloseStreamError: transient wire-level failure, fast reconnect.
	CloseStreamError CloseReason = "stream_error"
	// CloseAuthFailure: credential corruption; archive and re-pair.
	CloseAuthFailure CloseReason = "auth_failure"
	// CloseOther covers everything else.
	CloseOther CloseReason = "other"
)

// ClassifyCloseCode maps wire-protocol status codes to close reasons.
func ClassifyCloseCode(code int) CloseReason {
	switch code {
	case 440:
		return CloseConflict
	case 515:
		return CloseStreamError
	case 401:
		return CloseAuthFailure
	default:
		return CloseOther
	}
}

// VoiceNote is an undownloaded audio attachment on a raw message.
type VoiceNote struct {
	MIMEType string
	Download func(ctx context.Context) (io.ReadCloser, error)
}

// RawMessage is one item of an inbound batch as the wire library presents it.
type RawMessage struct {
	ChatID     string
	SenderName string
	ProviderID string
	FromSelf   bool
	Timestamp  time.Time
	Text       string
	Caption    string
	VoiceNote  *VoiceNote
}

// EventHandlers receives connector callbacks for one session.
type EventHandlers struct {
	OnPairingCode func(payload string)
	OnConnected   func()
	OnClosed      func(reason CloseReason, detail string)
	OnMessages    func(batch []RawMessage)
}

// Handle is one live platform connection.
type Handle interface {
	Send(ctx context.Context, destination, text string) error
	Logout(ctx context.Context) error
	Close() error
}

// Connector opens platform connections. The real wire protocol lives behind
// this boundary; tests use a fake.
type Connector interface {
	Connect(ctx context.Context, tenantID, credentialDir string, handlers EventHandlers) (Handle, error)
}

// InboundMessage is one ingested message after text extraction and media
// download, ready for the reply pipeline.
type InboundMessage struct {
	ChatID      string
	Phone       string
	DisplayName string
	Text        string
	MediaPath   string
	MediaMIME   string
	ProviderID  string
	FromSelf    bool
	Timestamp   time.Time
}

// IngestHandler consumes ingested batches, in arrival order.
type IngestHandler func(tenantID string, batch []InboundMessage)
