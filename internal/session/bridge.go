package session

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// BridgeConnector implements Connector against a gateway sidecar that owns
// the real chat-platform protocol. The engine dials the sidecar per tenant
// and the two exchange JSON frames: the sidecar pushes lifecycle events and
// message batches, the engine pushes send/logout commands.
type BridgeConnector struct {
	baseURL string
	origin  string
	logger  *logging.Logger
}

// NewBridgeConnector creates a connector dialing the given ws:// base URL.
func NewBridgeConnector(baseURL string, logger *logging.Logger) *BridgeConnector {
	if baseURL == "" {
		panic("session: bridge connector requires a base URL")
	}
	if logger == nil {
		logger = logging.Default()
	}
	origin := "http" + strings.TrimPrefix(baseURL, "ws")
	return &BridgeConnector{
		baseURL: strings.TrimRight(baseURL, "/"),
		origin:  origin,
		logger:  logger,
	}
}

// bridgeEvent is one frame pushed by the sidecar.
type bridgeEvent struct {
	Type     string          `json:"type"`
	Payload  string          `json:"payload,omitempty"`
	Code     int             `json:"code,omitempty"`
	Detail   string          `json:"detail,omitempty"`
	Messages []bridgeMessage `json:"messages,omitempty"`
}

type bridgeMessage struct {
	ChatID     string       `json:"chat_id"`
	SenderName string       `json:"sender_name,omitempty"`
	ProviderID string       `json:"provider_id,omitempty"`
	FromSelf   bool         `json:"from_self,omitempty"`
	Timestamp  int64        `json:"timestamp,omitempty"` // unix milliseconds
	Text       string       `json:"text,omitempty"`
	Caption    string       `json:"caption,omitempty"`
	Voice      *bridgeVoice `json:"voice,omitempty"`
}

type bridgeVoice struct {
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data"` // base64
}

// bridgeCommand is one frame pushed by the engine.
type bridgeCommand struct {
	Type        string `json:"type"`
	Destination string `json:"destination,omitempty"`
	Text        string `json:"text,omitempty"`
}

// Connect dials the sidecar and starts the event read loop.
func (c *BridgeConnector) Connect(_ context.Context, tenantID, credentialDir string, handlers EventHandlers) (Handle, error) {
	target := fmt.Sprintf("%s/session?tenant_id=%s&credential_dir=%s",
		c.baseURL, url.QueryEscape(tenantID), url.QueryEscape(credentialDir))

	conn, err := websocket.Dial(target, "", c.origin)
	if err != nil {
		return nil, fmt.Errorf("session: dial bridge: %w", err)
	}

	h := &bridgeHandle{
		conn:   conn,
		logger: c.logger,
	}
	go h.readLoop(tenantID, handlers)
	return h, nil
}

type bridgeHandle struct {
	conn   *websocket.Conn
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

func (h *bridgeHandle) readLoop(tenantID string, handlers EventHandlers) {
	for {
		var event bridgeEvent
		if err := websocket.JSON.Receive(h.conn, &event); err != nil {
			h.mu.Lock()
			deliberate := h.closed
			h.mu.Unlock()
			if deliberate {
				return
			}
			if handlers.OnClosed != nil {
				handlers.OnClosed(CloseOther, "bridge connection lost: "+err.Error())
			}
			return
		}

		switch event.Type {
		case "pairing_code":
			if handlers.OnPairingCode != nil {
				handlers.OnPairingCode(event.Payload)
			}
		case "connected":
			if handlers.OnConnected != nil {
				handlers.OnConnected()
			}
		case "closed":
			if handlers.OnClosed != nil {
				handlers.OnClosed(ClassifyCloseCode(event.Code), event.Detail)
			}
			_ = h.Close()
			return
		case "messages":
			if handlers.OnMessages != nil && len(event.Messages) > 0 {
				handlers.OnMessages(convertBridgeMessages(event.Messages))
			}
		default:
			h.logger.Warn("unknown bridge event", "tenant_id", tenantID, "type", event.Type)
		}
	}
}

func convertBridgeMessages(batch []bridgeMessage) []RawMessage {
	raws := make([]RawMessage, 0, len(batch))
	for _, msg := range batch {
		raw := RawMessage{
			ChatID:     msg.ChatID,
			SenderName: msg.SenderName,
			ProviderID: msg.ProviderID,
			FromSelf:   msg.FromSelf,
			Text:       msg.Text,
			Caption:    msg.Caption,
		}
		if msg.Timestamp > 0 {
			raw.Timestamp = time.UnixMilli(msg.Timestamp)
		}
		if msg.Voice != nil {
			data := msg.Voice.Data
			raw.VoiceNote = &VoiceNote{
				MIMEType: msg.Voice.MIMEType,
				Download: func(context.Context) (io.ReadCloser, error) {
					decoded, err := base64.StdEncoding.DecodeString(data)
					if err != nil {
						return nil, fmt.Errorf("session: decode voice note: %w", err)
					}
					return io.NopCloser(bytes.NewReader(decoded)), nil
				},
			}
		}
		raws = append(raws, raw)
	}
	return raws
}

func (h *bridgeHandle) Send(_ context.Context, destination, text string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrNotConnected
	}
	cmd := bridgeCommand{Type: "send", Destination: destination, Text: text}
	if err := websocket.JSON.Send(h.conn, cmd); err != nil {
		return fmt.Errorf("session: bridge send: %w", err)
	}
	return nil
}

func (h *bridgeHandle) Logout(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	if err := websocket.JSON.Send(h.conn, bridgeCommand{Type: "logout"}); err != nil {
		return fmt.Errorf("session: bridge logout: %w", err)
	}
	return nil
}

func (h *bridgeHandle) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()
	return h.conn.Close()
}
