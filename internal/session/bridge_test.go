package session

import (
	"context"
	"encoding/base64"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

// fakeBridge plays the gateway sidecar: it accepts one websocket session,
// records commands and lets the test push events.
type fakeBridge struct {
	server *httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	query    map[string]string
	commands []bridgeCommand
	ready    chan struct{}
}

func newFakeBridge(t *testing.T) *fakeBridge {
	t.Helper()
	bridge := &fakeBridge{ready: make(chan struct{})}

	bridge.server = httptest.NewServer(websocket.Handler(func(conn *websocket.Conn) {
		bridge.mu.Lock()
		bridge.conn = conn
		bridge.query = map[string]string{
			"tenant_id":      conn.Request().URL.Query().Get("tenant_id"),
			"credential_dir": conn.Request().URL.Query().Get("credential_dir"),
		}
		bridge.mu.Unlock()
		close(bridge.ready)

		for {
			var cmd bridgeCommand
			if err := websocket.JSON.Receive(conn, &cmd); err != nil {
				return
			}
			bridge.mu.Lock()
			bridge.commands = append(bridge.commands, cmd)
			bridge.mu.Unlock()
		}
	}))
	t.Cleanup(bridge.server.Close)
	return bridge
}

func (b *fakeBridge) wsURL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

func (b *fakeBridge) push(t *testing.T, event bridgeEvent) {
	t.Helper()
	select {
	case <-b.ready:
	case <-time.After(time.Second):
		t.Fatal("bridge connection never established")
	}
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	require.NoError(t, websocket.JSON.Send(conn, event))
}

func (b *fakeBridge) recorded() []bridgeCommand {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridgeCommand(nil), b.commands...)
}

type recordedEvents struct {
	mu       sync.Mutex
	pairing  []string
	connects int
	closes   []struct {
		Reason CloseReason
		Detail string
	}
	batches [][]RawMessage
}

func (r *recordedEvents) handlers() EventHandlers {
	return EventHandlers{
		OnPairingCode: func(payload string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.pairing = append(r.pairing, payload)
		},
		OnConnected: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.connects++
		},
		OnClosed: func(reason CloseReason, detail string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.closes = append(r.closes, struct {
				Reason CloseReason
				Detail string
			}{reason, detail})
		},
		OnMessages: func(batch []RawMessage) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.batches = append(r.batches, batch)
		},
	}
}

func TestBridgeConnectorLifecycleEvents(t *testing.T) {
	bridge := newFakeBridge(t)
	connector := NewBridgeConnector(bridge.wsURL(), nil)
	events := &recordedEvents{}

	handle, err := connector.Connect(context.Background(), "clinic-1", "auth_state/clinic-1", events.handlers())
	require.NoError(t, err)
	defer handle.Close()

	<-bridge.ready
	assert.Equal(t, "clinic-1", bridge.query["tenant_id"])
	assert.Equal(t, "auth_state/clinic-1", bridge.query["credential_dir"])

	bridge.push(t, bridgeEvent{Type: "pairing_code", Payload: "PAIR-1234"})
	bridge.push(t, bridgeEvent{Type: "connected"})
	bridge.push(t, bridgeEvent{Type: "closed", Code: 440, Detail: "replaced"})

	require.Eventually(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.closes) == 1
	}, time.Second, 5*time.Millisecond)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, []string{"PAIR-1234"}, events.pairing)
	assert.Equal(t, 1, events.connects)
	assert.Equal(t, CloseConflict, events.closes[0].Reason)
	assert.Equal(t, "replaced", events.closes[0].Detail)
}

func TestBridgeConnectorMessageBatch(t *testing.T) {
	bridge := newFakeBridge(t)
	connector := NewBridgeConnector(bridge.wsURL(), nil)
	events := &recordedEvents{}

	handle, err := connector.Connect(context.Background(), "clinic-1", "dir", events.handlers())
	require.NoError(t, err)
	defer handle.Close()

	voiceData := base64.StdEncoding.EncodeToString([]byte("opus-bytes"))
	bridge.push(t, bridgeEvent{Type: "messages", Messages: []bridgeMessage{
		{
			ChatID:     "962791234567@s.whatsapp.net",
			SenderName: "محمد",
			ProviderID: "ABC",
			Timestamp:  time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC).UnixMilli(),
			Text:       "مرحبا",
		},
		{
			ChatID: "962791234567@s.whatsapp.net",
			Voice:  &bridgeVoice{MIMEType: "audio/ogg; codecs=opus", Data: voiceData},
		},
	}})

	require.Eventually(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.batches) == 1
	}, time.Second, 5*time.Millisecond)

	events.mu.Lock()
	defer events.mu.Unlock()
	batch := events.batches[0]
	require.Len(t, batch, 2)

	assert.Equal(t, "مرحبا", batch[0].Text)
	assert.Equal(t, "محمد", batch[0].SenderName)
	assert.Equal(t, time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC).UnixMilli(), batch[0].Timestamp.UnixMilli())

	require.NotNil(t, batch[1].VoiceNote)
	assert.Equal(t, "audio/ogg; codecs=opus", batch[1].VoiceNote.MIMEType)
	reader, err := batch[1].VoiceNote.Download(context.Background())
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "opus-bytes", string(data))
}

func TestBridgeConnectorSendAndLogout(t *testing.T) {
	bridge := newFakeBridge(t)
	connector := NewBridgeConnector(bridge.wsURL(), nil)

	handle, err := connector.Connect(context.Background(), "clinic-1", "dir", EventHandlers{})
	require.NoError(t, err)
	defer handle.Close()

	require.NoError(t, handle.Send(context.Background(), "962791234567@s.whatsapp.net", "أهلاً"))
	require.NoError(t, handle.Logout(context.Background()))

	require.Eventually(t, func() bool {
		return len(bridge.recorded()) == 2
	}, time.Second, 5*time.Millisecond)

	commands := bridge.recorded()
	assert.Equal(t, "send", commands[0].Type)
	assert.Equal(t, "962791234567@s.whatsapp.net", commands[0].Destination)
	assert.Equal(t, "أهلاً", commands[0].Text)
	assert.Equal(t, "logout", commands[1].Type)
}

func TestBridgeConnectorLostConnectionReportsOther(t *testing.T) {
	bridge := newFakeBridge(t)
	connector := NewBridgeConnector(bridge.wsURL(), nil)
	events := &recordedEvents{}

	handle, err := connector.Connect(context.Background(), "clinic-1", "dir", events.handlers())
	require.NoError(t, err)
	defer handle.Close()

	<-bridge.ready
	bridge.mu.Lock()
	bridge.conn.Close()
	bridge.mu.Unlock()

	require.Eventually(t, func() bool {
		events.mu.Lock()
		defer events.mu.Unlock()
		return len(events.closes) == 1
	}, time.Second, 5*time.Millisecond)

	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Equal(t, CloseOther, events.closes[0].Reason)
}

func TestBridgeConnectorDeliberateCloseIsSilent(t *testing.T) {
	bridge := newFakeBridge(t)
	connector := NewBridgeConnector(bridge.wsURL(), nil)
	events := &recordedEvents{}

	handle, err := connector.Connect(context.Background(), "clinic-1", "dir", events.handlers())
	require.NoError(t, err)
	<-bridge.ready

	require.NoError(t, handle.Close())
	assert.ErrorIs(t, handle.Send(context.Background(), "x", "y"), ErrNotConnected)

	time.Sleep(50 * time.Millisecond)
	events.mu.Lock()
	defer events.mu.Unlock()
	assert.Empty(t, events.closes, "engine-initiated close must not fire OnClosed")
}

func TestBridgeConnectorDialFailure(t *testing.T) {
	connector := NewBridgeConnector("ws://127.0.0.1:1", nil)
	_, err := connector.Connect(context.Background(), "clinic-1", "dir", EventHandlers{})
	require.Error(t, err)
}
