package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicware/clinic-ai-platform/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// ErrNotConnected is returned by Send when the tenant has no live session.
var ErrNotConnected = errors.New("session: not connected")

// ReconnectDelays configures the backoff per closure reason.
type ReconnectDelays struct {
	Conflict    time.Duration
	StreamError time.Duration
	AuthFailure time.Duration
	Other       time.Duration
}

// DefaultReconnectDelays mirrors the production policy: a paired-elsewhere
// conflict backs off long enough for the other client to win or give up,
// stream errors restart almost immediately.
func DefaultReconnectDelays() ReconnectDelays {
	return ReconnectDelays{
		Conflict:    15 * time.Second,
		StreamError: time.Second,
		AuthFailure: 2 * time.Second,
		Other:       3 * time.Second,
	}
}

// outboundStore records sent messages into conversation history.
type outboundStore interface {
	UpsertConversation(ctx context.Context, tenantID, chatID, displayName, lastMessage string, at time.Time, inbound bool) (int64, error)
	AppendMessage(ctx context.Context, msg storage.MessageRecord) (int64, error)
}

// Snapshot is a read-only view of one tenant's session.
type Snapshot struct {
	TenantID          string
	State             State
	Connected         bool
	PairingPending    bool
	LastStateChangeAt time.Time
}

type liveSession struct {
	tenantID      string
	state         State
	handle        Handle
	pairing       string
	lastChange    time.Time
	starting      bool
	reconnect     *time.Timer
	heartbeatDone chan struct{}
}

func (s *liveSession) setState(state State) {
	s.state = state
	s.lastChange = time.Now().UTC()
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Connector Connector
	Store     outboundStore
	Pairing   *PairingCache
	Handler   IngestHandler
	Metrics   *metrics.EngineMetrics
	Logger    *logging.Logger

	CredentialDir string
	SpoolDir      string
	DefaultRegion string
	Delays        ReconnectDelays
}

// Manager owns at most one live platform session per tenant and drives the
// connect/reconnect/teardown state machine. It is the sole mutator of the
// session store; everything else sees read accessors.
type Manager struct {
	connector Connector
	store     outboundStore
	pairing   *PairingCache
	handler   IngestHandler
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger

	credentialDir string
	spoolDir      string
	defaultRegion string
	delays        ReconnectDelays

	mu       sync.Mutex
	sessions map[string]*liveSession
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Connector == nil {
		panic("session: manager requires a connector")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Pairing == nil {
		cfg.Pairing = NewPairingCache(nil, cfg.Logger)
	}
	if cfg.CredentialDir == "" {
		cfg.CredentialDir = "auth_state"
	}
	if cfg.SpoolDir == "" {
		cfg.SpoolDir = "uploads"
	}
	zero := ReconnectDelays{}
	if cfg.Delays == zero {
		cfg.Delays = DefaultReconnectDelays()
	}

	return &Manager{
		connector:     cfg.Connector,
		store:         cfg.Store,
		pairing:       cfg.Pairing,
		handler:       cfg.Handler,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
		credentialDir: cfg.CredentialDir,
		spoolDir:      cfg.SpoolDir,
		defaultRegion: cfg.DefaultRegion,
		delays:        cfg.Delays,
	}
}

// SetHandler installs the ingestion consumer. Must be called before Start.
func (m *Manager) SetHandler(handler IngestHandler) {
	m.handler = handler
}

// Start opens the tenant's session. It is a no-op when the session is already
// connected, awaiting pairing, or another start is in flight; at most one live
// underlying connection exists per tenant.
func (m *Manager) Start(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	if m.sessions == nil {
		m.sessions = make(map[string]*liveSession)
	}
	s, ok := m.sessions[tenantID]
	if !ok {
		s = &liveSession{tenantID: tenantID, state: StateIdle}
		m.sessions[tenantID] = s
	}
	if s.starting || s.state == StateConnected || s.state == StateConnecting || s.state == StateAwaitingPairing {
		m.mu.Unlock()
		m.logger.Debug("start ignored, session busy", "tenant_id", tenantID, "state", string(s.state))
		return nil
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.starting = true
	s.setState(StateConnecting)
	m.mu.Unlock()

	m.logger.Info("starting session", "tenant_id", tenantID)

	handlers := EventHandlers{
		OnPairingCode: func(payload string) { m.onPairingCode(tenantID, payload) },
		OnConnected:   func() { m.onConnected(tenantID) },
		OnClosed:      func(reason CloseReason, detail string) { m.onClosed(tenantID, reason, detail) },
		OnMessages:    func(batch []RawMessage) { m.onMessages(tenantID, batch) },
	}

	handle, err := m.connector.Connect(ctx, tenantID, m.credDir(tenantID), handlers)

	m.mu.Lock()
	s.starting = false
	if err != nil {
		s.setState(StateIdle)
		m.mu.Unlock()
		return fmt.Errorf("session: connect %s: %w", tenantID, err)
	}
	s.handle = handle
	m.mu.Unlock()
	return nil
}

// Stop is the explicit logout path: it cancels any pending reconnect, tears
// down the connector and clears the session entry. Idempotent.
func (m *Manager) Stop(ctx context.Context, tenantID string) error {
	m.mu.Lock()
	s := m.sessions[tenantID]
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	m.stopHeartbeatLocked(s)
	s.setState(StateClosing)
	handle := s.handle
	s.handle = nil
	delete(m.sessions, tenantID)
	m.mu.Unlock()

	m.pairing.Clear(ctx, tenantID)
	if handle != nil {
		if err := handle.Logout(ctx); err != nil {
			m.logger.Warn("logout failed", "tenant_id", tenantID, "error", err.Error())
		}
		_ = handle.Close()
	}
	m.logger.Info("session stopped", "tenant_id", tenantID)
	return nil
}

// StopAll tears down every session with a full logout. Used from tests and
// admin tooling, not on ordinary shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.Lock()
	tenants := make([]string, 0, len(m.sessions))
	for tenantID := range m.sessions {
		tenants = append(tenants, tenantID)
	}
	m.mu.Unlock()

	for _, tenantID := range tenants {
		_ = m.Stop(ctx, tenantID)
	}
}

// Shutdown closes every connection without logging out, so credentials stay
// valid and the next process start resumes the pairing. Used on process exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	handles := make([]Handle, 0, len(m.sessions))
	for tenantID, s := range m.sessions {
		if s.reconnect != nil {
			s.reconnect.Stop()
			s.reconnect = nil
		}
		m.stopHeartbeatLocked(s)
		s.setState(StateClosing)
		if s.handle != nil {
			handles = append(handles, s.handle)
			s.handle = nil
		}
		delete(m.sessions, tenantID)
	}
	m.mu.Unlock()

	for _, handle := range handles {
		_ = handle.Close()
	}
}

// IsConnected reports whether the tenant currently has a live connection.
func (m *Manager) IsConnected(tenantID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[tenantID]
	return s != nil && s.state == StateConnected
}

// Status returns a read-only view of the tenant's session.
func (m *Manager) Status(tenantID string) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sessions[tenantID]
	if s == nil {
		return Snapshot{TenantID: tenantID, State: StateIdle}
	}
	return Snapshot{
		TenantID:          tenantID,
		State:             s.state,
		Connected:         s.state == StateConnected,
		PairingPending:    s.pairing != "",
		LastStateChangeAt: s.lastChange,
	}
}

// PairingPayload returns the pending pairing payload for UI polling.
func (m *Manager) PairingPayload(ctx context.Context, tenantID string) string {
	return m.pairing.Get(ctx, tenantID)
}

// Send resolves the destination to a platform id, sends the text over the
// tenant's live connection and records the outbound message.
func (m *Manager) Send(ctx context.Context, tenantID, destination, text string) error {
	m.mu.Lock()
	s := m.sessions[tenantID]
	var handle Handle
	if s != nil && s.state == StateConnected {
		handle = s.handle
	}
	m.mu.Unlock()
	if handle == nil {
		return ErrNotConnected
	}

	jid := ResolveJID(destination, m.defaultRegion)
	if jid == "" {
		return fmt.Errorf("session: unusable destination %q", destination)
	}

	if err := handle.Send(ctx, jid, text); err != nil {
		return fmt.Errorf("session: send to %s: %w", jid, err)
	}
	m.recordOutbound(ctx, tenantID, jid, text)
	return nil
}

func (m *Manager) recordOutbound(ctx context.Context, tenantID, jid, text string) {
	if m.store == nil {
		return
	}
	now := time.Now().UTC()
	convID, err := m.store.UpsertConversation(ctx, tenantID, jid, "", text, now, false)
	if err != nil {
		m.logger.Warn("outbound conversation upsert failed",
			"tenant_id", tenantID, "chat_id", jid, "error", err.Error())
		return
	}
	if _, err := m.store.AppendMessage(ctx, storage.MessageRecord{
		ConversationID: convID,
		Direction:      storage.DirectionOut,
		Content:        text,
		Status:         "sent",
		CreatedAt:      now,
	}); err != nil {
		m.logger.Warn("outbound message append failed",
			"tenant_id", tenantID, "chat_id", jid, "error", err.Error())
	}
}

func (m *Manager) onPairingCode(tenantID, payload string) {
	m.mu.Lock()
	s := m.sessions[tenantID]
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.pairing = payload
	if s.state != StateConnected {
		s.setState(StateAwaitingPairing)
	}
	m.mu.Unlock()

	m.pairing.Set(context.Background(), tenantID, payload)
	m.logger.Info("pairing code issued", "tenant_id", tenantID)
}

func (m *Manager) onConnected(tenantID string) {
	m.mu.Lock()
	s := m.sessions[tenantID]
	if s == nil {
		m.mu.Unlock()
		return
	}
	s.pairing = ""
	s.setState(StateConnected)
	m.startHeartbeatLocked(s)
	m.mu.Unlock()

	m.pairing.Clear(context.Background(), tenantID)
	m.logger.Info("session connected", "tenant_id", tenantID)
}

func (m *Manager) onClosed(tenantID string, reason CloseReason, detail string) {
	m.mu.Lock()
	s := m.sessions[tenantID]
	if s == nil || s.state == StateClosing || s.state == StateLoggedOut {
		// Explicit stop in progress (or already gone): the closure was
		// requested, nothing to recover.
		m.mu.Unlock()
		return
	}
	m.stopHeartbeatLocked(s)
	s.handle = nil
	s.pairing = ""

	if reason == CloseLogout {
		s.setState(StateLoggedOut)
		m.mu.Unlock()

		m.pairing.Clear(context.Background(), tenantID)
		if err := RemoveCredentials(m.credDir(tenantID)); err != nil {
			m.logger.Error("credential removal failed", "tenant_id", tenantID, "error", err.Error())
		}
		m.logger.Warn("session logged out, not reconnecting", "tenant_id", tenantID, "detail", detail)
		return
	}

	s.setState(StateIdle)
	m.mu.Unlock()

	delay := m.delays.Other
	switch reason {
	case CloseConflict:
		delay = m.delays.Conflict
	case CloseStreamError:
		delay = m.delays.StreamError
	case CloseAuthFailure:
		delay = m.delays.AuthFailure
		if archived, err := ArchiveCredentials(m.credDir(tenantID)); err != nil {
			m.logger.Error("credential archive failed", "tenant_id", tenantID, "error", err.Error())
		} else if archived != "" {
			m.logger.Warn("credentials archived for re-pairing",
				"tenant_id", tenantID, "archived_to", archived)
		}
	}

	m.logger.Warn("session closed, scheduling reconnect",
		"tenant_id", tenantID, "reason", string(reason), "detail", detail, "delay", delay.String())
	m.scheduleReconnect(tenantID, reason, delay)
}

func (m *Manager) scheduleReconnect(tenantID string, reason CloseReason, delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.sessions[tenantID]
	if s == nil || s.state == StateLoggedOut {
		return
	}
	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	m.metrics.ObserveReconnect(string(reason))
	s.reconnect = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if live := m.sessions[tenantID]; live != nil {
			live.reconnect = nil
		}
		m.mu.Unlock()

		if err := m.Start(context.Background(), tenantID); err != nil {
			m.logger.Error("reconnect failed", "tenant_id", tenantID, "error", err.Error())
			m.scheduleReconnect(tenantID, CloseOther, m.delays.Other)
		}
	})
}

// onMessages turns a raw batch into ingested messages: skip self-echoes and
// broadcasts, pick text or caption, spool voice notes to disk.
func (m *Manager) onMessages(tenantID string, batch []RawMessage) {
	if m.handler == nil {
		return
	}

	items := make([]InboundMessage, 0, len(batch))
	for _, raw := range batch {
		if raw.FromSelf || raw.ChatID == "" || raw.ChatID == "status@broadcast" {
			continue
		}

		text := raw.Text
		if text == "" {
			text = raw.Caption
		}

		var mediaPath, mediaMIME string
		if raw.VoiceNote != nil && raw.VoiceNote.Download != nil {
			path, err := m.spoolVoiceNote(raw.VoiceNote)
			if err != nil {
				m.logger.Error("voice note download failed",
					"tenant_id", tenantID, "chat_id", raw.ChatID, "error", err.Error())
			} else {
				mediaPath = path
				mediaMIME = raw.VoiceNote.MIMEType
				if mediaMIME == "" {
					mediaMIME = "audio/ogg"
				}
			}
		}

		if text == "" && mediaPath == "" {
			continue
		}

		ts := raw.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		items = append(items, InboundMessage{
			ChatID:      raw.ChatID,
			Phone:       PhoneFromJID(raw.ChatID),
			DisplayName: raw.SenderName,
			Text:        text,
			MediaPath:   mediaPath,
			MediaMIME:   mediaMIME,
			ProviderID:  raw.ProviderID,
			Timestamp:   ts,
		})
	}

	if len(items) > 0 {
		m.handler(tenantID, items)
	}
}

func (m *Manager) spoolVoiceNote(note *VoiceNote) (string, error) {
	if err := os.MkdirAll(m.spoolDir, 0o755); err != nil {
		return "", fmt.Errorf("session: create spool dir: %w", err)
	}

	reader, err := note.Download(context.Background())
	if err != nil {
		return "", fmt.Errorf("session: download voice note: %w", err)
	}
	defer reader.Close()

	path := filepath.Join(m.spoolDir, uuid.NewString()+".ogg")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("session: create spool file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("session: buffer voice note: %w", err)
	}
	return path, nil
}

func (m *Manager) startHeartbeatLocked(s *liveSession) {
	if s.heartbeatDone != nil {
		return
	}
	done := make(chan struct{})
	s.heartbeatDone = done
	tenantID := s.tenantID

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.logger.Info("session heartbeat",
					"tenant_id", tenantID, "connected", m.IsConnected(tenantID))
			}
		}
	}()
}

func (m *Manager) stopHeartbeatLocked(s *liveSession) {
	if s.heartbeatDone != nil {
		close(s.heartbeatDone)
		s.heartbeatDone = nil
	}
}

func (m *Manager) credDir(tenantID string) string {
	return filepath.Join(m.credentialDir, tenantID)
}
