package notify

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// Hub tracks live admin-UI websocket connections per tenant and pushes audio
// cues and notification events to them.
type Hub struct {
	logger *logging.Logger

	mu    sync.RWMutex
	conns map[string]map[string]*websocket.Conn // tenantID -> connID -> conn
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	return &Hub{
		logger: logger,
		conns:  make(map[string]map[string]*websocket.Conn),
	}
}

// Register adds a connection and returns an id for Unregister.
func (h *Hub) Register(tenantID string, conn *websocket.Conn) string {
	id := uuid.NewString()
	h.mu.Lock()
	if h.conns[tenantID] == nil {
		h.conns[tenantID] = make(map[string]*websocket.Conn)
	}
	h.conns[tenantID][id] = conn
	h.mu.Unlock()

	h.logger.Debug("websocket client registered", "tenant_id", tenantID, "conn_id", id)
	return id
}

// Unregister removes a connection. Safe to call twice.
func (h *Hub) Unregister(tenantID, id string) {
	h.mu.Lock()
	if conns, ok := h.conns[tenantID]; ok {
		delete(conns, id)
		if len(conns) == 0 {
			delete(h.conns, tenantID)
		}
	}
	h.mu.Unlock()
}

// Broadcast sends payload as JSON to every connection of the tenant. Failed
// connections are dropped from the hub.
func (h *Hub) Broadcast(tenantID string, payload any) {
	h.mu.RLock()
	targets := make(map[string]*websocket.Conn, len(h.conns[tenantID]))
	for id, conn := range h.conns[tenantID] {
		targets[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range targets {
		if err := websocket.JSON.Send(conn, payload); err != nil {
			h.logger.Warn("websocket send failed, dropping client",
				"tenant_id", tenantID, "conn_id", id, "error", err.Error())
			h.Unregister(tenantID, id)
			_ = conn.Close()
		}
	}
}

// ClientCount returns the number of live connections for a tenant.
func (h *Hub) ClientCount(tenantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[tenantID])
}
