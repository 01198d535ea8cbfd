package handlers

import (
	"net/http"

	"golang.org/x/net/websocket"

	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// StreamHandler upgrades admin-UI clients to a websocket fed by the
// notification hub. The server never reads application data; the read loop
// exists only to notice the peer going away.
type StreamHandler struct {
	hub           *notify.Hub
	defaultTenant string
	logger        *logging.Logger
}

// NewStreamHandler creates a stream handler.
func NewStreamHandler(hub *notify.Hub, defaultTenant string, logger *logging.Logger) *StreamHandler {
	if hub == nil {
		panic("handlers: stream handler requires a hub")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &StreamHandler{
		hub:           hub,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// Serve handles GET /admin/notifications/stream.
func (h *StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")
	if tenantID == "" {
		tenantID = h.defaultTenant
	}

	websocket.Handler(func(conn *websocket.Conn) {
		id := h.hub.Register(tenantID, conn)
		defer h.hub.Unregister(tenantID, id)

		var discard string
		for {
			if err := websocket.Message.Receive(conn, &discard); err != nil {
				return
			}
		}
	}).ServeHTTP(w, r)
}
