package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/clinicware/clinic-ai-platform/internal/session"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// MessageSender delivers a text over the tenant's live platform session.
type MessageSender interface {
	Send(ctx context.Context, tenantID, destination, text string) error
}

// OutboundHandler lets clinic staff send a message from the admin inbox.
type OutboundHandler struct {
	sender        MessageSender
	defaultTenant string
	logger        *logging.Logger
}

// NewOutboundHandler creates an outbound message handler.
func NewOutboundHandler(sender MessageSender, defaultTenant string, logger *logging.Logger) *OutboundHandler {
	if sender == nil {
		panic("handlers: outbound handler requires a sender")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &OutboundHandler{
		sender:        sender,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// SendMessageRequest is the admin "send a message" payload.
type SendMessageRequest struct {
	TenantID    string `json:"tenant_id,omitempty"`
	Destination string `json:"destination"`
	Text        string `json:"text"`
}

// Send delivers a staff-composed message.
// POST /admin/messages
func (h *OutboundHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	req.Destination = strings.TrimSpace(req.Destination)
	req.Text = strings.TrimSpace(req.Text)
	if req.Destination == "" || req.Text == "" {
		jsonError(w, "destination and text are required", http.StatusBadRequest)
		return
	}

	if err := h.sender.Send(r.Context(), tenantID, req.Destination, req.Text); err != nil {
		if errors.Is(err, session.ErrNotConnected) {
			jsonError(w, "session is not connected", http.StatusConflict)
			return
		}
		h.logger.Error("outbound send failed",
			"tenant_id", tenantID, "destination", req.Destination, "error", err.Error())
		jsonError(w, "failed to send message", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}
