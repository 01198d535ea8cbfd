package handlers

import (
	"context"
	"net/http"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/clinicware/clinic-ai-platform/internal/session"
	"github.com/clinicware/clinic-ai-platform/internal/tenancy"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// SessionController is the subset of the session manager the admin API needs.
type SessionController interface {
	Start(ctx context.Context, tenantID string) error
	Stop(ctx context.Context, tenantID string) error
	Status(tenantID string) session.Snapshot
	PairingPayload(ctx context.Context, tenantID string) string
}

// SessionHandler exposes the platform session over the admin API: status
// polling, pairing QR image, manual start and logout.
type SessionHandler struct {
	sessions      SessionController
	defaultTenant string
	logger        *logging.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions SessionController, defaultTenant string, logger *logging.Logger) *SessionHandler {
	if sessions == nil {
		panic("handlers: session handler requires a controller")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SessionHandler{
		sessions:      sessions,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

func (h *SessionHandler) tenantID(r *http.Request) string {
	if tenant, ok := tenancy.TenantIDFromContext(r.Context()); ok && tenant != "" {
		return tenant
	}
	if tenant := r.URL.Query().Get("tenant_id"); tenant != "" {
		return tenant
	}
	return h.defaultTenant
}

// SessionStatusResponse is the admin view of one tenant's session.
type SessionStatusResponse struct {
	TenantID       string `json:"tenant_id"`
	State          string `json:"state"`
	Connected      bool   `json:"connected"`
	PairingPending bool   `json:"pairing_pending"`
	LastChangeAt   string `json:"last_change_at,omitempty"`
}

// Status returns the session state.
// GET /admin/session/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.sessions.Status(h.tenantID(r))

	response := SessionStatusResponse{
		TenantID:       snapshot.TenantID,
		State:          string(snapshot.State),
		Connected:      snapshot.Connected,
		PairingPending: snapshot.PairingPending,
	}
	if !snapshot.LastStateChangeAt.IsZero() {
		response.LastChangeAt = snapshot.LastStateChangeAt.Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, response)
}

// PairingImage renders the pending pairing payload as a QR PNG.
// GET /admin/session/qr
func (h *SessionHandler) PairingImage(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)
	payload := h.sessions.PairingPayload(r.Context(), tenantID)
	if payload == "" {
		jsonError(w, "no pairing pending", http.StatusNotFound)
		return
	}

	png, err := qrcode.Encode(payload, qrcode.Medium, 256)
	if err != nil {
		h.logger.Error("qr encode failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to render pairing code", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// Start opens the tenant's session.
// POST /admin/session/start
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)
	if err := h.sessions.Start(r.Context(), tenantID); err != nil {
		h.logger.Error("session start failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to start session", http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
}

// Logout tears the session down and invalidates its credentials.
// POST /admin/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)
	if err := h.sessions.Stop(r.Context(), tenantID); err != nil {
		h.logger.Error("session logout failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to log out", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
