package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/internal/tenancy"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

type conversationStore interface {
	ListConversations(ctx context.Context, tenantID string, limit int) ([]storage.ConversationRecord, error)
	GetConversation(ctx context.Context, tenantID, chatID string) (*storage.ConversationRecord, error)
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]storage.MessageRecord, error)
}

// ConversationsHandler serves the admin chat inbox.
type ConversationsHandler struct {
	store         conversationStore
	defaultTenant string
	logger        *logging.Logger
}

// NewConversationsHandler creates a conversations handler.
func NewConversationsHandler(store conversationStore, defaultTenant string, logger *logging.Logger) *ConversationsHandler {
	if store == nil {
		panic("handlers: conversations handler requires a store")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ConversationsHandler{
		store:         store,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

func (h *ConversationsHandler) tenantID(r *http.Request) string {
	if tenant, ok := tenancy.TenantIDFromContext(r.Context()); ok && tenant != "" {
		return tenant
	}
	if tenant := r.URL.Query().Get("tenant_id"); tenant != "" {
		return tenant
	}
	return h.defaultTenant
}

// ConversationResponse is one inbox row.
type ConversationResponse struct {
	ID            int64  `json:"id"`
	ChatID        string `json:"chat_id"`
	DisplayName   string `json:"display_name"`
	LastMessage   string `json:"last_message"`
	LastMessageAt string `json:"last_message_at"`
	UnreadCount   int    `json:"unread_count"`
	AgentMode     string `json:"agent_mode"`
}

// MessageResponse is one message of a conversation.
type MessageResponse struct {
	ID        int64  `json:"id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	MediaRef  string `json:"media_ref,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// List returns the most recently active conversations.
// GET /admin/conversations?limit=50
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, err := h.store.ListConversations(r.Context(), tenantID, limit)
	if err != nil {
		h.logger.Error("conversation list failed", "tenant_id", tenantID, "error", err.Error())
		jsonError(w, "failed to list conversations", http.StatusInternalServerError)
		return
	}

	response := make([]ConversationResponse, 0, len(records))
	for _, record := range records {
		response = append(response, ConversationResponse{
			ID:            record.ID,
			ChatID:        record.ChatID,
			DisplayName:   record.DisplayName,
			LastMessage:   record.LastMessage,
			LastMessageAt: record.LastMessageAt.Format(time.RFC3339),
			UnreadCount:   record.UnreadCount,
			AgentMode:     record.AgentMode,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": response})
}

// Messages returns a conversation's recent messages in chronological order.
// GET /admin/conversations/{chatID}/messages?limit=20
func (h *ConversationsHandler) Messages(w http.ResponseWriter, r *http.Request) {
	tenantID := h.tenantID(r)

	chatID, err := url.PathUnescape(chi.URLParam(r, "chatID"))
	if err != nil || chatID == "" {
		jsonError(w, "missing chatID", http.StatusBadRequest)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	conversation, err := h.store.GetConversation(r.Context(), tenantID, chatID)
	if err != nil {
		h.logger.Error("conversation lookup failed", "tenant_id", tenantID, "chat_id", chatID, "error", err.Error())
		jsonError(w, "failed to load conversation", http.StatusInternalServerError)
		return
	}
	if conversation == nil {
		jsonError(w, "conversation not found", http.StatusNotFound)
		return
	}

	messages, err := h.store.ListRecentMessages(r.Context(), conversation.ID, limit)
	if err != nil {
		h.logger.Error("message list failed", "tenant_id", tenantID, "chat_id", chatID, "error", err.Error())
		jsonError(w, "failed to list messages", http.StatusInternalServerError)
		return
	}

	response := make([]MessageResponse, 0, len(messages))
	for _, message := range messages {
		response = append(response, MessageResponse{
			ID:        message.ID,
			Direction: message.Direction,
			Content:   message.Content,
			MediaRef:  message.MediaRef,
			Status:    message.Status,
			CreatedAt: message.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chat_id":  conversation.ChatID,
		"messages": response,
	})
}
