package conversation

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/internal/tenancy"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

// processTimeout bounds one inbound message's trip through the pipeline,
// including the completion API call.
const processTimeout = 2 * time.Minute

// voiceNotePrompt is the user-turn text sent alongside an audio attachment.
const voiceNotePrompt = "افهم هذه البصمة الصوتية ورد عليها بالعربية."

// voiceNotePlaceholder is shown as the conversation's last message for a
// voice note without a caption.
const voiceNotePlaceholder = "🎤 رسالة صوتية"

// Inbound is one ingested platform message handed to the pipeline.
type Inbound struct {
	ChatID      string // full platform destination id
	Phone       string // bare phone key for tags/appointments
	DisplayName string
	Text        string
	MediaRef    string // spool path of a downloaded voice note
	MediaMIME   string
	ProviderID  string
	FromSelf    bool
	Timestamp   time.Time
}

// Sender delivers outbound texts through the live platform session.
type Sender interface {
	Send(ctx context.Context, tenantID, destination, text string) error
	IsConnected(tenantID string) bool
}

// Notifier fans business events out to notification channels.
type Notifier interface {
	Dispatch(ctx context.Context, event notify.Event)
}

// serviceStore is the slice of the storage layer the pipeline needs.
type serviceStore interface {
	UpsertConversation(ctx context.Context, tenantID, chatID, displayName, lastMessage string, at time.Time, inbound bool) (int64, error)
	AppendMessage(ctx context.Context, msg storage.MessageRecord) (int64, error)
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]storage.MessageRecord, error)
	ListActiveRules(ctx context.Context, tenantID string) ([]storage.RuleRecord, error)
	GetSetting(ctx context.Context, tenantID, key string) (string, error)
	ListServices(ctx context.Context, tenantID string) ([]storage.ServiceRecord, error)
	ListTags(ctx context.Context, tenantID string) ([]storage.TagRecord, error)
	InsertChatLog(ctx context.Context, entry storage.ChatLogRecord) error
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Store     serviceStore
	LLM       LLMClient
	Extractor *Extractor
	Sender    Sender
	Notifier  Notifier
	Queue     *SerialQueue
	Metrics   *metrics.EngineMetrics
	Logger    *logging.Logger

	HistoryDepth int
	MaxTokens    int32
	Temperature  float32
}

// Service is the reply pipeline: ingestion, template resolution, generative
// fallback, action extraction, outbound send. All work for one tenant runs on
// that tenant's serial queue lane so conversation state stays ordered and the
// appointment conflict check never races a concurrent booking.
type Service struct {
	store     serviceStore
	llm       LLMClient
	extractor *Extractor
	sender    Sender
	notifier  Notifier
	queue     *SerialQueue
	metrics   *metrics.EngineMetrics
	logger    *logging.Logger

	historyDepth int
	maxTokens    int32
	temperature  float32
	now          func() time.Time
}

// NewService creates the pipeline service.
func NewService(cfg ServiceConfig) *Service {
	if cfg.Store == nil {
		panic("conversation: service requires a store")
	}
	if cfg.LLM == nil {
		panic("conversation: service requires an llm client")
	}
	if cfg.Extractor == nil {
		panic("conversation: service requires an extractor")
	}
	if cfg.Sender == nil {
		panic("conversation: service requires a sender")
	}
	if cfg.Queue == nil {
		cfg.Queue = NewSerialQueue(0, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = 6
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}

	return &Service{
		store:        cfg.Store,
		llm:          cfg.LLM,
		extractor:    cfg.Extractor,
		sender:       cfg.Sender,
		notifier:     cfg.Notifier,
		queue:        cfg.Queue,
		metrics:      cfg.Metrics,
		logger:       cfg.Logger,
		historyDepth: cfg.HistoryDepth,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
		now:          time.Now,
	}
}

// HandleInbound enqueues each batch item onto the tenant's serial lane in
// arrival order. It returns once everything is queued, not processed.
func (s *Service) HandleInbound(ctx context.Context, tenantID string, batch []Inbound) {
	for _, msg := range batch {
		msg := msg
		if err := s.queue.Submit(ctx, tenantID, func() {
			s.process(tenantID, msg)
		}); err != nil {
			s.logger.Error("failed to enqueue inbound message",
				"tenant_id", tenantID, "chat_id", msg.ChatID, "error", err.Error())
			s.metrics.ObserveInbound("enqueue_failed")
		}
	}
}

// Close drains the serial queue.
func (s *Service) Close() {
	s.queue.Close()
}

func (s *Service) process(tenantID string, msg Inbound) {
	ctx, cancel := context.WithTimeout(tenancy.WithTenantID(context.Background(), tenantID), processTimeout)
	defer cancel()

	if msg.FromSelf || msg.ChatID == "" {
		s.metrics.ObserveInbound("skipped")
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" && msg.MediaRef == "" {
		// Neither text nor media: drop with no side effect.
		s.metrics.ObserveInbound("dropped")
		return
	}

	lastMessage := text
	if lastMessage == "" {
		lastMessage = voiceNotePlaceholder
	}
	at := msg.Timestamp
	if at.IsZero() {
		at = s.now().UTC()
	}

	convID, err := s.store.UpsertConversation(ctx, tenantID, msg.ChatID, msg.DisplayName, lastMessage, at, true)
	if err != nil {
		s.logger.Error("conversation upsert failed",
			"tenant_id", tenantID, "chat_id", msg.ChatID, "error", err.Error())
		s.metrics.ObserveInbound("store_error")
		return
	}
	if _, err := s.store.AppendMessage(ctx, storage.MessageRecord{
		ConversationID:    convID,
		Direction:         storage.DirectionIn,
		Content:           text,
		MediaRef:          msg.MediaRef,
		ProviderMessageID: msg.ProviderID,
		CreatedAt:         at,
	}); err != nil {
		s.logger.Error("message append failed",
			"tenant_id", tenantID, "chat_id", msg.ChatID, "error", err.Error())
		s.metrics.ObserveInbound("store_error")
		return
	}
	s.metrics.ObserveInbound("processed")

	sender := msg.DisplayName
	if sender == "" {
		sender = msg.Phone
	}
	s.dispatch(ctx, notify.Event{
		TenantID: tenantID,
		Type:     notify.EventNewMessage,
		Metadata: map[string]string{"senderName": sender, "phone": msg.Phone},
	})

	s.reply(ctx, tenantID, convID, msg, text)
}

// reply picks a template response or falls back to the generative chain.
func (s *Service) reply(ctx context.Context, tenantID string, convID int64, msg Inbound, text string) {
	rules, err := s.store.ListActiveRules(ctx, tenantID)
	if err != nil {
		s.logger.Error("rule listing failed", "tenant_id", tenantID, "error", err.Error())
	}
	if rule := ResolveRule(text, rules); rule != nil {
		s.logger.Info("template rule matched",
			"tenant_id", tenantID, "rule_id", rule.ID, "trigger", rule.Trigger)
		s.deliver(ctx, tenantID, msg, rule.Response, "auto-reply", &rule.ID)
		return
	}

	enabled, err := s.store.GetSetting(ctx, tenantID, "ai_enabled")
	if err != nil {
		s.logger.Error("setting lookup failed", "tenant_id", tenantID, "error", err.Error())
	}
	if enabled != "1" {
		s.logger.Debug("assistant disabled for tenant", "tenant_id", tenantID)
		s.deliver(ctx, tenantID, msg, ReplyAssistantBusy, "apology", nil)
		return
	}

	replyText, ok := s.generate(ctx, tenantID, convID, msg, text)
	if !ok {
		s.deliver(ctx, tenantID, msg, replyText, "apology", nil)
		return
	}

	// The session may have been stopped while the completion call was in
	// flight; if so the result is discarded.
	if !s.sender.IsConnected(tenantID) {
		s.logger.Warn("discarding completion result, session no longer connected",
			"tenant_id", tenantID, "chat_id", msg.ChatID)
		return
	}

	result := s.extractor.Apply(ctx, tenantID, msg.Phone, replyText)
	if result.Appointment != nil {
		appt := result.Appointment
		s.dispatch(ctx, notify.Event{
			TenantID:      tenantID,
			Type:          notify.EventAppointmentCreated,
			AppointmentID: &appt.ID,
			PatientID:     appt.ContactID,
			Metadata: map[string]string{
				"patientName":     appt.CustomerName,
				"appointmentDate": appt.ScheduledAt.Format("2006-01-02 15:04"),
				"phone":           msg.Phone,
			},
		})
	}

	s.deliver(ctx, tenantID, msg, result.Reply, "ai-reply", nil)
}

// generate runs the completion chain. ok=false means the returned text is a
// canned apology that must bypass the extractor.
func (s *Service) generate(ctx context.Context, tenantID string, convID int64, msg Inbound, text string) (string, bool) {
	identity, err := s.store.GetSetting(ctx, tenantID, "ai_system_instruction")
	if err != nil {
		s.logger.Error("system instruction lookup failed", "tenant_id", tenantID, "error", err.Error())
	}
	services, err := s.store.ListServices(ctx, tenantID)
	if err != nil {
		s.logger.Error("service listing failed", "tenant_id", tenantID, "error", err.Error())
	}
	tags, err := s.store.ListTags(ctx, tenantID)
	if err != nil {
		s.logger.Error("tag listing failed", "tenant_id", tenantID, "error", err.Error())
	}
	tagNames := make([]string, 0, len(tags))
	for _, tag := range tags {
		tagNames = append(tagNames, tag.Name)
	}

	recent, err := s.store.ListRecentMessages(ctx, convID, s.historyDepth)
	if err != nil {
		s.logger.Error("history fetch failed", "tenant_id", tenantID, "error", err.Error())
	}
	messages := BuildHistory(recent)

	current := text
	if current == "" {
		current = voiceNotePrompt
	}
	if len(messages) == 0 || messages[len(messages)-1].Role != ChatRoleUser || messages[len(messages)-1].Content != current {
		messages = append(messages, ChatMessage{Role: ChatRoleUser, Content: current})
	}

	req := LLMRequest{
		System:      BuildSystemInstruction(identity, services, tagNames, s.now()),
		Messages:    messages,
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}
	if msg.MediaRef != "" {
		data, err := os.ReadFile(msg.MediaRef)
		if err != nil {
			s.logger.Error("voice note read failed",
				"tenant_id", tenantID, "media_ref", msg.MediaRef, "error", err.Error())
		} else {
			mime := msg.MediaMIME
			if mime == "" {
				mime = "audio/ogg"
			}
			req.Media = &MediaAttachment{MIMEType: mime, Data: data}
		}
	}

	resp, err := s.llm.Complete(ctx, req)
	if err != nil {
		s.metrics.ObserveLLMAttempt("failed")
		s.logger.Error("completion chain exhausted", "tenant_id", tenantID, "error", err.Error())
		if IsQuotaError(err) {
			return ReplyQuotaExhausted, false
		}
		return ReplyAssistantBusy, false
	}
	s.metrics.ObserveLLMAttempt("success")
	return resp.Text, true
}

// deliver sends the reply and records the analytics log entry.
func (s *Service) deliver(ctx context.Context, tenantID string, msg Inbound, reply, logType string, ruleID *int64) {
	if reply == "" {
		return
	}

	if err := s.sender.Send(ctx, tenantID, msg.ChatID, reply); err != nil {
		s.logger.Error("reply send failed",
			"tenant_id", tenantID, "chat_id", msg.ChatID, "error", err.Error())
		s.metrics.ObserveReply("send_failed")
		return
	}
	s.metrics.ObserveReply(logType)

	if err := s.store.InsertChatLog(ctx, storage.ChatLogRecord{
		TenantID: tenantID,
		LogType:  logType,
		RuleID:   ruleID,
		Phone:    msg.Phone,
		Content:  reply,
	}); err != nil {
		s.logger.Warn("chat log insert failed", "tenant_id", tenantID, "error", err.Error())
	}
}

func (s *Service) dispatch(ctx context.Context, event notify.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, event)
}
