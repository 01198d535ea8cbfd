package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

type fakeServiceStore struct {
	mu            sync.Mutex
	rules         []storage.RuleRecord
	settings      map[string]string
	services      []storage.ServiceRecord
	tags          []storage.TagRecord
	messages      map[int64][]storage.MessageRecord
	conversations map[string]int64
	chatLogs      []storage.ChatLogRecord
	nextConvID    int64
	nextMsgID     int64
}

func newFakeServiceStore() *fakeServiceStore {
	return &fakeServiceStore{
		settings:      map[string]string{"ai_enabled": "1"},
		messages:      map[int64][]storage.MessageRecord{},
		conversations: map[string]int64{},
		nextConvID:    1,
		nextMsgID:     1,
	}
}

func (f *fakeServiceStore) UpsertConversation(_ context.Context, _, chatID, _, _ string, _ time.Time, _ bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.conversations[chatID]
	if !ok {
		id = f.nextConvID
		f.nextConvID++
		f.conversations[chatID] = id
	}
	return id, nil
}

func (f *fakeServiceStore) AppendMessage(_ context.Context, msg storage.MessageRecord) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg.ID = f.nextMsgID
	f.nextMsgID++
	f.messages[msg.ConversationID] = append(f.messages[msg.ConversationID], msg)
	return msg.ID, nil
}

func (f *fakeServiceStore) ListRecentMessages(_ context.Context, conversationID int64, limit int) ([]storage.MessageRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]storage.MessageRecord(nil), msgs...), nil
}

func (f *fakeServiceStore) ListActiveRules(_ context.Context, _ string) ([]storage.RuleRecord, error) {
	return f.rules, nil
}

func (f *fakeServiceStore) GetSetting(_ context.Context, _, key string) (string, error) {
	return f.settings[key], nil
}

func (f *fakeServiceStore) ListServices(_ context.Context, _ string) ([]storage.ServiceRecord, error) {
	return f.services, nil
}

func (f *fakeServiceStore) ListTags(_ context.Context, _ string) ([]storage.TagRecord, error) {
	return f.tags, nil
}

func (f *fakeServiceStore) InsertChatLog(_ context.Context, entry storage.ChatLogRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatLogs = append(f.chatLogs, entry)
	return nil
}

type sentMessage struct {
	destination string
	text        string
}

type fakeSender struct {
	mu           sync.Mutex
	sent         []sentMessage
	sendErr      error
	disconnected bool
}

func (f *fakeSender) Send(_ context.Context, _, destination, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{destination: destination, text: text})
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) IsConnected(string) bool {
	return !f.disconnected
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeNotifier) Dispatch(_ context.Context, event notify.Event) {
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
}

func (f *fakeNotifier) byType(t notify.EventType) []notify.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var hits []notify.Event
	for _, e := range f.events {
		if e.Type == t {
			hits = append(hits, e)
		}
	}
	return hits
}

type serviceFixture struct {
	store      *fakeServiceStore
	directives *fakeDirectiveStore
	sender     *fakeSender
	notifier   *fakeNotifier
	llm        *stubLLMClient
	svc        *Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		store:      newFakeServiceStore(),
		directives: newFakeDirectiveStore(),
		sender:     &fakeSender{},
		notifier:   &fakeNotifier{},
		llm:        &stubLLMClient{resp: LLMResponse{Text: "رد تلقائي"}},
	}
	f.svc = NewService(ServiceConfig{
		Store:     f.store,
		LLM:       f.llm,
		Extractor: NewExtractor(f.directives, nil, time.UTC),
		Sender:    f.sender,
		Notifier:  f.notifier,
	})
	return f
}

// run pushes one message through the pipeline and waits for it to finish.
func (f *serviceFixture) run(t *testing.T, msg Inbound) {
	t.Helper()
	f.svc.HandleInbound(context.Background(), "clinic-1", []Inbound{msg})
	f.svc.Close()
}

func inboundText(text string) Inbound {
	return Inbound{
		ChatID:      "962790000001@s.whatsapp.net",
		Phone:       "962790000001",
		DisplayName: "محمد",
		Text:        text,
		Timestamp:   time.Date(2025, 5, 19, 9, 0, 0, 0, time.UTC),
	}
}

func TestServiceTemplateMatchSkipsCompletionAPI(t *testing.T) {
	f := newServiceFixture(t)
	f.store.rules = []storage.RuleRecord{
		{ID: 1, Trigger: "السلام عليكم", Response: "وعليكم السلام ورحمة الله", Priority: 1},
	}

	f.run(t, inboundText("السلام عليكم"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "وعليكم السلام ورحمة الله", f.sender.sent[0].text)
	assert.Equal(t, 0, f.llm.calls, "no completion call on template match")

	require.Len(t, f.store.chatLogs, 1)
	assert.Equal(t, "auto-reply", f.store.chatLogs[0].LogType)
	require.NotNil(t, f.store.chatLogs[0].RuleID)
	assert.Equal(t, int64(1), *f.store.chatLogs[0].RuleID)
}

func TestServiceGenerativeBookingPersistsAppointment(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.resp = LLMResponse{Text: "حسناً، تم الحجز. [[APPOINTMENT: 2025-05-20 | 14:30 | محمد | استشارة]]"}

	f.run(t, inboundText("أريد حجز موعد غداً الثانية والنصف"))

	require.Len(t, f.directives.appointments, 1)
	appt := f.directives.appointments[0]
	assert.Equal(t, time.Date(2025, 5, 20, 14, 30, 0, 0, time.UTC), appt.ScheduledAt)
	assert.Equal(t, "محمد", appt.CustomerName)

	require.Len(t, f.sender.sent, 1)
	reply := f.sender.sent[0].text
	assert.NotContains(t, reply, "[[APPOINTMENT")
	assert.True(t, strings.HasSuffix(reply, replyBookedSuffix))

	created := f.notifier.byType(notify.EventAppointmentCreated)
	require.Len(t, created, 1)
	require.NotNil(t, created[0].AppointmentID)

	require.Len(t, f.store.chatLogs, 1)
	assert.Equal(t, "ai-reply", f.store.chatLogs[0].LogType)
}

func TestServiceGenerativeBookingConflictRefuses(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.resp = LLMResponse{Text: "حسناً، تم الحجز. [[APPOINTMENT: 2025-05-20 | 14:30 | محمد | استشارة]]"}
	f.directives.appointments = append(f.directives.appointments, storage.AppointmentRecord{
		ID:          50,
		ScheduledAt: time.Date(2025, 5, 20, 14, 45, 0, 0, time.UTC),
	})

	f.run(t, inboundText("أريد حجز موعد"))

	require.Len(t, f.directives.appointments, 1, "no new appointment on conflict")
	require.Len(t, f.sender.sent, 1)
	reply := f.sender.sent[0].text
	assert.Contains(t, reply, "محجوز مسبقاً")
	assert.Contains(t, reply, "2025-05-20")
	assert.Contains(t, reply, "14:30")
	assert.Empty(t, f.notifier.byType(notify.EventAppointmentCreated))
}

func TestServiceInboundMessageEmitsNotification(t *testing.T) {
	f := newServiceFixture(t)

	f.run(t, inboundText("مرحبا"))

	events := f.notifier.byType(notify.EventNewMessage)
	require.Len(t, events, 1)
	assert.Equal(t, "محمد", events[0].Metadata["senderName"])
}

func TestServiceQuotaExhaustionSendsQuotaApology(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.err = errors.New("googleapi: Error 429: RESOURCE_EXHAUSTED")

	f.run(t, inboundText("سؤال عام"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ReplyQuotaExhausted, f.sender.sent[0].text)
	require.Len(t, f.store.chatLogs, 1)
	assert.Equal(t, "apology", f.store.chatLogs[0].LogType)
}

func TestServiceTransientLLMFailureSendsBusyApology(t *testing.T) {
	f := newServiceFixture(t)
	f.llm.err = errors.New("connection reset by peer")

	f.run(t, inboundText("سؤال عام"))

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ReplyAssistantBusy, f.sender.sent[0].text)
}

func TestServiceAssistantDisabledStillReplies(t *testing.T) {
	f := newServiceFixture(t)
	f.store.settings["ai_enabled"] = "0"

	f.run(t, inboundText("سؤال عام"))

	assert.Equal(t, 0, f.llm.calls)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, ReplyAssistantBusy, f.sender.sent[0].text)
}

func TestServiceDiscardsResultWhenDisconnected(t *testing.T) {
	f := newServiceFixture(t)
	f.sender.disconnected = true

	f.run(t, inboundText("سؤال عام"))

	assert.Equal(t, 1, f.llm.calls)
	assert.Empty(t, f.sender.sent, "completion result must be discarded after stop")
	assert.Empty(t, f.store.chatLogs)
}

func TestServiceSkipsSelfAuthoredAndEmptyMessages(t *testing.T) {
	f := newServiceFixture(t)

	selfMsg := inboundText("echo")
	selfMsg.FromSelf = true
	empty := inboundText("")

	f.svc.HandleInbound(context.Background(), "clinic-1", []Inbound{selfMsg, empty})
	f.svc.Close()

	assert.Empty(t, f.store.conversations, "no conversation rows for skipped messages")
	assert.Empty(t, f.sender.sent)
}

func TestServiceRecordsInboundBeforeReplying(t *testing.T) {
	f := newServiceFixture(t)
	f.store.rules = []storage.RuleRecord{{ID: 1, Trigger: "مرحبا", Response: "أهلاً", Priority: 1}}

	f.run(t, inboundText("مرحبا بكم"))

	convID, ok := f.store.conversations["962790000001@s.whatsapp.net"]
	require.True(t, ok)
	msgs := f.store.messages[convID]
	require.Len(t, msgs, 1)
	assert.Equal(t, storage.DirectionIn, msgs[0].Direction)
	assert.Equal(t, "مرحبا بكم", msgs[0].Content)
}
