package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

type fakeSweepStore struct {
	mu           sync.Mutex
	appointments []storage.AppointmentRecord
	flagged      map[int64]bool
	settings     map[string]string
	queryErr     error
	markErr      error
	windows      [][2]time.Time
}

func newFakeSweepStore() *fakeSweepStore {
	return &fakeSweepStore{
		flagged:  make(map[int64]bool),
		settings: map[string]string{"clinic_name": "عيادة الشفاء"},
	}
}

func (s *fakeSweepStore) FindDueReminders(_ context.Context, _ string, start, end time.Time) ([]storage.AppointmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	s.windows = append(s.windows, [2]time.Time{start, end})

	var due []storage.AppointmentRecord
	for _, appt := range s.appointments {
		if s.flagged[appt.ID] || appt.Status != storage.AppointmentScheduled {
			continue
		}
		if appt.ScheduledAt.Before(start) || appt.ScheduledAt.After(end) {
			continue
		}
		due = append(due, appt)
	}
	return due, nil
}

func (s *fakeSweepStore) MarkReminderSent(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return s.markErr
	}
	s.flagged[id] = true
	return nil
}

func (s *fakeSweepStore) GetSetting(_ context.Context, _ string, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[key], nil
}

type fakeReminderSender struct {
	mu           sync.Mutex
	sent         []sentReminder
	sendErr      error
	disconnected bool
}

type sentReminder struct {
	TenantID    string
	Destination string
	Text        string
}

func (f *fakeReminderSender) Send(_ context.Context, tenantID, destination, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, sentReminder{TenantID: tenantID, Destination: destination, Text: text})
	return nil
}

func (f *fakeReminderSender) IsConnected(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.disconnected
}

type fakeReminderNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (f *fakeReminderNotifier) Dispatch(_ context.Context, event notify.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func newTestSweeper(store *fakeSweepStore, sender *fakeReminderSender, notifier *fakeReminderNotifier, now time.Time) *Sweeper {
	cfg := Config{
		Store:    store,
		Sender:   sender,
		Logger:   logging.NewWithWriter("error", testWriter{}),
		Tenants:  []string{"clinic-1"},
		LeadMin:  55 * time.Minute,
		LeadMax:  65 * time.Minute,
		Location: time.UTC,
	}
	// Assign only a real notifier: a typed-nil pointer in the interface
	// field would pass the sweeper's nil check and panic on Dispatch.
	if notifier != nil {
		cfg.Notifier = notifier
	}
	sweeper := NewSweeper(cfg)
	sweeper.now = func() time.Time { return now }
	return sweeper
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSweepWindowBounds(t *testing.T) {
	store := newFakeSweepStore()
	sender := &fakeReminderSender{}
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)

	sweeper := newTestSweeper(store, sender, nil, now)
	sweeper.RunOnce(context.Background())

	require.Len(t, store.windows, 1)
	assert.Equal(t, now.Add(55*time.Minute), store.windows[0][0])
	assert.Equal(t, now.Add(65*time.Minute), store.windows[0][1])
}

func TestSweepSendsOnceAndFlags(t *testing.T) {
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)
	store := newFakeSweepStore()
	store.appointments = []storage.AppointmentRecord{{
		ID:           11,
		TenantID:     "clinic-1",
		Phone:        "962791234567",
		CustomerName: "محمد",
		ScheduledAt:  now.Add(time.Hour),
		Status:       storage.AppointmentScheduled,
	}}
	sender := &fakeReminderSender{}
	notifier := &fakeReminderNotifier{}

	sweeper := newTestSweeper(store, sender, notifier, now)
	sweeper.RunOnce(context.Background())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "962791234567", sender.sent[0].Destination)
	assert.Contains(t, sender.sent[0].Text, "محمد")
	assert.Contains(t, sender.sent[0].Text, "عيادة الشفاء")
	assert.Contains(t, sender.sent[0].Text, "14:00")
	assert.True(t, store.flagged[11])

	require.Len(t, notifier.events, 1)
	event := notifier.events[0]
	assert.Equal(t, notify.EventAppointmentReminder, event.Type)
	assert.Equal(t, []notify.Channel{notify.ChannelInApp, notify.ChannelAudio}, event.Channels)
	require.NotNil(t, event.AppointmentID)
	assert.Equal(t, int64(11), *event.AppointmentID)

	// The flag excludes the appointment from every later tick.
	sweeper.RunOnce(context.Background())
	assert.Len(t, sender.sent, 1)
	assert.Len(t, notifier.events, 1)
}

func TestSweepRetriesAfterSendFailure(t *testing.T) {
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)
	store := newFakeSweepStore()
	store.appointments = []storage.AppointmentRecord{{
		ID:           21,
		Phone:        "962791234567",
		CustomerName: "سارة",
		ScheduledAt:  now.Add(time.Hour),
		Status:       storage.AppointmentScheduled,
	}}
	sender := &fakeReminderSender{sendErr: errors.New("socket closed")}

	sweeper := newTestSweeper(store, sender, nil, now)
	sweeper.RunOnce(context.Background())

	assert.Empty(t, sender.sent)
	assert.False(t, store.flagged[21], "flag must stay clear when the send fails")

	sender.mu.Lock()
	sender.sendErr = nil
	sender.mu.Unlock()

	sweeper.RunOnce(context.Background())
	require.Len(t, sender.sent, 1)
	assert.True(t, store.flagged[21])
}

func TestSweepSkipsAppointmentsOutsideWindow(t *testing.T) {
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)
	store := newFakeSweepStore()
	store.appointments = []storage.AppointmentRecord{
		{ID: 1, Phone: "1", ScheduledAt: now.Add(30 * time.Minute), Status: storage.AppointmentScheduled},
		{ID: 2, Phone: "2", ScheduledAt: now.Add(60 * time.Minute), Status: storage.AppointmentScheduled},
		{ID: 3, Phone: "3", ScheduledAt: now.Add(2 * time.Hour), Status: storage.AppointmentScheduled},
		{ID: 4, Phone: "4", ScheduledAt: now.Add(60 * time.Minute), Status: "cancelled"},
	}
	sender := &fakeReminderSender{}

	sweeper := newTestSweeper(store, sender, nil, now)
	sweeper.RunOnce(context.Background())

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "2", sender.sent[0].Destination)
}

func TestSweepSkipsOfflineTenant(t *testing.T) {
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)
	store := newFakeSweepStore()
	sender := &fakeReminderSender{disconnected: true}

	sweeper := newTestSweeper(store, sender, nil, now)
	sweeper.RunOnce(context.Background())

	assert.Empty(t, store.windows, "offline tenants are not queried")
}

func TestSweepPrefersContactName(t *testing.T) {
	now := time.Date(2025, 5, 20, 13, 0, 0, 0, time.UTC)
	store := newFakeSweepStore()
	store.appointments = []storage.AppointmentRecord{{
		ID:           31,
		Phone:        "962791234567",
		CustomerName: "من المحادثة",
		ContactName:  "محمد العلي",
		ScheduledAt:  now.Add(time.Hour),
		Status:       storage.AppointmentScheduled,
	}}
	sender := &fakeReminderSender{}

	sweeper := newTestSweeper(store, sender, nil, now)
	sweeper.RunOnce(context.Background())

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "محمد العلي")
	assert.NotContains(t, sender.sent[0].Text, "من المحادثة")
}

func TestSweepStartStop(t *testing.T) {
	store := newFakeSweepStore()
	sender := &fakeReminderSender{}

	sweeper := NewSweeper(Config{
		Store:    store,
		Sender:   sender,
		Logger:   logging.NewWithWriter("error", testWriter{}),
		Tenants:  []string{"clinic-1"},
		Interval: 10 * time.Millisecond,
		Location: time.UTC,
	})
	sweeper.Start()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.windows) >= 2
	}, time.Second, 5*time.Millisecond)

	sweeper.Stop()
	store.mu.Lock()
	ticks := len(store.windows)
	store.mu.Unlock()

	time.Sleep(50 * time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, ticks, len(store.windows), "no ticks after stop")
}
