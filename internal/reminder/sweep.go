package reminder

import (
	"context"
	"sync"
	"time"

	"github.com/clinicware/clinic-ai-platform/internal/notify"
	"github.com/clinicware/clinic-ai-platform/internal/observability/metrics"
	"github.com/clinicware/clinic-ai-platform/internal/storage"
	"github.com/clinicware/clinic-ai-platform/pkg/logging"
)

const fallbackPatientName = "عميلنا العزيز"

type sweepStore interface {
	FindDueReminders(ctx context.Context, tenantID string, start, end time.Time) ([]storage.AppointmentRecord, error)
	MarkReminderSent(ctx context.Context, id int64) error
	GetSetting(ctx context.Context, tenantID, key string) (string, error)
}

// Sender delivers the reminder text to the patient over the live platform
// session.
type Sender interface {
	Send(ctx context.Context, tenantID, destination, text string) error
	IsConnected(tenantID string) bool
}

// Notifier fans the reminder out to the clinic staff surfaces.
type Notifier interface {
	Dispatch(ctx context.Context, event notify.Event)
}

// Config wires a Sweeper.
type Config struct {
	Store    sweepStore
	Sender   Sender
	Notifier Notifier
	Metrics  *metrics.EngineMetrics
	Logger   *logging.Logger

	Tenants  []string
	Interval time.Duration
	LeadMin  time.Duration
	LeadMax  time.Duration
	Location *time.Location
}

// Sweeper periodically finds appointments about an hour out and sends each
// patient a one-time reminder. Ticks run on a single goroutine, so a slow
// sweep delays the next tick instead of overlapping it. The reminder flag is
// only flipped after a successful send; a failed send is retried on the next
// tick for as long as the appointment stays inside the window.
type Sweeper struct {
	store    sweepStore
	sender   Sender
	notifier Notifier
	metrics  *metrics.EngineMetrics
	logger   *logging.Logger

	tenants  []string
	interval time.Duration
	leadMin  time.Duration
	leadMax  time.Duration
	location *time.Location
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// NewSweeper creates a Sweeper.
func NewSweeper(cfg Config) *Sweeper {
	if cfg.Store == nil {
		panic("reminder: sweeper requires a store")
	}
	if cfg.Sender == nil {
		panic("reminder: sweeper requires a sender")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.LeadMin <= 0 {
		cfg.LeadMin = 55 * time.Minute
	}
	if cfg.LeadMax <= cfg.LeadMin {
		cfg.LeadMax = cfg.LeadMin + 10*time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	return &Sweeper{
		store:    cfg.Store,
		sender:   cfg.Sender,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		tenants:  cfg.Tenants,
		interval: cfg.Interval,
		leadMin:  cfg.LeadMin,
		leadMax:  cfg.LeadMax,
		location: cfg.Location,
		now:      time.Now,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Safe to call once.
func (s *Sweeper) Start() {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.RunOnce(context.Background())
		}
	}
}

// RunOnce executes a single sweep across all tenants.
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, tenantID := range s.tenants {
		if ctx.Err() != nil {
			return
		}
		s.sweepTenant(ctx, tenantID)
	}
}

func (s *Sweeper) sweepTenant(ctx context.Context, tenantID string) {
	if !s.sender.IsConnected(tenantID) {
		s.logger.Debug("reminder sweep skipped, session offline", "tenant_id", tenantID)
		return
	}

	now := s.now()
	start := now.Add(s.leadMin)
	end := now.Add(s.leadMax)

	due, err := s.store.FindDueReminders(ctx, tenantID, start, end)
	if err != nil {
		s.logger.Error("reminder query failed", "tenant_id", tenantID, "error", err.Error())
		return
	}
	if len(due) == 0 {
		return
	}

	clinicName, err := s.store.GetSetting(ctx, tenantID, "clinic_name")
	if err != nil {
		s.logger.Warn("clinic name lookup failed", "tenant_id", tenantID, "error", err.Error())
	}
	if clinicName == "" {
		clinicName = "العيادة"
	}

	for _, appt := range due {
		s.remind(ctx, tenantID, clinicName, appt)
	}
}

func (s *Sweeper) remind(ctx context.Context, tenantID, clinicName string, appt storage.AppointmentRecord) {
	name := appt.ContactName
	if name == "" {
		name = appt.CustomerName
	}
	if name == "" {
		name = fallbackPatientName
	}

	local := appt.ScheduledAt.In(s.location)
	data := map[string]string{
		"patientName":     name,
		"clinicName":      clinicName,
		"appointmentTime": local.Format("15:04"),
		"appointmentDate": local.Format("2006-01-02"),
	}

	tpl := notify.RenderTemplate(notify.EventAppointmentReminder, data)
	if err := s.sender.Send(ctx, tenantID, appt.Phone, tpl.Message); err != nil {
		// Flag untouched: the next tick retries while the appointment is
		// still inside the window.
		s.metrics.ObserveReminder("send_failed")
		s.logger.Error("reminder send failed",
			"tenant_id", tenantID, "appointment_id", appt.ID, "phone", appt.Phone, "error", err.Error())
		return
	}

	if err := s.store.MarkReminderSent(ctx, appt.ID); err != nil {
		s.metrics.ObserveReminder("flag_failed")
		s.logger.Error("reminder flag update failed",
			"tenant_id", tenantID, "appointment_id", appt.ID, "error", err.Error())
		return
	}

	s.metrics.ObserveReminder("sent")
	s.logger.Info("reminder sent",
		"tenant_id", tenantID, "appointment_id", appt.ID, "scheduled_at", appt.ScheduledAt.Format(time.RFC3339))

	if s.notifier != nil {
		apptID := appt.ID
		event := notify.Event{
			TenantID: tenantID,
			Type:     notify.EventAppointmentReminder,
			// The patient already got the platform message above; the
			// staff surfaces get the in-app and audio cues.
			Channels:      []notify.Channel{notify.ChannelInApp, notify.ChannelAudio},
			AppointmentID: &apptID,
			PatientID:     appt.ContactID,
			Metadata:      data,
		}
		s.notifier.Dispatch(ctx, event)
	}
}
