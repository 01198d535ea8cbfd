package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/clinicware/clinic-ai-platform/internal/storage"
)

var (
	tagPattern  = regexp.MustCompile(`\[\[TAGS:\s*(.+?)\]\]`)
	apptPattern = regexp.MustCompile(`\[\[APPOINTMENT:\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\]\]`)
)

// conflictRadius defines the exclusion window around an existing appointment.
// A candidate within 29 minutes (inclusive) of a booked slot is rejected; a
// slot exactly 30 minutes away is allowed.
const conflictRadius = 29 * time.Minute

// directiveStore is the slice of the storage layer the extractor needs.
type directiveStore interface {
	FindTagByName(ctx context.Context, tenantID, name string) (*storage.TagRecord, error)
	AttachTag(ctx context.Context, tenantID, phone string, tagID int64) error
	FindAppointmentsInWindow(ctx context.Context, tenantID string, start, end time.Time) ([]storage.AppointmentRecord, error)
	FindContactByPhone(ctx context.Context, tenantID, phone string) (*storage.ContactRecord, error)
	InsertAppointment(ctx context.Context, appt storage.AppointmentRecord) (int64, error)
}

// ExtractionResult describes what the extractor did to a model reply.
type ExtractionResult struct {
	// Reply is the customer-facing text after directives were processed.
	Reply string
	// TagsApplied lists tag names that were attached to the customer.
	TagsApplied []string
	// Appointment is the inserted row when a booking succeeded.
	Appointment *storage.AppointmentRecord
	// Conflict is true when the requested slot was already taken.
	Conflict bool
	// SaveFailed is true when the directive could not be persisted.
	SaveFailed bool
}

// Extractor interprets machine-readable action directives embedded in model
// replies: customer tagging and appointment booking with conflict detection.
type Extractor struct {
	store    directiveStore
	logger   *slog.Logger
	location *time.Location
}

// NewExtractor creates an extractor. Appointment times are interpreted in loc;
// nil means the process-local timezone.
func NewExtractor(store directiveStore, logger *slog.Logger, loc *time.Location) *Extractor {
	if store == nil {
		panic("conversation: extractor requires a store")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Extractor{
		store:    store,
		logger:   logger,
		location: loc,
	}
}

// Apply processes directives in reply for the given customer and returns the
// cleaned customer-facing text. Tag directives are processed first, then at
// most one appointment directive. Apply never fails outright: every store
// error degrades to an apology in the reply so the customer still gets an
// answer.
func (e *Extractor) Apply(ctx context.Context, tenantID, phone, reply string) ExtractionResult {
	result := ExtractionResult{Reply: reply}

	if match := tagPattern.FindStringSubmatch(result.Reply); match != nil {
		result.TagsApplied = e.applyTags(ctx, tenantID, phone, match[1])
		result.Reply = strings.TrimSpace(tagPattern.ReplaceAllString(result.Reply, ""))
	}

	match := apptPattern.FindStringSubmatch(result.Reply)
	if match == nil {
		return result
	}

	dateStr := strings.TrimSpace(match[1])
	timeStr := strings.TrimSpace(match[2])
	customerName := strings.TrimSpace(match[3])
	notes := strings.TrimSpace(match[4])

	scheduledAt, err := parseAppointmentTime(dateStr, timeStr, e.location)
	if err != nil {
		e.logger.Error("appointment directive has unparseable time",
			"date", dateStr, "time", timeStr, "error", err.Error())
		result.Reply = strings.TrimSpace(apptPattern.ReplaceAllString(result.Reply, "")) + replySaveFailedSuffix
		result.SaveFailed = true
		return result
	}

	existing, err := e.store.FindAppointmentsInWindow(ctx, tenantID, scheduledAt.Add(-conflictRadius), scheduledAt.Add(conflictRadius))
	if err != nil {
		e.logger.Error("appointment conflict check failed", "error", err.Error())
		result.Reply = strings.TrimSpace(apptPattern.ReplaceAllString(result.Reply, "")) + replySaveFailedSuffix
		result.SaveFailed = true
		return result
	}
	if len(existing) > 0 {
		e.logger.Info("appointment conflict detected",
			"requested_at", scheduledAt, "existing_id", existing[0].ID)
		result.Reply = fmt.Sprintf(replyConflictFormat, dateStr, timeStr)
		result.Conflict = true
		return result
	}

	appt := storage.AppointmentRecord{
		TenantID:     tenantID,
		Phone:        phone,
		CustomerName: customerName,
		ScheduledAt:  scheduledAt,
		Notes:        notes,
		Status:       storage.AppointmentScheduled,
		Type:         "consultation",
	}
	if contact, err := e.store.FindContactByPhone(ctx, tenantID, phone); err != nil {
		e.logger.Warn("contact lookup failed", "phone", phone, "error", err.Error())
	} else if contact != nil {
		appt.ContactID = &contact.ID
	}

	id, err := e.store.InsertAppointment(ctx, appt)
	if err != nil {
		e.logger.Error("failed to save appointment", "error", err.Error())
		result.Reply = strings.TrimSpace(apptPattern.ReplaceAllString(result.Reply, "")) + replySaveFailedSuffix
		result.SaveFailed = true
		return result
	}
	appt.ID = id

	e.logger.Info("appointment booked",
		"appointment_id", id, "customer", customerName, "scheduled_at", scheduledAt)
	result.Reply = strings.TrimSpace(apptPattern.ReplaceAllString(result.Reply, "")) + replyBookedSuffix
	result.Appointment = &appt
	return result
}

// applyTags attaches each known tag to the customer. Unknown tag names are
// ignored; per-tag store errors are logged and do not stop the rest.
func (e *Extractor) applyTags(ctx context.Context, tenantID, phone, rawNames string) []string {
	var applied []string
	for _, raw := range strings.Split(rawNames, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}

		tag, err := e.store.FindTagByName(ctx, tenantID, name)
		if err != nil {
			e.logger.Warn("tag lookup failed", "tag", name, "error", err.Error())
			continue
		}
		if tag == nil {
			e.logger.Debug("model proposed unknown tag", "tag", name)
			continue
		}
		if err := e.store.AttachTag(ctx, tenantID, phone, tag.ID); err != nil {
			e.logger.Warn("tag attach failed", "tag", name, "error", err.Error())
			continue
		}
		applied = append(applied, name)
	}
	return applied
}

var looseTimeLayouts = []string{
	"2006-01-02 3:04 PM",
	"2006-01-02 3:04PM",
	"2006-01-02 15:04",
	"2006-1-2 3:04 PM",
	"2006-1-2 15:04",
	"January 2, 2006 3:04 PM",
	"Jan 2, 2006 3:04 PM",
}

// parseAppointmentTime tries the strict ISO form first, then a set of looser
// date/time layouts including 12-hour clock.
func parseAppointmentTime(dateStr, timeStr string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation("2006-01-02T15:04", dateStr+"T"+timeStr, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", dateStr+"T"+timeStr, loc); err == nil {
		return t, nil
	}

	combined := dateStr + " " + timeStr
	for _, layout := range looseTimeLayouts {
		if t, err := time.ParseInLocation(layout, combined, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("conversation: invalid date format: %q %q", dateStr, timeStr)
}
