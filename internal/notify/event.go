package notify

import "time"

// EventType identifies the business event behind a notification.
type EventType string

const (
	EventAppointmentCreated   EventType = "APPOINTMENT_CREATED"
	EventAppointmentConfirmed EventType = "APPOINTMENT_CONFIRMED"
	EventAppointmentCancelled EventType = "APPOINTMENT_CANCELLED"
	EventAppointmentReminder  EventType = "APPOINTMENT_REMINDER_1H"
	EventAppointmentCompleted EventType = "APPOINTMENT_COMPLETED"
	EventNewPatient           EventType = "NEW_PATIENT_REGISTERED"
	EventPatientSynced        EventType = "PATIENT_SYNCED"
	EventNewMessage           EventType = "NEW_MESSAGE"
	EventSystemSuccess        EventType = "SYSTEM_SUCCESS"
	EventSystemError          EventType = "SYSTEM_ERROR"
	EventSystemWarning        EventType = "SYSTEM_WARNING"
	EventSystemInfo           EventType = "SYSTEM_INFO"
)

// Channel is one delivery mechanism for a notification.
type Channel string

const (
	ChannelInApp    Channel = "IN_APP"
	ChannelPlatform Channel = "PLATFORM"
	ChannelAudio    Channel = "AUDIO"
)

// Priority levels, low to urgent.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// AudioCue names a client-side sound; the server only emits the identifier.
type AudioCue string

const (
	CueSuccess     AudioCue = "SUCCESS"
	CueError       AudioCue = "ERROR"
	CueWarning     AudioCue = "WARNING"
	CueInfo        AudioCue = "INFO"
	CueReminder    AudioCue = "REMINDER"
	CueNewMessage  AudioCue = "NEW_MESSAGE"
	CueAppointment AudioCue = "APPOINTMENT"
)

// Event is an immutable notification value constructed per business event.
// It is never persisted as a queue; delivery is fire-and-forget per channel.
type Event struct {
	TenantID string
	Type     EventType

	// Channels overrides the rule table's default set when non-empty.
	Channels []Channel
	Priority Priority
	AudioCue AudioCue

	Title   string
	Message string

	PatientID     *int64
	AppointmentID *int64

	// Metadata carries channel-specific hints, e.g. "phone" for the
	// platform-message channel and template interpolation values.
	Metadata map[string]string

	CreatedAt time.Time
}
