package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule maps an event type to its default delivery behavior.
type Rule struct {
	Event    EventType `yaml:"event"`
	Channels []Channel `yaml:"channels"`
	Priority Priority  `yaml:"priority"`
	AudioCue AudioCue  `yaml:"audio_cue"`
	Enabled  bool      `yaml:"enabled"`
}

// DefaultRules is the built-in rule table. A YAML file loaded via LoadRules
// can replace individual entries.
func DefaultRules() map[EventType]Rule {
	rules := []Rule{
		{Event: EventAppointmentCreated, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityMedium, AudioCue: CueSuccess, Enabled: true},
		{Event: EventAppointmentConfirmed, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityMedium, AudioCue: CueSuccess, Enabled: true},
		{Event: EventAppointmentCancelled, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityMedium, AudioCue: CueWarning, Enabled: true},
		{Event: EventAppointmentReminder, Channels: []Channel{ChannelInApp, ChannelPlatform, ChannelAudio}, Priority: PriorityHigh, AudioCue: CueReminder, Enabled: true},
		{Event: EventAppointmentCompleted, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityMedium, AudioCue: CueSuccess, Enabled: true},
		{Event: EventNewPatient, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityMedium, AudioCue: CueSuccess, Enabled: true},
		{Event: EventPatientSynced, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityLow, AudioCue: CueInfo, Enabled: true},
		{Event: EventNewMessage, Channels: []Channel{ChannelInApp, ChannelAudio}, Priority: PriorityHigh, AudioCue: CueNewMessage, Enabled: true},
		{Event: EventSystemSuccess, Channels: []Channel{ChannelAudio}, Priority: PriorityLow, AudioCue: CueSuccess, Enabled: true},
		{Event: EventSystemError, Channels: []Channel{ChannelAudio}, Priority: PriorityHigh, AudioCue: CueError, Enabled: true},
		{Event: EventSystemWarning, Channels: []Channel{ChannelAudio}, Priority: PriorityMedium, AudioCue: CueWarning, Enabled: true},
		{Event: EventSystemInfo, Channels: []Channel{ChannelAudio}, Priority: PriorityLow, AudioCue: CueInfo, Enabled: true},
	}

	table := make(map[EventType]Rule, len(rules))
	for _, rule := range rules {
		table[rule.Event] = rule
	}
	return table
}

// LoadRules returns the default table with entries from the YAML file at path
// merged over it. An empty path returns the defaults unchanged.
func LoadRules(path string) (map[EventType]Rule, error) {
	table := DefaultRules()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("notify: read rules file: %w", err)
	}

	var overrides struct {
		Rules []Rule `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("notify: parse rules file: %w", err)
	}

	for _, rule := range overrides.Rules {
		if rule.Event == "" {
			continue
		}
		table[rule.Event] = rule
	}
	return table, nil
}
