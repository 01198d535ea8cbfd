package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// audioCueChannel is the Redis pub/sub channel prefix for audio cues.
const audioCueChannel = "notifications:audio:"

type audioCuePayload struct {
	Type      string `json:"type"`
	Cue       string `json:"cue"`
	EventType string `json:"event_type"`
	Priority  string `json:"priority"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
}

// AudioCueSender emits a client-side sound identifier. The cue travels two
// ways: a Redis publish for other processes and a direct push to this
// process's websocket clients. Either backend may be nil.
type AudioCueSender struct {
	redis *redis.Client
	hub   *Hub
}

// NewAudioCueSender creates the audio-cue channel sender.
func NewAudioCueSender(rdb *redis.Client, hub *Hub) *AudioCueSender {
	return &AudioCueSender{redis: rdb, hub: hub}
}

func (s *AudioCueSender) Channel() Channel {
	return ChannelAudio
}

func (s *AudioCueSender) Send(ctx context.Context, event Event) error {
	payload := audioCuePayload{
		Type:      "audio_cue",
		Cue:       string(event.AudioCue),
		EventType: string(event.Type),
		Priority:  string(event.Priority),
		Title:     event.Title,
		Message:   event.Message,
	}

	if s.hub != nil {
		s.hub.Broadcast(event.TenantID, payload)
	}

	if s.redis != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("notify: encode audio cue: %w", err)
		}
		if err := s.redis.Publish(ctx, audioCueChannel+event.TenantID, raw).Err(); err != nil {
			return fmt.Errorf("notify: publish audio cue: %w", err)
		}
	}
	return nil
}
