package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/clinicware/clinic-ai-platform/internal/observability/metrics"
)

// Sender delivers events on one channel kind. Implementations must not be
// relied on to panic-proof themselves; the dispatcher isolates failures.
type Sender interface {
	Channel() Channel
	Send(ctx context.Context, event Event) error
}

// Dispatcher fans one event out to its channels concurrently. A failing
// channel is logged and never aborts its siblings; Dispatch always returns
// after every channel attempt has finished.
type Dispatcher struct {
	rules   map[EventType]Rule
	senders map[Channel]Sender
	metrics *metrics.EngineMetrics
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher over the given rule table and senders.
// A nil rules map falls back to the built-in defaults.
func NewDispatcher(rules map[EventType]Rule, senders []Sender, logger *slog.Logger) *Dispatcher {
	if rules == nil {
		rules = DefaultRules()
	}
	if logger == nil {
		logger = slog.Default()
	}

	byChannel := make(map[Channel]Sender, len(senders))
	for _, sender := range senders {
		byChannel[sender.Channel()] = sender
	}
	return &Dispatcher{
		rules:   rules,
		senders: byChannel,
		logger:  logger,
	}
}

// WithMetrics attaches per-channel outcome metrics and returns the dispatcher.
func (d *Dispatcher) WithMetrics(m *metrics.EngineMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Dispatch applies the rule table to the event (default channels, priority,
// audio cue, rendered template) and delivers it on every channel. It blocks
// until all channel sends have completed, successfully or not.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) {
	rule, known := d.rules[event.Type]
	if known && !rule.Enabled {
		d.logger.Debug("notification suppressed by rule", "event_type", event.Type)
		return
	}

	if len(event.Channels) == 0 && known {
		event.Channels = rule.Channels
	}
	if event.Priority == "" && known {
		event.Priority = rule.Priority
	}
	if event.AudioCue == "" && known {
		event.AudioCue = rule.AudioCue
	}
	if event.Title == "" && event.Message == "" {
		rendered := RenderTemplate(event.Type, event.Metadata)
		event.Title = rendered.Title
		event.Message = rendered.Message
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	if len(event.Channels) == 0 {
		d.logger.Warn("notification has no channels", "event_type", event.Type)
		return
	}

	var wg sync.WaitGroup
	for _, channel := range event.Channels {
		sender, ok := d.senders[channel]
		if !ok {
			d.logger.Warn("no sender for channel", "channel", channel, "event_type", event.Type)
			continue
		}

		wg.Add(1)
		go func(channel Channel, sender Sender) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("notification sender panicked",
						"channel", channel, "event_type", event.Type, "panic", r)
					d.metrics.ObserveDispatch(string(channel), "panic")
				}
			}()

			if err := sender.Send(ctx, event); err != nil {
				d.logger.Error("notification send failed",
					"channel", channel, "event_type", event.Type, "error", err.Error())
				d.metrics.ObserveDispatch(string(channel), "error")
				return
			}
			d.metrics.ObserveDispatch(string(channel), "ok")
		}(channel, sender)
	}
	wg.Wait()
}
