package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters for the conversation engine. All observe
// methods are nil-receiver safe so callers can run without metrics wired.
type EngineMetrics struct {
	inboundTotal    *prometheus.CounterVec
	repliesTotal    *prometheus.CounterVec
	reconnectsTotal *prometheus.CounterVec
	llmAttempts     *prometheus.CounterVec
	dispatchTotal   *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "inbound_messages_total",
			Help:      "Inbound platform messages by handling outcome",
		}, []string{"outcome"}),
		repliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "replies_total",
			Help:      "Outbound replies by kind",
		}, []string{"kind"}),
		reconnectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "session",
			Name:      "reconnects_total",
			Help:      "Scheduled session reconnects by closure reason",
		}, []string{"reason"}),
		llmAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "engine",
			Name:      "llm_attempts_total",
			Help:      "Completion API attempts by status",
		}, []string{"status"}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Notification channel deliveries by status",
		}, []string{"channel", "status"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinic",
			Subsystem: "reminder",
			Name:      "sweeps_total",
			Help:      "Reminder sends by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.inboundTotal, m.repliesTotal, m.reconnectsTotal,
		m.llmAttempts, m.dispatchTotal, m.remindersTotal,
	)
	return m
}

func (m *EngineMetrics) ObserveInbound(outcome string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(outcome).Inc()
}

func (m *EngineMetrics) ObserveReply(kind string) {
	if m == nil {
		return
	}
	m.repliesTotal.WithLabelValues(kind).Inc()
}

func (m *EngineMetrics) ObserveReconnect(reason string) {
	if m == nil {
		return
	}
	m.reconnectsTotal.WithLabelValues(reason).Inc()
}

func (m *EngineMetrics) ObserveLLMAttempt(status string) {
	if m == nil {
		return
	}
	m.llmAttempts.WithLabelValues(status).Inc()
}

func (m *EngineMetrics) ObserveDispatch(channel, status string) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(channel, status).Inc()
}

func (m *EngineMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(status).Inc()
}
