package metrics

import "github.com/prometheus/client_golang/prometheus"

// BotMetrics exposes counters/histograms for the inbound pipeline.
// All methods are safe on a nil receiver.
type BotMetrics struct {
	inboundTotal       *prometheus.CounterVec
	intentsTotal       *prometheus.CounterVec
	outboundTotal      *prometheus.CounterVec
	generationTotal    *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	knowledgeTotal     *prometheus.CounterVec
	bookingTransitions *prometheus.CounterVec
	webhookLatency     *prometheus.HistogramVec
}

// NewBotMetrics registers collectors on reg (the default registerer when nil).
func NewBotMetrics(reg prometheus.Registerer) *BotMetrics {
	m := &BotMetrics{
		inboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "inbound_messages_total",
			Help:      "Inbound WhatsApp messages by type",
		}, []string{"type"}),
		intentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "intents_total",
			Help:      "Classified intents",
		}, []string{"intent"}),
		outboundTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "outbound_messages_total",
			Help:      "Outbound WhatsApp sends by payload kind and status",
		}, []string{"kind", "status"}),
		generationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "generation_requests_total",
			Help:      "Generation calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		generationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbot",
			Name:      "generation_latency_seconds",
			Help:      "Latency of generation calls",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"operation"}),
		knowledgeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "knowledge_lookups_total",
			Help:      "Knowledge base lookups by category and outcome",
		}, []string{"category", "outcome"}),
		bookingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicbot",
			Name:      "booking_transitions_total",
			Help:      "Booking state machine transitions",
		}, []string{"transition"}),
		webhookLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicbot",
			Name:      "webhook_latency_seconds",
			Help:      "Latency of WhatsApp webhook handling",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inboundTotal, m.intentsTotal, m.outboundTotal, m.generationTotal,
		m.generationLatency, m.knowledgeTotal, m.bookingTransitions, m.webhookLatency)
	return m
}

func (m *BotMetrics) ObserveInbound(messageType string) {
	if m == nil {
		return
	}
	m.inboundTotal.WithLabelValues(messageType).Inc()
}

func (m *BotMetrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intentsTotal.WithLabelValues(intent).Inc()
}

func (m *BotMetrics) ObserveOutbound(kind string, err error) {
	if m == nil {
		return
	}
	status := "sent"
	if err != nil {
		status = "failed"
	}
	m.outboundTotal.WithLabelValues(kind, status).Inc()
}

func (m *BotMetrics) ObserveGeneration(operation, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.generationTotal.WithLabelValues(operation, outcome).Inc()
	m.generationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BotMetrics) ObserveKnowledge(category string, matched bool, err error) {
	if m == nil {
		return
	}
	outcome := "miss"
	switch {
	case err != nil:
		outcome = "error"
	case matched:
		outcome = "hit"
	}
	m.knowledgeTotal.WithLabelValues(category, outcome).Inc()
}

func (m *BotMetrics) ObserveBookingTransition(transition string) {
	if m == nil {
		return
	}
	m.bookingTransitions.WithLabelValues(transition).Inc()
}

func (m *BotMetrics) ObserveWebhookLatency(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.webhookLatency.WithLabelValues(outcome).Observe(seconds)
}
