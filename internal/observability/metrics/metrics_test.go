package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestBotMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)

	m.ObserveInbound("text")
	m.ObserveInbound("text")
	m.ObserveIntent("greeting")
	m.ObserveOutbound("list", nil)
	m.ObserveOutbound("text", errors.New("boom"))
	m.ObserveKnowledge("medical", true, nil)
	m.ObserveKnowledge("administrative", false, errors.New("db"))
	m.ObserveBookingTransition("booked")
	m.ObserveGeneration("text", "ok", 0.4)
	m.ObserveWebhookLatency("ok", 0.01)

	if got := testutil.ToFloat64(m.inboundTotal.WithLabelValues("text")); got != 2 {
		t.Fatalf("expected 2 inbound, got %v", got)
	}
	if got := testutil.ToFloat64(m.outboundTotal.WithLabelValues("text", "failed")); got != 1 {
		t.Fatalf("expected 1 failed send, got %v", got)
	}
	if got := testutil.ToFloat64(m.knowledgeTotal.WithLabelValues("administrative", "error")); got != 1 {
		t.Fatalf("expected 1 knowledge error, got %v", got)
	}
	if got := testutil.ToFloat64(m.knowledgeTotal.WithLabelValues("medical", "hit")); got != 1 {
		t.Fatalf("expected 1 knowledge hit, got %v", got)
	}
}

func TestBotMetricsDefaultRegistry(t *testing.T) {
	m := NewBotMetrics(nil)
	m.ObserveIntent("rating")
}

func TestBotMetricsNilSafe(t *testing.T) {
	var m *BotMetrics
	m.ObserveInbound("text")
	m.ObserveIntent("greeting")
	m.ObserveOutbound("text", nil)
	m.ObserveGeneration("text", "ok", 0.1)
	m.ObserveKnowledge("medical", false, nil)
	m.ObserveBookingTransition("cancelled")
	m.ObserveWebhookLatency("ok", 0.1)
}

func TestBotMetricsLatencyHistograms(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBotMetrics(reg)

	m.ObserveGeneration("vision", "timeout", 30)
	m.ObserveGeneration("vision", "ok", 2)
	m.ObserveWebhookLatency("ok", 0.02)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	byName := make(map[string]*dto.MetricFamily, len(families))
	for _, mf := range families {
		byName[mf.GetName()] = mf
	}

	gen := byName["clinicbot_generation_latency_seconds"]
	if gen == nil || gen.GetType() != dto.MetricType_HISTOGRAM {
		t.Fatalf("expected generation latency histogram, got %v", gen)
	}
	h := gen.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 || h.GetSampleSum() != 32 {
		t.Fatalf("unexpected histogram count=%d sum=%v", h.GetSampleCount(), h.GetSampleSum())
	}
	if byName["clinicbot_webhook_latency_seconds"] == nil {
		t.Fatalf("expected webhook latency histogram")
	}
}
