// Package metrics holds the prometheus collectors for the lead pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	inbound       *prometheus.CounterVec
	turns         *prometheus.CounterVec
	sweepFound    prometheus.Counter
	modelLatency  *prometheus.HistogramVec
	extractions   *prometheus.CounterVec
	notifications prometheus.Counter
	pending       prometheus.Gauge
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_inbound_events_total",
				Help: "Inbound customer events by intake result.",
			},
			[]string{"result"},
		),
		turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_turns_total",
				Help: "Processed customer turns by outcome.",
			},
			[]string{"outcome"},
		),
		sweepFound: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadbot_sweep_recovered_total",
			Help: "Messages injected by the recovery sweep.",
		}),
		modelLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadbot_model_latency_seconds",
				Help:    "Model call latency by call kind and status.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"call", "status"},
		),
		extractions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadbot_extractions_total",
				Help: "Lead field extraction cycles by outcome.",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadbot_meeting_notifications_total",
			Help: "Operator notifications sent for scheduled meetings.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadbot_pending_sessions",
			Help: "Sessions with buffered fragments awaiting flush.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.inbound, m.turns, m.sweepFound, m.modelLatency, m.extractions, m.notifications, m.pending)
	}
	return m
}

func (m *Metrics) Inbound(result string) {
	if m == nil {
		return
	}
	m.inbound.WithLabelValues(result).Inc()
}

func (m *Metrics) Turn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SweepRecovered(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepFound.Add(float64(n))
}

func (m *Metrics) ObserveModel(call string, started time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.modelLatency.WithLabelValues(call, status).Observe(time.Since(started).Seconds())
}

func (m *Metrics) Extraction(outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MeetingNotified() {
	if m == nil {
		return
	}
	m.notifications.Inc()
}

func (m *Metrics) SetPendingSessions(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
