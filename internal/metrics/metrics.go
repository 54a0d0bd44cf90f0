package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the host's Prometheus collectors.
type Metrics struct {
	UpdatesTotal    *prometheus.CounterVec
	RepliesTotal    *prometheus.CounterVec
	ErrorsTotal     *prometheus.CounterVec
	TurnDuration    *prometheus.HistogramVec
	TurnsInFlight   prometheus.Gauge
	WebhookRequests *prometheus.CounterVec
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	return &Metrics{
		UpdatesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogbot_updates_total",
				Help: "Inbound updates by kind",
			},
			[]string{"kind"}, // kind: command, message, callback, ignored
		),
		RepliesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogbot_replies_total",
				Help: "Applied responses by variant",
			},
			[]string{"variant"},
		),
		ErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogbot_errors_total",
				Help: "Failed turns by stage",
			},
			[]string{"stage"}, // stage: store, dispatch, reply, persist, panic
		),
		TurnDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dialogbot_turn_duration_seconds",
				Help:    "Time from receiving an update to persisting the user",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		),
		TurnsInFlight: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "dialogbot_turns_in_flight",
				Help: "Turns currently being processed",
			},
		),
		WebhookRequests: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dialogbot_webhook_requests_total",
				Help: "Webhook HTTP requests by status",
			},
			[]string{"status"}, // status: ok, bad_request, unavailable
		),
	}
}

// NewNop returns metrics registered on a private registry, for tests and
// for callers that do not export them.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
