package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTransitions считает смены статуса заявок
	RequestTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "maintenance",
		Name:      "request_transitions_total",
		Help:      "Maintenance request status transitions broken down by source, target status and result.",
	}, []string{"from", "to", "result"})

	JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "maintenance",
		Name:      "job_transitions_total",
		Help:      "Maintenance job status transitions broken down by source, target status and result.",
	}, []string{"from", "to", "result"})

	PartialFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "maintenance",
		Name:      "partial_failures_total",
		Help:      "Two-step writes left inconsistent after a failed compensation.",
	}, []string{"operation"})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "realtime",
		Name:      "events_total",
		Help:      "Change feed events received, by table and event type.",
	}, []string{"table", "type"})

	ReconcilerRefetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "realtime",
		Name:      "refetches_total",
		Help:      "Reconciler list reloads, by table and result (ok, stale, error).",
	}, []string{"table", "result"})

	RelayEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rentdesk",
		Subsystem: "realtime",
		Name:      "relayed_events_total",
		Help:      "Change events forwarded to Redis or Kafka, by table and result (ok, error).",
	}, []string{"table", "result"})

	HTTPRequests = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rentdesk",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for API requests.",
		Buckets: []float64{
			0.005, 0.01, 0.02, 0.05,
			0.1, 0.2, 0.5,
			1, 2, 5,
		},
	}, []string{"route", "method", "status"})
)
