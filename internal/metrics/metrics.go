package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Reconciliation outcomes, one increment per inbound webhook.
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound webhook calls by reconciliation outcome",
		},
		[]string{"outcome"},
	)
	TransitionsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_transitions_applied_total",
			Help: "Terminal transitions applied to the ledger",
		},
		[]string{"status"}, // completed|failed|cancelled
	)
	StoreRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_store_retries_total",
			Help: "Retried ledger writes after a transient store failure",
		},
	)

	PaymentsInitiated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_initiated_total",
			Help: "Pending transactions created by the initiation flow",
		},
		[]string{"type"}, // payment|donation
	)

	// Async queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler for the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(TransitionsApplied)
	prometheus.MustRegister(StoreRetriesTotal)
	prometheus.MustRegister(PaymentsInitiated)
	prometheus.MustRegister(WorkerQueueDepth)
}
