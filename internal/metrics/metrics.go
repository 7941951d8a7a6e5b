// Package metrics exposes Prometheus instrumentation for the ingestion
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's collectors, registered on a private registry so
// tests can construct as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	BatchesReceived  prometheus.Counter
	EventsAccepted   prometheus.Counter
	EventsPersisted  prometheus.Counter
	SubBatchFailures prometheus.Counter
	SessionsUpserted prometheus.Counter
	FunnelUpserts    prometheus.Counter
	LogEntries       prometheus.Counter
	IngestDuration   prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		BatchesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_batches_received_total",
			Help: "Flush batches received on the beacon endpoint.",
		}),
		EventsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_events_accepted_total",
			Help: "Behavior events accepted for processing.",
		}),
		EventsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_events_persisted_total",
			Help: "Behavior events durably inserted.",
		}),
		SubBatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_subbatch_failures_total",
			Help: "Event sub-batches that failed to insert (best-effort, not surfaced to clients).",
		}),
		SessionsUpserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_sessions_upserted_total",
			Help: "Session rows inserted or updated.",
		}),
		FunnelUpserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_funnel_upserts_total",
			Help: "Funnel step rows inserted or updated.",
		}),
		LogEntries: factory.NewCounter(prometheus.CounterOpts{
			Name: "beacon_log_entries_total",
			Help: "Structured log entries accepted on the log sink.",
		}),
		IngestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "beacon_ingest_duration_seconds",
			Help:    "Wall time spent processing one beacon batch.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
