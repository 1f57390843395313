// Package metrics exposes pipeline throughput counters. Every stage is a
// short-lived batch job, so the listener is optional: without an address
// the counters still feed the end-of-run log summary.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const namespace = "lotus"

// Metrics bundles the pipeline counters.
type Metrics struct {
	registry *prometheus.Registry

	TicketsGenerated    *prometheus.CounterVec
	TicketsConsolidated prometheus.Counter
	QueueFilesSkipped   prometheus.Counter
	TicketsAudited      *prometheus.CounterVec
	AnomaliesExcluded   prometheus.Counter
	MorphologyClamps    prometheus.Counter
	LockTimeouts        prometheus.Counter
	NotifyFailures      prometheus.Counter
}

// New creates the counter set on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		TicketsGenerated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_generated_total",
			Help: "Tickets written to the queue, by game.",
		}, []string{"game"}),
		TicketsConsolidated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_consolidated_total",
			Help: "Queue tickets merged into the ledger.",
		}),
		QueueFilesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "queue_files_skipped_total",
			Help: "Malformed queue files skipped during consolidation.",
		}),
		TicketsAudited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "tickets_audited_total",
			Help: "Tickets scored against draw results, by game.",
		}, []string{"game"}),
		AnomaliesExcluded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "anomalies_excluded_total",
			Help: "Scored rows excluded from learning by the z-score guard.",
		}),
		MorphologyClamps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "morphology_clamps_total",
			Help: "Genome morphology values clamped to physical bounds.",
		}),
		LockTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "lock_timeouts_total",
			Help: "Advisory lock acquisitions that timed out.",
		}),
		NotifyFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notify_failures_total",
			Help: "Notification deliveries that failed (never fatal).",
		}),
	}
}

// Serve exposes /metrics on addr in the background. Batch stages call this
// only when --metrics-addr is set.
func (m *Metrics) Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn().Str("addr", addr).Err(err).Msg("metrics listener stopped")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listener started")
}
