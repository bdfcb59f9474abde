// Package metrics declares the Prometheus vectors exported by every stage
// of the delta-driven index maintenance pipeline, one vector per stage.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RebuildCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "index_manager",
		Name:      "rebuilds_total",
	}, []string{"type", "reason"})

	RebuildResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "index_manager",
		Name:      "rebuild_results_total",
	}, []string{"type", "result"})

	RebuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexsync",
		Subsystem: "index_manager",
		Name:      "rebuild_duration_seconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 600},
	}, []string{"type"})

	IndexState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "indexsync",
		Subsystem: "index_manager",
		Name:      "index_state",
	}, []string{"type", "index"})

	DocumentsBuilt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "document_builder",
		Name:      "documents_built_total",
	}, []string{"type", "result"})

	DocumentBuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexsync",
		Subsystem: "document_builder",
		Name:      "build_duration_seconds",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"type"})

	JobsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "update_handler",
		Name:      "jobs_processed_total",
	}, []string{"op", "result"})

	QueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "indexsync",
		Subsystem: "update_handler",
		Name:      "queue_depth",
	})

	QueueCoalesced = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "update_handler",
		Name:      "jobs_coalesced_total",
	}, []string{"op"})

	RouterTriplesRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "indexsync",
		Subsystem: "delta_router",
		Name:      "triples_routed_total",
	}, []string{"op"})

	GatewayQueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "indexsync",
		Subsystem: "triplestore_gateway",
		Name:      "query_duration_seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"kind", "scope"})
)

func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		RebuildCount, RebuildResults, RebuildDuration, IndexState,
		DocumentsBuilt, DocumentBuildDuration,
		JobsProcessed, QueueDepth, QueueCoalesced,
		RouterTriplesRouted, GatewayQueryDuration,
	)
}
