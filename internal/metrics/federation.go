package metrics

import "github.com/prometheus/client_golang/prometheus"

// Federation Prometheus metrics.
var (
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stacfed",
			Name:      "upstream_requests_total",
			Help:      "Total number of requests sent to upstream catalogs",
		},
		[]string{"api", "endpoint", "status"},
	)

	UpstreamRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stacfed",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream catalog request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"api", "endpoint"},
	)

	UpstreamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stacfed",
			Name:      "upstream_errors_total",
			Help:      "Total upstream catalog errors",
		},
		[]string{"api", "error_type"},
	)

	DocumentCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stacfed",
			Name:      "document_cache_total",
			Help:      "Upstream document cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	ReconcileRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stacfed",
			Name:      "reconcile_records_total",
			Help:      "Collection records seen by the per-source filter",
		},
		[]string{"api", "outcome"}, // "kept" / "rejected"
	)

	ReconcileUnsourcedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stacfed",
			Name:      "reconcile_unsourced_total",
			Help:      "Collection records dropped because no source URL could be derived",
		},
	)
)

var registered bool

// Register registers the HTTP and federation metrics on the default registry.
// Must be called once from main; repeated calls are no-ops.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestsInFlight)
	prometheus.MustRegister(UpstreamRequestsTotal)
	prometheus.MustRegister(UpstreamRequestDuration)
	prometheus.MustRegister(UpstreamErrorsTotal)
	prometheus.MustRegister(DocumentCacheTotal)
	prometheus.MustRegister(ReconcileRecordsTotal)
	prometheus.MustRegister(ReconcileUnsourcedTotal)
	registered = true
}
