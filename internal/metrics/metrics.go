package metrics

import "github.com/prometheus/client_golang/prometheus"

// Validator Prometheus metrics.
var (
	RoundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "rounds_total",
			Help:      "Total number of validation rounds by outcome",
		},
		[]string{"outcome"}, // "completed" / "aborted"
	)

	RoundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "round_duration_seconds",
			Help:      "Validation round duration in seconds",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	MinerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "miner_requests_total",
			Help:      "Total miner dispatch requests",
		},
		[]string{"status"}, // "answered" / "no_response"
	)

	AuditsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "audits_total",
			Help:      "Audit verification outcomes",
		},
		[]string{"outcome"}, // "passed" / "failed" / "skipped" / "invalid_id"
	)

	SubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "submissions_total",
			Help:      "Scored submission outcomes",
		},
		[]string{"result"}, // "scored" / "punished" / "min_score" / "unscored"
	)

	VideoDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "video_downloads_total",
			Help:      "Audit clip download attempts",
		},
		[]string{"result"}, // "ok" / "timeout" / "blocked" / "fake" / "error"
	)

	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "kind", "status"}, // kind: "text" / "media"
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "validator",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "kind"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	WeightsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "validator",
			Name:      "weights_submitted_total",
			Help:      "Total weight entries submitted to the ledger",
		},
	)
)

var metricsRegistered bool

// Register registers validator metrics. Must be called once from main.
func Register() {
	if metricsRegistered {
		return
	}
	prometheus.MustRegister(RoundsTotal)
	prometheus.MustRegister(RoundDuration)
	prometheus.MustRegister(MinerRequestsTotal)
	prometheus.MustRegister(AuditsTotal)
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(VideoDownloadsTotal)
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingCacheTotal)
	prometheus.MustRegister(WeightsSubmittedTotal)
	metricsRegistered = true
}
