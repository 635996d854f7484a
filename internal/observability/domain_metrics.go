package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	verdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledgergate_validator_verdicts_total",
			Help: "Validator verdicts by outcome and reason code.",
		},
		[]string{"outcome", "reason"},
	)
	rateLimitRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_rate_limit_rejections_total",
			Help: "Requests rejected by the per-session rate limiter.",
		},
	)
	cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_cache_hits_total",
			Help: "Result cache hits.",
		},
	)
	cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_cache_misses_total",
			Help: "Result cache misses.",
		},
	)
	executorLatencySeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledgergate_executor_latency_seconds",
			Help:    "Latency of downstream query execution.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	expansionRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_expansion_rows_total",
			Help: "Item rows produced by virtual row expansion.",
		},
	)
	itemParseWarningsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_item_parse_warnings_total",
			Help: "Rows whose item fields could not be parsed and passed through unexpanded.",
		},
	)
	authFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledgergate_auth_failures_total",
			Help: "Requests rejected for a missing or invalid API key.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		verdictsTotal,
		rateLimitRejectionsTotal,
		cacheHitsTotal,
		cacheMissesTotal,
		executorLatencySeconds,
		expansionRowsTotal,
		itemParseWarningsTotal,
		authFailuresTotal,
	)
}

func ObserveVerdict(allowed bool, reason string) {
	outcome := "allowed"
	if !allowed {
		outcome = "rejected"
	}
	if reason == "" {
		reason = "ok"
	}
	verdictsTotal.WithLabelValues(outcome, reason).Inc()
}

func IncrementRateLimitRejection() {
	rateLimitRejectionsTotal.Inc()
}

func ObserveCacheLookup(hit bool) {
	if hit {
		cacheHitsTotal.Inc()
		return
	}
	cacheMissesTotal.Inc()
}

func ObserveExecutorLatency(elapsed time.Duration) {
	executorLatencySeconds.Observe(elapsed.Seconds())
}

func ObserveExpansion(rows int) {
	if rows > 0 {
		expansionRowsTotal.Add(float64(rows))
	}
}

func IncrementItemParseWarning() {
	itemParseWarningsTotal.Inc()
}

func IncrementAuthFailure() {
	authFailuresTotal.Inc()
}
