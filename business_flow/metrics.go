package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Attribution write outcomes
const (
	writeOutcomeSuccess = "success"
	writeOutcomeFailure = "failure"
	writeOutcomeTimeout = "timeout"
	writeOutcomePanic   = "panic"
)

// Attribution kinds
const (
	attributionKindClick      = "click"
	attributionKindImpression = "impression"
)

var (
	// Redirects issued, partitioned by whether a rule matched
	redirectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hopgate_redirects_total",
			Help: "Total number of redirects issued",
		},
		[]string{"result"},
	)

	// Attribution inserts partitioned by kind and outcome; failures are dropped writes
	attributionWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hopgate_attribution_writes_total",
			Help: "Attribution record inserts by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// Click stream publish failures
	attributionPublishFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hopgate_attribution_publish_failures_total",
			Help: "Attribution events that could not be mirrored to the click stream",
		},
		[]string{"kind"},
	)

	// Generation of the snapshot currently serving lookups
	ruleIndexGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hopgate_rule_index_generation",
			Help: "Generation number of the rule snapshot currently serving",
		},
	)

	// Rules in the serving snapshot
	ruleIndexRules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "hopgate_rule_index_rules",
			Help: "Number of redirect rules in the serving snapshot",
		},
	)

	// Failed refresh attempts; the previous snapshot keeps serving
	ruleIndexRefreshFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "hopgate_rule_index_refresh_failures_total",
			Help: "Rule index refreshes that failed to load from the store",
		},
	)

	// Time spent loading and building a snapshot
	ruleIndexRefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hopgate_rule_index_refresh_duration_seconds",
			Help:    "Rule index refresh latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)
