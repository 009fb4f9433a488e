// Package metrics defines and registers all custom Prometheus metrics for the
// user directory API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default Prometheus registry on package
// initialisation and exposed by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "userdir"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// ── User metrics ──────────────────────────────────────────────────────────────

// UserOperationsTotal counts use-case invocations.
// Labels:
//   - operation: "create", "update", "delete", "refresh_location"
//   - outcome: "success" or the error kind (e.g. "bad_request", "storage")
var UserOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_operations_total",
		Help:      "Total number of user mutations, by operation and outcome.",
	},
	[]string{"operation", "outcome"},
)

// ── Enrichment metrics ────────────────────────────────────────────────────────

// EnrichmentRequestsTotal counts calls to the geocoding provider.
// Label:
//   - outcome: "success", "not_found", "unauthorized", "rate_limited", "timeout", "error"
var EnrichmentRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrichment_requests_total",
		Help:      "Total number of geocoding provider requests, by outcome.",
	},
	[]string{"outcome"},
)

// EnrichmentDuration measures provider round-trip time.
var EnrichmentDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "enrichment_duration_seconds",
		Help:      "Duration of geocoding provider requests.",
		Buckets:   prometheus.DefBuckets, // .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10
	},
)
