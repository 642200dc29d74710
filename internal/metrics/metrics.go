package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "ecolearn"
)

var (
	// Session Metrics
	SessionResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_resolutions_total",
		Help:      "Count of identity resolver attempts.",
	}, []string{"operation", "resolver", "outcome"})

	SessionOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_operations_total",
		Help:      "Count of session operations by result.",
	}, []string{"operation", "outcome"})

	// Remote Auth Metrics
	RemoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "remote_request_duration_seconds",
		Help:      "Time taken for requests to the remote auth backend.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint", "status"})

	// Guard Metrics
	GuardDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Count of route guard decisions.",
	}, []string{"outcome"})

	ActiveVisitors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_visitors",
		Help:      "Number of visitor sessions held in memory by the web console.",
	})
)
