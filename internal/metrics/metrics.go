// Package metrics exposes Prometheus collectors for the session authority.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionOperationsTotal counts session authority operations by outcome.
	SessionOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatweet_session_operations_total",
		Help: "The total number of session operations",
	}, []string{"operation", "status"})

	SessionOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatweet_session_operation_duration_seconds",
		Help:    "The session operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// ForcedLogoutsTotal counts sessions displaced by a login on another device.
	ForcedLogoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatweet_forced_logouts_total",
		Help: "The total number of sessions invalidated by a newer login",
	})

	ValidationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatweet_session_validation_failures_total",
		Help: "The total number of failed session validations by reason",
	}, []string{"reason"})

	ExpiredSessionsSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatweet_expired_sessions_swept_total",
		Help: "The total number of expired sessions deactivated by cleanup",
	})

	CacheOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatweet_session_cache_operations_total",
		Help: "The total number of session cache operations",
	}, []string{"operation", "status"})
)

// ObserveOperation records the outcome and latency of one operation.
func ObserveOperation(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SessionOperationsTotal.WithLabelValues(operation, status).Inc()
	SessionOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
