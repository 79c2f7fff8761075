// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"themedesk/internal/models"
)

var (
	// Transitions counts lifecycle actions by outcome ("ok" or an error kind).
	Transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "themedesk_transitions_total",
			Help: "Theme lifecycle actions by result",
		},
		[]string{"action", "result"},
	)

	// ExternalCallDuration times calls to the record store, language model,
	// mail relay and campaign platform.
	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "themedesk_external_call_duration_seconds",
			Help:    "Duration of calls to external services",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"service", "operation", "outcome"},
	)

	// HTTPRequestDuration times API requests by route pattern.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "themedesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
		},
		[]string{"method", "route", "status"},
	)
)

// Result maps an error to a low-cardinality label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := models.KindOf(err); kind != "" {
		return string(kind)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "error"
}

// ObserveCall records the duration of an external call started at start.
func ObserveCall(service, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ExternalCallDuration.WithLabelValues(service, operation, outcome).Observe(time.Since(start).Seconds())
}

// RecordTransition counts one lifecycle action.
func RecordTransition(action string, err error) {
	Transitions.WithLabelValues(action, Result(err)).Inc()
}
