// Package metrics provides Prometheus metrics for the webhook handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "self_healing"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.005, .01, .05, .1, .5, 1, 5, 30, 60, 120, 300},
		},
		[]string{"method", "path"},
	)
)

// Webhook metrics
var (
	// AlertsReceivedTotal counts alerts received by status
	AlertsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "alerts_received_total",
			Help:      "Total alerts received via the webhook, by status",
		},
		[]string{"status"},
	)

	// AlertsUnmappedTotal counts firing alerts with no remediation
	AlertsUnmappedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "alerts_unmapped_total",
			Help:      "Total firing alerts without a mapped remediation",
		},
	)
)

// Remediation metrics
var (
	// RemediationsTotal counts remediation attempts by alert and outcome
	RemediationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "runs_total",
			Help:      "Total remediation attempts, by alert and outcome",
		},
		[]string{"alert", "outcome"},
	)

	// RemediationDuration tracks playbook run time
	RemediationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "duration_seconds",
			Help:      "Remediation playbook run time in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 180, 240, 300},
		},
		[]string{"alert"},
	)

	// RemediationsInFlight tracks concurrently running playbooks
	RemediationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "remediation",
			Name:      "in_flight",
			Help:      "Number of remediation playbooks currently running",
		},
	)
)
