package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the prefix of every collector exported by the server.
const Namespace = "scenesync"

// NewCounter creates a CounterVec under the global namespace.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewGauge creates a GaugeVec under the global namespace.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help}, labels)
}

// NewHistogramWithBuckets creates a HistogramVec with custom buckets.
func NewHistogramWithBuckets(name, subsystem, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{Namespace: Namespace, Subsystem: subsystem, Name: name, Help: help, Buckets: buckets}, labels)
}

var (
	// SimplifyInput counts operations entering Transaction.Simplify, by kind.
	SimplifyInput = NewCounter("simplify_input_total", "transaction", "Operations submitted to simplify", []string{"kind"})
	// SimplifyOutput counts operations surviving Transaction.Simplify, by kind.
	SimplifyOutput = NewCounter("simplify_output_total", "transaction", "Operations surviving simplify", []string{"kind"})

	// DispatchBytes observes per-user payload sizes handed to the transport.
	DispatchBytes = NewHistogramWithBuckets("payload_bytes", "dispatch", "Per-user payload size",
		[]string{"encoding"}, prometheus.ExponentialBuckets(64, 4, 8))
	// DispatchFailures counts failed sends to the transport, by reason.
	DispatchFailures = NewCounter("failures_total", "dispatch", "Failed per-user dispatches", []string{"reason"})

	// BindingNodes tracks how many nodes carry a binding, globally or for at
	// least one user.
	BindingNodes = NewGauge("bound_nodes", "binding", "Nodes with a global or per-user binding", nil)
	// BindingRequests counts binding manager calls, by method and outcome.
	BindingRequests = NewCounter("requests_total", "binding", "Binding manager requests", []string{"method", "outcome"})

	// FlushDuration observes how long an environment tick takes to simplify and dispatch.
	FlushDuration = NewHistogramWithBuckets("flush_seconds", "environment", "Environment flush duration",
		nil, prometheus.ExponentialBuckets(0.0005, 2, 12))
	// FlushOperations counts operations dispatched by environment flushes.
	FlushOperations = NewCounter("flushed_operations_total", "environment", "Operations dispatched by flushes", nil)

	// Users tracks registered users by status.
	Users = NewGauge("users", "environment", "Registered users by status", []string{"status"})
)
