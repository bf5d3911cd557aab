// Package metrics exposes the gateway's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_gateway_requests_total",
			Help: "Total dispatched requests by resolved service and status code",
		},
		[]string{"service", "code"},
	)
	RateLimitRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "edge_gateway_rate_limit_rejections_total",
			Help: "Requests rejected by the admission gate",
		},
	)
	ForwardFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "edge_gateway_forward_failures_total",
			Help: "Forwarding failures by kind (timeout, refused, malformed, canceled, other)",
		},
		[]string{"kind"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "edge_gateway_request_duration_seconds",
			Help:    "End-to-end dispatch latency by resolved service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
)

// Init registers the gateway metrics with the default registry.
func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RateLimitRejections)
	prometheus.MustRegister(ForwardFailures)
	prometheus.MustRegister(RequestDuration)
}
