package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "authproxy_provider_requests_total",
	Help: "Auth operations forwarded to the identity provider",
}, []string{"operation", "status"})

var providerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "authproxy_provider_request_duration_seconds",
	Help:    "Time spent on provider auth calls",
	Buckets: prometheus.ExponentialBucketsRange(0.001, 10, 20),
}, []string{"operation", "status"})

func recordProviderCall(operation string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	providerRequests.WithLabelValues(operation, status).Inc()
	providerRequestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
