// Package metrics declares the server's Prometheus collectors. They are
// registered with the default registry and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReadingsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wam_server_readings_received_total",
		Help: "Sensor readings stored.",
	})

	AlertsFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wam_server_alerts_fired_total",
		Help: "Threshold alerts created.",
	})

	// WebhookDeliveries counts webhook posts by target type and result (ok, error).
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wam_server_webhook_deliveries_total",
		Help: "Alert webhook delivery attempts.",
	}, []string{"type", "result"})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wam_server_stream_subscribers",
		Help: "Connected push stream subscribers (SSE and WebSocket).",
	})

	// RequestDuration observes REST request latency by route template.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wam_server_http_request_duration_seconds",
		Help:    "REST request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "code"})
)
