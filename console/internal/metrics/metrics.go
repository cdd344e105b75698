// Package metrics declares the console's Prometheus collectors. They are
// registered with the default registry and exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReadingsIngested counts readings admitted to the series, by source
	// (stream, manual, import, snapshot, analysis).
	ReadingsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wam_console_readings_ingested_total",
		Help: "Readings admitted to the series buffer.",
	}, []string{"source"})

	// RecordsDropped counts raw records or stream messages that were dropped.
	RecordsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wam_console_records_dropped_total",
		Help: "Raw records or stream messages dropped as inadmissible or malformed.",
	}, []string{"reason"})

	Refreshes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wam_console_refreshes_total",
		Help: "Coalesced view refreshes delivered downstream.",
	})

	StreamReconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wam_console_stream_reconnects_total",
		Help: "Reconnect attempts scheduled after a stream failure.",
	})

	// StreamState is 0 closed, 1 connecting, 2 open.
	StreamState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wam_console_stream_state",
		Help: "Live stream connection state (0 closed, 1 connecting, 2 open).",
	})

	AdvisoryLocked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "wam_console_advisory_locked",
		Help: "1 while the advisory text is held by an external analysis result.",
	})
)
