// Package api implements the HTTP surface of the telemetry server.
//
// New(opts) returns an http.Handler that serves:
//
//	GET      /health                 status, storage backend, subscriber count
//	GET      /metrics                Prometheus exposition
//	GET      /stream                 Server-Sent Events push stream
//	GET      /ws/stream              WebSocket push stream
//	POST     /api/v1/sensor          ingest one raw reading; {"ok":true,"id":N}
//	GET      /api/v1/readings        most recent ?limit=K readings (default 200), newest first
//	GET      /api/v1/thresholds      current bounds
//	POST|PUT /api/v1/thresholds      merge bounds, save, push {"type":"thresholds"}
//	GET      /api/v1/alerts          most recent ?limit=K alerts (default 200), newest first
//	POST     /api/v1/analyze         local analysis of {"rows":[...]}; 400 without rows
//
// Routing uses gorilla/mux. /api/v1 responses are gzip-compressed when the
// client accepts it and their latency is recorded per route template.
// Errors are JSON objects of the form {"error": "..."}.
package api
