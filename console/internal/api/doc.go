// Package api serves the console's HTTP surface:
//
//	GET  /api/v1/view             current View (JSON)
//	POST /api/v1/readings         manual entry: one raw record, appended
//	POST /api/v1/import           bulk import: JSON array of raw records, replaces the series
//	GET  /api/v1/thresholds       thresholds in effect
//	POST /api/v1/thresholds       partial update of the thresholds
//	POST /api/v1/analyze          send recent readings for analysis (409 while one is running)
//	POST /api/v1/analysis/clear   unlock the advisory
//	POST /api/v1/snapshot         refetch the server snapshot
//	GET  /ws/view                 WebSocket push of the View on every refresh
//	GET  /metrics                 Prometheus exposition
//	GET  /health                  liveness
package api
