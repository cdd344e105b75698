// Package stream maintains the console's single live push connection to the
// telemetry server and dispatches typed messages to a Handler.
//
// Client is a small state machine: CLOSED → CONNECTING → OPEN, and back to
// CLOSED on error or Stop. Start is a no-op while a connection (or a dial)
// exists. On error the connection is closed and, unless the user stopped the
// client, one reconnect is scheduled after the current backoff delay, which
// then grows 1.8× up to 30s. A successful open resets the delay to 1s.
// Reconnects are serialized: at most one is ever pending.
//
// Transports are selected by URL scheme: ws:// and wss:// use a WebSocket
// (gorilla/websocket); http:// and https:// use Server-Sent Events.
//
// Inbound frames are JSON envelopes {"type": ..., "data": ...}. Decode turns
// them into one of the closed set Reading, Alert, Thresholds; malformed or
// unknown frames are logged and dropped without touching the connection.
package stream
