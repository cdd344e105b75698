// Package hub fans published messages out to push subscribers over WebSocket
// (ServeHTTP) and Server-Sent Events (ServeSSE).
//
// Each subscriber has a small outgoing buffer. A subscriber whose buffer is
// full when a message is published is disconnected rather than allowed to
// stall the publisher.
package hub
