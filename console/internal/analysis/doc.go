// Package analysis is the client for the external analysis collaborator. It
// posts the most recent readings and turns the reply into an advisory text
// plus an optional replacement chart. At most one request is in flight.
package analysis
