// Package classifier implements the Transport Classifier decision table:
// given a parsed HTTP request, it decides which of the bridge's four
// transports (preflight, GET stream, POST-session, POST-sync/streamable)
// handles it, or that the request should be rejected outright.
package classifier
