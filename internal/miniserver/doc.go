// Package miniserver is a hand-rolled HTTP/1.1 server built directly on
// net.Conn rather than net/http: it reads raw TCP bytes into a growing
// buffer, parses the request line and headers itself, sniffs and rejects
// TLS ClientHello bytes, and writes responses as fixed-length, chunked, or
// preflight bodies. net/http's server hides exactly the byte-level control
// the bridge needs (arbitrary-fragment-boundary parsing, a hard buffer
// cap, raw chunk framing for a hand-written SSE/NDJSON stream), so this
// package talks straight to the socket.
package miniserver
