package discovery

import "errors"

// ErrHandshakeTimeout is returned when a reserved-id response does not
// arrive before the caller's context is done.
var ErrHandshakeTimeout = errors.New("discovery: handshake timed out waiting for response")

// ErrValidateTimeout is returned by Validate specifically, so callers can
// distinguish the standalone 5-second hard timeout from a generic
// handshake timeout used elsewhere.
var ErrValidateTimeout = errors.New("discovery: validate timed out after 5s")

// ErrBadInitializeResponse is returned when the id:1 response lacks a
// result.protocolVersion field.
var ErrBadInitializeResponse = errors.New("discovery: initialize response missing result.protocolVersion")
