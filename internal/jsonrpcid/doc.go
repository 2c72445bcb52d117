// Package jsonrpcid models the JSON-RPC 2.0 id field, which the spec
// permits to be a JSON string, integer, or floating point number. Go's
// encoding/json cannot distinguish "7" from 7 once both land in an
// interface{}, and a single numeric Go type can't hold both an int and a
// float without losing the distinction the wire format makes, so request
// correlation needs its own small variant type instead of a bare
// interface{} key.
package jsonrpcid
