// Package mcproxy bridges child processes that speak line-delimited
// JSON-RPC ("MCP") over stdin/stdout to network clients that speak HTTP,
// Server-Sent Events, or the hybrid streamable-HTTP transport.
//
// The package's two primary entry points are:
//
//  1. Orchestrator — owns zero or more running bridges, one per configured
//     child, and exposes Start/Stop/Status over them.
//  2. Instance — a single running bridge: one child process supervised by
//     internal/procsup, fronted by an internal/miniserver HTTP/1.1 server,
//     with request/response correlation handled by internal/router and
//     client identity tracked by internal/session.
//
// Everything here is transport-agnostic beyond JSON-RPC framing: the
// package forwards opaque JSON-RPC lines, it does not itself implement any
// MCP method.
//
// Example:
//
//	orch := mcproxy.NewOrchestrator(mcproxy.Hooks{})
//	inst, err := orch.Start(ctx, bridgecfg.ChildConfig{
//		ID:      "filesystem",
//		Command: "mcp-server-filesystem",
//		Port:    0,
//	})
package mcproxy
