// Package discovery implements the Tool Discovery handshake: sending a
// reserved-id "initialize" followed by a reserved-id "tools/list" to a
// running MCP child and flattening the result into a []bridgecfg.Tool.
// The same two-message exchange backs both the Bridge Orchestrator's
// automatic post-start discovery and the standalone "validate" path that
// spawns a throwaway child outside any Orchestrator.
package discovery
