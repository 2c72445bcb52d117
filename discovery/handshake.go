package discovery

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/AlickH/MCProxy/internal/jsonrpcid"
)

// ReservedInitializeID and ReservedToolsListID are the two JSON-RPC ids
// reserved for this handshake (spec.md §4.8). A colliding client id is
// shadowed per SPEC_FULL.md §13.1's Open Question decision.
var (
	ReservedInitializeID = jsonrpcid.FromInt(1)
	ReservedToolsListID  = jsonrpcid.FromInt(2)
)

// Writer forwards a fully-framed JSON-RPC message to the child's stdin.
type Writer interface {
	WriteRaw(body []byte) error
}

// Shadower gives the discovery handshake first claim on responses to its
// two reserved ids, ahead of any client mapping the Router may also hold
// for a colliding id.
type Shadower interface {
	ShadowID(id jsonrpcid.ID) <-chan string
	UnshadowID(id jsonrpcid.ID)
}

func buildInitialize(bridgeName string) []byte {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{},
			"clientInfo": map[string]any{
				"name":    bridgeName,
				"version": "1.0.0",
			},
		},
	}
	data, _ := json.Marshal(payload)
	return data
}

func buildToolsList() []byte {
	payload := map[string]any{
		"jsonrpc": "2.0",
		"id":      2,
		"method":  "tools/list",
		"params":  map[string]any{},
	}
	data, _ := json.Marshal(payload)
	return data
}

type initializeResponse struct {
	Result struct {
		ProtocolVersion string `json:"protocolVersion"`
	} `json:"result"`
}

type toolsListResponse struct {
	Result struct {
		Tools []rawTool `json:"tools"`
	} `json:"result"`
}

type rawTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema struct {
		Properties map[string]json.RawMessage `json:"properties"`
	} `json:"inputSchema"`
}

func flattenTool(rt rawTool) bridgecfg.Tool {
	params := make(map[string]string, len(rt.InputSchema.Properties))
	for name, raw := range rt.InputSchema.Properties {
		var typed struct {
			Type string `json:"type"`
		}
		t := "any"
		if json.Unmarshal(raw, &typed) == nil && typed.Type != "" {
			t = typed.Type
		}
		params[name] = t
	}
	return bridgecfg.Tool{Name: rt.Name, Description: rt.Description, Params: params}
}

// Run performs the two-message handshake: send initialize, wait for its
// response to confirm a protocolVersion, send tools/list, wait for its
// response, and flatten the tool set.
func Run(ctx context.Context, w Writer, sh Shadower, bridgeName string) ([]bridgecfg.Tool, error) {
	initCh := sh.ShadowID(ReservedInitializeID)
	if err := w.WriteRaw(buildInitialize(bridgeName)); err != nil {
		sh.UnshadowID(ReservedInitializeID)
		return nil, fmt.Errorf("discovery: send initialize: %w", err)
	}

	initLine, err := awaitLine(ctx, initCh)
	if err != nil {
		sh.UnshadowID(ReservedInitializeID)
		return nil, err
	}
	var initResp initializeResponse
	if json.Unmarshal([]byte(initLine), &initResp) != nil || initResp.Result.ProtocolVersion == "" {
		return nil, ErrBadInitializeResponse
	}

	toolsCh := sh.ShadowID(ReservedToolsListID)
	if err := w.WriteRaw(buildToolsList()); err != nil {
		sh.UnshadowID(ReservedToolsListID)
		return nil, fmt.Errorf("discovery: send tools/list: %w", err)
	}

	toolsLine, err := awaitLine(ctx, toolsCh)
	if err != nil {
		sh.UnshadowID(ReservedToolsListID)
		return nil, err
	}
	var toolsResp toolsListResponse
	if err := json.Unmarshal([]byte(toolsLine), &toolsResp); err != nil {
		return nil, fmt.Errorf("discovery: parse tools/list response: %w", err)
	}

	tools := make([]bridgecfg.Tool, 0, len(toolsResp.Result.Tools))
	for _, rt := range toolsResp.Result.Tools {
		if rt.Name == "" {
			continue
		}
		tools = append(tools, flattenTool(rt))
	}
	return tools, nil
}

func awaitLine(ctx context.Context, ch <-chan string) (string, error) {
	select {
	case line := <-ch:
		return line, nil
	case <-ctx.Done():
		return "", ErrHandshakeTimeout
	}
}
