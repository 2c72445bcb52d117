package classifier

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/AlickH/MCProxy/internal/jsonrpcid"
)

// Action names which of the bridge's transports should handle a request.
type Action int

const (
	ActionNotFound Action = iota
	ActionPreflight
	ActionUpgradeSSE
	ActionUpgradeNDJSON
	ActionSessionMessage
	ActionStreamable
	ActionSync
	ActionNotification
)

func (a Action) String() string {
	switch a {
	case ActionPreflight:
		return "preflight"
	case ActionUpgradeSSE:
		return "upgrade-sse"
	case ActionUpgradeNDJSON:
		return "upgrade-ndjson"
	case ActionSessionMessage:
		return "session-message"
	case ActionStreamable:
		return "streamable"
	case ActionSync:
		return "sync"
	case ActionNotification:
		return "notification"
	default:
		return "not-found"
	}
}

// streamPaths are the GET paths that can be upgraded to a stream.
var streamPaths = map[string]bool{"/": true, "/sse": true, "/events": true}

// Request is the classifier's view of an inbound HTTP request, already
// parsed by the Mini-Server from raw bytes.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// Decision is the outcome of classifying a Request.
type Decision struct {
	Action    Action
	SessionID string
	ID        jsonrpcid.ID
	HasID     bool
	Method    string // JSON-RPC method name, if the body parsed as an object
}

// AcceptsEventStream reports whether the Accept header lists
// text/event-stream.
func AcceptsEventStream(h http.Header) bool {
	return strings.Contains(h.Get("Accept"), "text/event-stream")
}

// Classify applies the Transport Classifier decision table to req.
func Classify(req Request) Decision {
	sessionID := req.Query.Get("sessionId")
	wantsStream := AcceptsEventStream(req.Header)

	if strings.EqualFold(req.Method, http.MethodOptions) {
		return Decision{Action: ActionPreflight}
	}

	if strings.EqualFold(req.Method, http.MethodGet) {
		if !streamPaths[req.Path] {
			return Decision{Action: ActionNotFound}
		}
		if wantsStream {
			return Decision{Action: ActionUpgradeSSE, SessionID: sessionID}
		}
		return Decision{Action: ActionUpgradeNDJSON, SessionID: sessionID}
	}

	if strings.EqualFold(req.Method, http.MethodPost) {
		hasBody := len(req.Body) > 0
		if !hasBody {
			return Decision{Action: ActionNotFound}
		}

		id, method, _ := jsonrpcid.ExtractFromMessage(req.Body)
		hasID := id.Valid()

		if sessionID != "" {
			return Decision{Action: ActionSessionMessage, SessionID: sessionID, ID: id, HasID: hasID, Method: method}
		}
		if wantsStream {
			return Decision{Action: ActionStreamable, ID: id, HasID: hasID, Method: method}
		}
		if hasID {
			return Decision{Action: ActionSync, ID: id, HasID: true, Method: method}
		}
		return Decision{Action: ActionNotification, Method: method}
	}

	return Decision{Action: ActionNotFound}
}
