package router

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/AlickH/MCProxy/internal/jsonrpcid"
	"github.com/AlickH/MCProxy/internal/session"
)

// ConnSink is a connection (or pseudo-connection) that can receive a
// dispatched response line. Dispatch decides, based on the connection's
// own state, whether to format the line as an SSE/NDJSON stream event or
// as a single sync JSON response followed by closing the socket.
type ConnSink interface {
	ID() string
	Dispatch(line string) error
}

// ConnLookup resolves a connection id to its live ConnSink, used to find
// the SSE connection currently bound to a session.
type ConnLookup interface {
	Lookup(connID string) (ConnSink, bool)
}

// Broadcaster delivers a line to every currently active stream
// connection, used for notifications and any response the router cannot
// correlate to a waiting connection.
type Broadcaster interface {
	Broadcast(line string)
}

// Router owns pending_by_id and id_to_session, per spec.md §4.6, plus the
// shadow map used to give the Tool Discovery handshake's reserved ids 1
// and 2 first claim on matching responses (SPEC_FULL.md §13.1).
type Router struct {
	mu          sync.Mutex
	pendingByID map[jsonrpcid.ID]ConnSink
	idToSession map[jsonrpcid.ID]string
	shadow      map[jsonrpcid.ID]chan string

	sessions *session.Registry
	conns    ConnLookup
	bcast    Broadcaster

	stdinMu sync.Mutex
	stdin   io.Writer
}

// New builds a Router writing forwarded bodies to stdin, resolving
// sessions through sessions, looking up live connections through conns,
// and broadcasting unmapped responses through bcast.
func New(stdin io.Writer, sessions *session.Registry, conns ConnLookup, bcast Broadcaster) *Router {
	return &Router{
		pendingByID: make(map[jsonrpcid.ID]ConnSink),
		idToSession: make(map[jsonrpcid.ID]string),
		shadow:      make(map[jsonrpcid.ID]chan string),
		sessions:    sessions,
		conns:       conns,
		bcast:       bcast,
		stdin:       stdin,
	}
}

type initializeParams struct {
	ClientInfo struct {
		Name string `json:"name"`
	} `json:"clientInfo"`
}

type initializeEnvelope struct {
	Method string           `json:"method"`
	Params initializeParams `json:"params"`
}

// Ingress records a mapping for body's id, if any: id→session when
// sessionID is set (the response belongs on that session's live stream,
// not this possibly-ephemeral connection), id→connection otherwise. It
// also observes an initialize request's clientInfo.name and marks the
// session initialized, then forwards the body to the child's stdin with
// a trailing newline.
func (r *Router) Ingress(body []byte, conn ConnSink, sessionID string) error {
	id, method, ok := jsonrpcid.ExtractFromMessage(body)
	if ok && id.Valid() {
		r.mu.Lock()
		if sessionID != "" {
			r.idToSession[id] = sessionID
		} else {
			r.pendingByID[id] = conn
		}
		r.mu.Unlock()
	}

	if ok && method == "initialize" && sessionID != "" {
		r.sessions.SetInitialized(sessionID)
		var env initializeEnvelope
		if json.Unmarshal(body, &env) == nil && env.Params.ClientInfo.Name != "" {
			r.sessions.ObserveClientInfoName(sessionID, env.Params.ClientInfo.Name)
		}
	}

	return r.writeStdin(body)
}

func (r *Router) writeStdin(body []byte) error {
	r.stdinMu.Lock()
	defer r.stdinMu.Unlock()
	if !strings.HasSuffix(string(body), "\n") {
		body = append(append([]byte{}, body...), '\n')
	}
	_, err := r.stdin.Write(body)
	if err != nil {
		return fmt.Errorf("router: stdin write: %w", err)
	}
	return nil
}

// WriteRaw forwards an already-framed message (used by Tool Discovery) to
// the child's stdin, bypassing id-mapping.
func (r *Router) WriteRaw(body []byte) error {
	return r.writeStdin(body)
}

// ShadowID registers id as reserved: the next Egress line carrying id is
// delivered exclusively to the returned channel instead of any client
// mapping. Used by the discovery handshake for ids 1 and 2.
func (r *Router) ShadowID(id jsonrpcid.ID) <-chan string {
	ch := make(chan string, 1)
	r.mu.Lock()
	r.shadow[id] = ch
	r.mu.Unlock()
	return ch
}

// UnshadowID removes a shadow registration without waiting for a match,
// used when the discovery handshake times out.
func (r *Router) UnshadowID(id jsonrpcid.ID) {
	r.mu.Lock()
	delete(r.shadow, id)
	r.mu.Unlock()
}

// Egress processes one line emitted by the child, dispatching it to
// exactly one connection, to a session's live connection, to the
// discovery shadow, or broadcasting it.
func (r *Router) Egress(line string) {
	id, _, ok := jsonrpcid.ExtractFromMessage([]byte(line))
	if !ok || !id.Valid() {
		r.bcast.Broadcast(line)
		return
	}

	r.mu.Lock()
	if ch, shadowed := r.shadow[id]; shadowed {
		delete(r.shadow, id)
		r.mu.Unlock()
		ch <- line
		close(ch)
		return
	}

	conn, hasConn := r.pendingByID[id]
	if hasConn {
		delete(r.pendingByID, id)
	}
	sid, hasSession := r.idToSession[id]
	if hasSession {
		delete(r.idToSession, id)
	}
	r.mu.Unlock()

	if hasConn {
		_ = conn.Dispatch(line)
		return
	}
	if hasSession {
		if live, ok := r.conns.Lookup(r.liveConnID(sid)); ok {
			_ = live.Dispatch(line)
			return
		}
	}
	r.bcast.Broadcast(line)
}

func (r *Router) liveConnID(sessionID string) string {
	s, ok := r.sessions.Get(sessionID)
	if !ok {
		return ""
	}
	return s.ConnID
}

// DropConnection removes every pending mapping that points at connID,
// called from a connection's close hook so that later child responses
// for those ids fall through to broadcast instead of a dead socket.
func (r *Router) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, conn := range r.pendingByID {
		if conn.ID() == connID {
			delete(r.pendingByID, id)
		}
	}
}
