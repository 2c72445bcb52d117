package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// GraceUninitialized is the minimum time an uninitialized session is
	// kept after its last connection closes.
	GraceUninitialized = 5 * time.Second
	// EvictUninitialized is the sweep threshold past which an
	// uninitialized session with no live connection is dropped.
	EvictUninitialized = 30 * time.Second
	// EvictInitialized is the sweep threshold for an initialized session.
	EvictInitialized = time.Hour
)

type nameSource int

const (
	sourceNone nameSource = iota
	sourceUserAgent
	sourceClientInfo
)

// Session is one logical client identity, stable across reconnects.
type Session struct {
	ID          string
	Name        string
	Initialized bool
	LastSeen    time.Time
	ConnID      string // currently bound SSE/stream connection, "" if none
	Format      string // response format of ConnID, mirrored for the active-clients view

	nameSrc nameSource
}

// IsLive reports whether the session currently has a bound connection.
func (s *Session) IsLive() bool {
	return s.ConnID != ""
}

// Registry holds every known LogicalSession, live or within its grace
// window. All methods are safe for concurrent use: the registry guards its
// map with its own mutex, and callers such as the Router invoke it without
// holding any lock of theirs.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Mint allocates a fresh lowercase-UUID session id without registering it;
// callers register it via BindConnection once the stream is established.
func Mint() string {
	return uuid.New().String()
}

// GetOrCreate returns the session for id, creating it if unseen.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id, LastSeen: time.Now()}
		r.sessions[id] = s
	}
	return s
}

// Get returns the session for id if it exists.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// BindConnection attaches connID (and its response format) as the live
// stream for session id, at most one live connection per session.
func (r *Registry) BindConnection(id, connID, format string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id}
		r.sessions[id] = s
	}
	s.ConnID = connID
	s.Format = format
	s.LastSeen = time.Now()
	return s
}

// Unbind detaches connID from id if it is still the bound connection,
// starting the grace window.
func (r *Registry) Unbind(id, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if s.ConnID == connID {
		s.ConnID = ""
		s.Format = ""
	}
	s.LastSeen = time.Now()
}

// SetInitialized marks a session as having completed MCP initialize,
// extending its grace period to EvictInitialized.
func (r *Registry) SetInitialized(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.Initialized = true
	}
}

// ObserveClientInfoName records a name learned from an MCP initialize
// request's clientInfo.name field. It always wins and is sticky: once set
// this way, ObserveUserAgent can no longer change it.
func (r *Registry) ObserveClientInfoName(id, name string) {
	cleaned := CleanName(name)
	if cleaned == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id}
		r.sessions[id] = s
	}
	s.Name = cleaned
	s.nameSrc = sourceClientInfo
}

// ObserveUserAgent records a name learned from the User-Agent header. It
// is only applied if no clientInfo.name has been recorded for this
// session yet.
func (r *Registry) ObserveUserAgent(id, ua string) {
	cleaned := CleanName(ua)
	if cleaned == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id}
		r.sessions[id] = s
	}
	if s.nameSrc == sourceClientInfo {
		return
	}
	s.Name = cleaned
	s.nameSrc = sourceUserAgent
}

// Touch refreshes last-seen without altering any other field.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastSeen = time.Now()
	}
}

// Sweep evicts sessions with no live connection whose grace period has
// expired, returning their ids. Called on every connection removal and
// periodically by each bridge Instance's sweep loop.
func (r *Registry) Sweep(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted []string
	for id, s := range r.sessions {
		if s.IsLive() {
			continue
		}
		threshold := EvictUninitialized
		if s.Initialized {
			threshold = EvictInitialized
		}
		if now.Sub(s.LastSeen) > threshold {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// ClientView is one row of the active-clients projection.
type ClientView struct {
	SessionID string
	Name      string
	Idle      bool
}

// ActiveClients returns the deduplicated, name-sorted projection of every
// known session, live or within grace.
func (r *Registry) ActiveClients() []ClientView {
	r.mu.Lock()
	defer r.mu.Unlock()
	views := make([]ClientView, 0, len(r.sessions))
	for _, s := range r.sessions {
		name := s.Name
		if name == "" {
			name = "Unknown"
		}
		views = append(views, ClientView{SessionID: s.ID, Name: name, Idle: !s.IsLive()})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
	return views
}
