package mcproxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/AlickH/MCProxy/discovery"
	"github.com/AlickH/MCProxy/internal/classifier"
	"github.com/AlickH/MCProxy/internal/lineframe"
	"github.com/AlickH/MCProxy/internal/miniserver"
	"github.com/AlickH/MCProxy/internal/procsup"
	"github.com/AlickH/MCProxy/internal/router"
	"github.com/AlickH/MCProxy/internal/session"
)

// discoveryDelay is how long a freshly started Instance waits before
// firing its own Tool Discovery handshake, giving the child a moment to
// finish its own startup before being asked to speak MCP (spec.md §4.8).
const discoveryDelay = time.Second

// BridgeStatus is the point-in-time readiness snapshot a caller can poll
// without subscribing to Hooks (SPEC_FULL.md §12).
type BridgeStatus struct {
	ID            string
	Status        Status
	Port          int
	PID           int
	Tools         []bridgecfg.Tool
	ActiveClients []session.ClientView
	LastError     error
}

// connLookup adapts *miniserver.Server.Lookup's concrete return type to
// router.ConnLookup without miniserver importing router.
type connLookup struct{ srv *miniserver.Server }

func (l connLookup) Lookup(connID string) (router.ConnSink, bool) {
	conn, ok := l.srv.Lookup(connID)
	if !ok {
		return nil, false
	}
	return conn, true
}

// broadcaster adapts *miniserver.Server.Connections to router.Broadcaster,
// fanning a line out to every currently streaming connection.
type broadcaster struct{ srv *miniserver.Server }

func (b broadcaster) Broadcast(line string) {
	for _, c := range b.srv.Connections() {
		if s := c.State(); s != miniserver.StateSSEStream && s != miniserver.StateNDJSONStream {
			continue
		}
		_ = c.Dispatch(line)
	}
}

// Instance is a single running bridge: one supervised child process
// fronted by one Mini-Server listener, per spec.md §4.7's state machine.
type Instance struct {
	cfg  bridgecfg.ChildConfig
	bus  *hookBus
	self string // this instance's own bridgeName, used in the discovery clientInfo

	mu      sync.Mutex
	status  Status
	lastErr error
	tools   []bridgecfg.Tool

	handle *procsup.Handle
	srv    *miniserver.Server
	ln     net.Listener
	rt     *router.Router
	sess   *session.Registry

	stopSweep context.CancelFunc
	stopped   chan struct{}
}

func newInstance(cfg bridgecfg.ChildConfig, bus *hookBus) *Instance {
	return &Instance{cfg: cfg, bus: bus, self: "mcproxy", sess: session.New()}
}

// Start spawns the child, binds the listener, and brings the bridge to
// StatusRunning, or to StatusError on failure. The instance's own
// goroutines continue running after Start returns: stdout/stderr pumps,
// the HTTP accept loop, the child exit watcher, and the session sweeper.
func (inst *Instance) Start(ctx context.Context) error {
	inst.setStatus(StatusStarting)

	if err := inst.cfg.Validate(); err != nil {
		inst.fail(err)
		return err
	}

	handle, err := procsup.Spawn(procsup.Spec{
		Command: inst.cfg.Command,
		Args:    inst.cfg.Args,
		Env:     inst.cfg.Env,
		Dir:     inst.cfg.Dir,
	})
	if err != nil {
		inst.fail(err)
		return err
	}

	ln, err := miniserver.Listen(inst.cfg.BindHost(), inst.cfg.Port)
	if err != nil {
		_ = handle.Kill()
		wrapped := fmt.Errorf("%w: %v", ErrBindFailed, err)
		inst.fail(wrapped)
		return wrapped
	}

	inst.mu.Lock()
	inst.handle = handle
	inst.ln = ln
	inst.srv = miniserver.New(inst.handleRequest)
	inst.rt = router.New(handle.Stdin, inst.sess, connLookup{inst.srv}, broadcaster{inst.srv})
	if inst.cfg.HasTools() {
		inst.tools = inst.cfg.Tools
	}
	sweepCtx, cancel := context.WithCancel(context.Background())
	inst.stopSweep = cancel
	inst.stopped = make(chan struct{})
	inst.mu.Unlock()

	go inst.pumpStdout(handle)
	go inst.pumpStderr(handle)
	go inst.watchExit(handle)
	go inst.sweepLoop(sweepCtx)
	go func() {
		if err := inst.srv.Serve(ln); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
		}
	}()

	if !inst.cfg.HasTools() {
		go inst.runDiscovery()
	}

	inst.setStatus(StatusRunning)
	return nil
}

// Stop terminates the child, closes the listener and every connection,
// and brings the bridge back to StatusStopped.
func (inst *Instance) Stop() error {
	inst.mu.Lock()
	handle := inst.handle
	srv := inst.srv
	cancel := inst.stopSweep
	stopped := inst.stopped
	inst.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if srv != nil {
		srv.Stop()
	}
	if handle != nil {
		_ = handle.Terminate()
	}
	if stopped != nil {
		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
		}
	}
	inst.setStatus(StatusStopped)
	return nil
}

func (inst *Instance) fail(err error) {
	inst.mu.Lock()
	inst.lastErr = err
	inst.mu.Unlock()
	inst.setStatus(StatusError)
}

func (inst *Instance) setStatus(s Status) {
	inst.mu.Lock()
	inst.status = s
	inst.mu.Unlock()
	inst.bus.statusChanged(inst.cfg.ID, s)
}

// Status returns the readiness snapshot described by SPEC_FULL.md §12.
func (inst *Instance) Status() BridgeStatus {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	info := BridgeStatus{
		ID:        inst.cfg.ID,
		Status:    inst.status,
		LastError: inst.lastErr,
		Tools:     inst.tools,
	}
	if inst.ln != nil {
		info.Port = miniserver.Port(inst.ln)
	}
	if inst.handle != nil {
		info.PID = inst.handle.PID()
	}
	if inst.sess != nil {
		info.ActiveClients = inst.sess.ActiveClients()
	}
	return info
}

func (inst *Instance) pumpStdout(handle *procsup.Handle) {
	err := lineframe.Pump(handle.Stdout, func(line string) {
		inst.rt.Egress(line)
	}, func(raw string) {
		inst.bus.log(inst.cfg.ID, "stdout", "dropped invalid utf8 line: "+raw)
	})
	if err != nil {
		inst.bus.log(inst.cfg.ID, "stdout", err.Error())
	}
}

func (inst *Instance) pumpStderr(handle *procsup.Handle) {
	_ = lineframe.Pump(handle.Stderr, func(line string) {
		inst.bus.log(inst.cfg.ID, "stderr", line)
	}, nil)
}

func (inst *Instance) watchExit(handle *procsup.Handle) {
	res := <-handle.Exit()
	inst.mu.Lock()
	stopped := inst.stopped
	srv := inst.srv
	if res.Err != nil {
		inst.lastErr = fmt.Errorf("%w: %v", ErrChildExited, res.Err)
	}
	inst.mu.Unlock()
	if stopped != nil {
		close(stopped)
	}
	if srv != nil {
		srv.Stop()
	}
	inst.bus.log(inst.cfg.ID, "process", fmt.Sprintf("child exited with status %d", res.Code))
	inst.setStatus(StatusStopped)
}

func (inst *Instance) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(session.GraceUninitialized)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted := inst.sess.Sweep(time.Now())
			if len(evicted) > 0 {
				inst.bus.activeClientsChanged(inst.cfg.ID, inst.sess.ActiveClients())
			}
		}
	}
}

func (inst *Instance) runDiscovery() {
	time.Sleep(discoveryDelay)
	ctx, cancel := context.WithTimeout(context.Background(), discovery.ValidateTimeout)
	defer cancel()
	tools, err := discovery.Run(ctx, inst.rt, inst.rt, inst.self)
	if err != nil {
		inst.bus.log(inst.cfg.ID, "discovery", err.Error())
		return
	}
	inst.mu.Lock()
	inst.tools = tools
	inst.mu.Unlock()
	inst.bus.toolsChanged(inst.cfg.ID, tools)
}

// handleRequest is the miniserver.Handler: it applies the Transport
// Classifier and then does whatever that decision calls for.
func (inst *Instance) handleRequest(conn *miniserver.Connection, req classifier.Request) {
	if inst.cfg.Token != "" && !inst.authorized(req) {
		_ = conn.WriteShort(401, "application/json", []byte(`{"error":"unauthorized"}`))
		return
	}

	conn.SetCloseHook(func() {
		inst.rt.DropConnection(conn.ID())
		if len(inst.sess.Sweep(time.Now())) > 0 {
			inst.bus.activeClientsChanged(inst.cfg.ID, inst.sess.ActiveClients())
		}
	})

	decision := classifier.Classify(req)
	switch decision.Action {
	case classifier.ActionPreflight:
		_ = conn.WritePreflight()

	case classifier.ActionUpgradeSSE, classifier.ActionUpgradeNDJSON:
		sid := decision.SessionID
		if sid == "" {
			sid = session.Mint()
		}
		sse := decision.Action == classifier.ActionUpgradeSSE
		inst.bindStream(conn, sid, sse)
		if err := conn.UpgradeStream(sse, sid); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
			return
		}
		if sse {
			inst.writeEndpointEvent(conn, sid)
		}
		inst.bus.activeClientsChanged(inst.cfg.ID, inst.sess.ActiveClients())
		inst.observeClient(sid, req)

	case classifier.ActionSessionMessage:
		inst.sess.Touch(decision.SessionID)
		inst.observeClient(decision.SessionID, req)
		if err := inst.rt.Ingress(req.Body, conn, decision.SessionID); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
		}
		_ = conn.WriteShort(202, "application/json", nil)

	case classifier.ActionStreamable:
		sid := session.Mint()
		inst.bindStream(conn, sid, true)
		if err := conn.UpgradeStream(true, sid); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
			return
		}
		inst.bus.activeClientsChanged(inst.cfg.ID, inst.sess.ActiveClients())
		inst.observeClient(sid, req)
		if err := inst.rt.Ingress(req.Body, conn, sid); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
		}

	case classifier.ActionSync:
		conn.MarkAwaitingSync()
		if err := inst.rt.Ingress(req.Body, conn, ""); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
		}

	case classifier.ActionNotification:
		if err := inst.rt.Ingress(req.Body, conn, ""); err != nil {
			inst.bus.log(inst.cfg.ID, "server", err.Error())
		}
		_ = conn.WriteShort(202, "application/json", nil)

	default:
		_ = conn.WriteShort(404, "application/json", []byte(`{"error":"not found"}`))
	}
}

// bindStream records sid as bound to conn in the session registry and
// arranges for the binding to be torn down again when conn closes, so a
// dropped SSE/NDJSON stream doesn't leave IsLive() stuck true forever.
func (inst *Instance) bindStream(conn *miniserver.Connection, sid string, sse bool) {
	format := "ndjson"
	if sse {
		format = "sse"
	}
	inst.sess.BindConnection(sid, conn.ID(), format)
	conn.SetCloseHook(func() {
		inst.rt.DropConnection(conn.ID())
		inst.sess.Unbind(sid, conn.ID())
		inst.sess.Sweep(time.Now())
		inst.bus.activeClientsChanged(inst.cfg.ID, inst.sess.ActiveClients())
	})
}

// writeEndpointEvent emits the mandatory first SSE frame a classic GET
// upgrade must send: the absolute URL a client posts subsequent
// messages to for this session (spec.md §6).
func (inst *Instance) writeEndpointEvent(conn *miniserver.Connection, sid string) {
	port := 0
	inst.mu.Lock()
	if inst.ln != nil {
		port = miniserver.Port(inst.ln)
	}
	inst.mu.Unlock()
	url := fmt.Sprintf("http://%s:%d/message?sessionId=%s", inst.cfg.BindHost(), port, sid)
	if err := conn.WriteChunk([]byte("event: endpoint\ndata: " + url + "\n\n")); err != nil {
		inst.bus.log(inst.cfg.ID, "server", err.Error())
	}
}

func (inst *Instance) observeClient(sessionID string, req classifier.Request) {
	if ua := req.Header.Get("User-Agent"); ua != "" {
		inst.sess.ObserveUserAgent(sessionID, ua)
	}
}

func (inst *Instance) authorized(req classifier.Request) bool {
	auth := req.Header.Get("Authorization")
	return auth == "Bearer "+inst.cfg.Token
}
