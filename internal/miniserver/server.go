package miniserver

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/AlickH/MCProxy/internal/classifier"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentConnections bounds the shared work pool that services
// accepted connections, per spec.md §4.3's "connections are handled
// independently on a shared work pool".
const maxConcurrentConnections = 256

// Handler is invoked once per fully-buffered HTTP message. It is
// responsible for classifying req and writing whatever response shape
// that classification calls for onto conn.
type Handler func(conn *Connection, req classifier.Request)

// Server is the HTTP/1.1 Mini-Server: it owns a listener and a bounded
// pool of connection-handling goroutines.
type Server struct {
	handler Handler

	mu     sync.Mutex
	ln     net.Listener
	conns  map[string]*Connection
	nextID uint64

	group  *errgroup.Group
	cancel context.CancelFunc
}

// New returns a Server that dispatches fully-parsed requests to handler.
func New(handler Handler) *Server {
	return &Server{handler: handler, conns: make(map[string]*Connection)}
}

// Listen binds host:port. Port 0 asks the OS for an ephemeral port; the
// bound port is read back from the listener, matching spec.md §4.7's
// atomic bind-and-report (SPEC_FULL.md §13.2): there is no separate
// probe-then-rebind step to race against.
func Listen(host string, port int) (net.Listener, error) {
	return net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
}

// Port returns the listener's bound port, valid only while Serve is
// running against it.
func Port(ln net.Listener) int {
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		return tcpAddr.Port
	}
	return 0
}

// Serve accepts connections on ln until it is closed or Stop is called.
// It returns nil on a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	s.mu.Lock()
	s.ln = ln
	s.group = group
	s.cancel = cancel
	s.mu.Unlock()

	sem := make(chan struct{}, maxConcurrentConnections)
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-gctx.Done():
				return nil
			default:
			}
			return err
		}

		select {
		case sem <- struct{}{}:
		case <-gctx.Done():
			_ = nc.Close()
			return nil
		}

		id := s.newConnID()
		conn := newConnection(id, nc)
		s.track(conn)

		group.Go(func() error {
			defer func() { <-sem }()
			defer s.untrack(conn)
			defer conn.Close()
			s.serveConn(gctx, conn)
			return nil
		})
	}
}

// Stop closes the listener (refusing new connections) and every tracked
// connection, then waits for their handler goroutines to return.
func (s *Server) Stop() {
	s.mu.Lock()
	ln := s.ln
	cancel := s.cancel
	group := s.group
	conns := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		_ = ln.Close()
	}
	for _, c := range conns {
		_ = c.Close()
	}
	if group != nil {
		_ = group.Wait()
	}
}

// Lookup returns the tracked connection for id, if any. Callers adapt this
// to router.ConnLookup since *Connection already satisfies router.ConnSink
// structurally without this package importing the router package.
func (s *Server) Lookup(id string) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conns[id]
	return c, ok
}

// Connections returns a snapshot of every currently tracked connection,
// used by the root package's broadcast path to fan a notification out to
// every live streaming client.
func (s *Server) Connections() []*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Connection, 0, len(s.conns))
	for _, c := range s.conns {
		out = append(out, c)
	}
	return out
}

func (s *Server) track(c *Connection) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) untrack(c *Connection) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
}

var connCounter uint64

func (s *Server) newConnID() string {
	n := atomic.AddUint64(&connCounter, 1)
	return "c" + strconv.FormatUint(n, 10)
}

func (s *Server) serveConn(ctx context.Context, conn *Connection) {
	readBuf := make([]byte, 64*1024)
	buf := make([]byte, 0, 4096)

	for {
		if conn.isStreaming() {
			// No further HTTP requests are expected on an upgraded
			// connection; block on reads only to detect the peer closing.
			if _, err := conn.nc.Read(readBuf); err != nil {
				return
			}
			continue
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.nc.Read(readBuf)
		if n > 0 {
			buf = append(buf, readBuf[:n]...)
			if len(buf) > maxBufferBytes {
				return
			}
			if looksLikeTLS(buf) {
				return
			}

			for {
				headerEnd, sepLen := findHeaderEnd(buf)
				if headerEnd < 0 {
					break
				}
				head, perr := parseHead(buf[:headerEnd])
				if perr != nil {
					return
				}
				total := headerEnd + sepLen + head.ContentLength
				if len(buf) < total {
					break
				}
				body := append([]byte{}, buf[headerEnd+sepLen:total]...)
				buf = buf[total:]

				s.handler(conn, classifier.Request{
					Method: head.Method,
					Path:   head.Path,
					Query:  head.Query,
					Header: head.Header,
					Body:   body,
				})

				if conn.isStreaming() || conn.State() == StateClosed {
					break
				}
			}
		}
		if err != nil {
			return
		}
	}
}
