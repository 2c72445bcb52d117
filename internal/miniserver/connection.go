package miniserver

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// State is one of the tagged states a Connection can be in, per
// spec.md §9's recommendation to make transitions explicit rather than
// inferring them from scattered booleans.
type State int

const (
	StateAwaitingRequest State = iota
	StateSSEStream
	StateNDJSONStream
	StateAwaitingSyncResponse
	StateClosed
)

// KeepaliveInterval is how often a streaming connection receives a
// keepalive frame.
const KeepaliveInterval = 15 * time.Second

// Connection is one accepted TCP socket and its HTTP/1.1 framing state.
// It implements router.ConnSink via Dispatch.
type Connection struct {
	id       string
	peerAddr string
	nc       net.Conn

	mu      sync.Mutex
	state   State
	closed  bool
	onClose func()

	stopKeepalive chan struct{}
}

func newConnection(id string, nc net.Conn) *Connection {
	return &Connection{
		id:       id,
		peerAddr: nc.RemoteAddr().String(),
		nc:       nc,
		state:    StateAwaitingRequest,
	}
}

// ID returns the connection's identifier, which keys it in the server's
// connection table and in session bindings.
func (c *Connection) ID() string { return c.id }

// PeerAddr returns the remote address string, used for logging.
func (c *Connection) PeerAddr() string { return c.peerAddr }

// State returns the connection's current tagged state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) isStreaming() bool {
	s := c.State()
	return s == StateSSEStream || s == StateNDJSONStream
}

// WriteShort writes a complete, fixed-length HTTP response and marks the
// connection for closing once the write returns, per spec.md §4.3's
// "Short" response shape.
func (c *Connection) WriteShort(status int, contentType string, body []byte) error {
	c.mu.Lock()
	err := c.writeShortLocked(status, contentType, body)
	c.mu.Unlock()
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *Connection) writeShortLocked(status int, contentType string, body []byte) error {
	head := fmt.Sprintf("HTTP/1.1 %d %s\r\n", status, statusText(status))
	head += "Access-Control-Allow-Origin: *\r\n"
	if contentType != "" {
		head += "Content-Type: " + contentType + "\r\n"
	}
	head += "Content-Length: " + strconv.Itoa(len(body)) + "\r\n"
	head += "Connection: close\r\n\r\n"
	if _, err := c.nc.Write([]byte(head)); err != nil {
		return err
	}
	if len(body) > 0 {
		if _, err := c.nc.Write(body); err != nil {
			return err
		}
	}
	return nil
}

// WritePreflight writes the 204 CORS preflight response.
func (c *Connection) WritePreflight() error {
	c.mu.Lock()
	head := "HTTP/1.1 204 No Content\r\n" +
		"Access-Control-Allow-Origin: *\r\n" +
		"Access-Control-Allow-Methods: GET, POST, OPTIONS\r\n" +
		"Access-Control-Allow-Headers: *\r\n" +
		"Connection: close\r\n\r\n"
	_, err := c.nc.Write([]byte(head))
	c.mu.Unlock()
	if closeErr := c.Close(); err == nil {
		err = closeErr
	}
	return err
}

// UpgradeStream switches the connection into SSE or NDJSON streaming
// mode, writes the chunked-response header block, and starts the
// keepalive ticker. contentType is either "text/event-stream" or
// "application/x-ndjson".
func (c *Connection) UpgradeStream(sse bool, sessionID string) error {
	c.mu.Lock()
	contentType := "application/x-ndjson"
	if sse {
		contentType = "text/event-stream"
		c.state = StateSSEStream
	} else {
		c.state = StateNDJSONStream
	}
	head := "HTTP/1.1 200 OK\r\n" +
		"Transfer-Encoding: chunked\r\n" +
		"Connection: keep-alive\r\n" +
		"Cache-Control: no-cache\r\n" +
		"Content-Type: " + contentType + "\r\n" +
		"X-Mcp-Session-Id: " + sessionID + "\r\n" +
		"Access-Control-Allow-Origin: *\r\n" +
		"Access-Control-Expose-Headers: X-Mcp-Session-Id\r\n\r\n"
	_, err := c.nc.Write([]byte(head))
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.startKeepalive(sse)
	return nil
}

// WriteChunk writes payload as a single HTTP chunk.
func (c *Connection) WriteChunk(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeChunkLocked(payload)
}

func (c *Connection) writeChunkLocked(payload []byte) error {
	if c.closed {
		return fmt.Errorf("miniserver: connection %s is closed", c.id)
	}
	frame := fmt.Sprintf("%x\r\n", len(payload))
	if _, err := c.nc.Write([]byte(frame)); err != nil {
		return err
	}
	if _, err := c.nc.Write(payload); err != nil {
		return err
	}
	_, err := c.nc.Write([]byte("\r\n"))
	return err
}

// MarkAwaitingSync flips the connection into the "single sync response"
// state; the next Dispatch closes the socket after writing.
func (c *Connection) MarkAwaitingSync() {
	c.mu.Lock()
	c.state = StateAwaitingSyncResponse
	c.mu.Unlock()
}

// Dispatch implements router.ConnSink: it writes line in whatever shape
// this connection's state calls for.
func (c *Connection) Dispatch(line string) error {
	c.mu.Lock()
	state := c.state
	if state == StateAwaitingSyncResponse {
		err := c.writeShortLocked(200, "application/json", []byte(line))
		c.mu.Unlock()
		c.Close()
		return err
	}
	switch state {
	case StateSSEStream:
		err := c.writeChunkLocked([]byte("event: message\ndata: " + line + "\n\n"))
		c.mu.Unlock()
		return err
	case StateNDJSONStream:
		err := c.writeChunkLocked([]byte(line + "\n"))
		c.mu.Unlock()
		return err
	default:
		c.mu.Unlock()
		return fmt.Errorf("miniserver: connection %s has no response channel open", c.id)
	}
}

func (c *Connection) startKeepalive(sse bool) {
	c.mu.Lock()
	c.stopKeepalive = make(chan struct{})
	stop := c.stopKeepalive
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(KeepaliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				var payload []byte
				if sse {
					payload = []byte(": keepalive\n\n")
				} else {
					payload = []byte("\n")
				}
				if err := c.WriteChunk(payload); err != nil {
					return
				}
			}
		}
	}()
}

// SetCloseHook registers fn to run exactly once when the connection
// closes, letting callers outside this package (which must not import
// it, to avoid a cycle) react to the socket going away — unbinding a
// session or dropping a pending id mapping.
func (c *Connection) SetCloseHook(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// Close marks the connection closed and closes the underlying socket. It
// is safe to call more than once; the close hook, if any, only runs on
// the call that actually closes it.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.state = StateClosed
	stop := c.stopKeepalive
	onClose := c.onClose
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
	err := c.nc.Close()
	if onClose != nil {
		onClose()
	}
	return err
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 202:
		return "Accepted"
	case 204:
		return "No Content"
	case 401:
		return "Unauthorized"
	case 404:
		return "Not Found"
	default:
		return ""
	}
}
