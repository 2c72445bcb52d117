package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/AlickH/MCProxy/internal/jsonrpcid"
	"github.com/AlickH/MCProxy/internal/lineframe"
	"github.com/AlickH/MCProxy/internal/procsup"
)

// ValidateTimeout is the hard wall-clock limit spec.md §4.8/§5 gives the
// standalone validate path.
const ValidateTimeout = 5 * time.Second

// soloShadower is a minimal stand-in for the full Router used by a
// running Instance: Validate has no network clients, so it only ever
// needs the discovery handshake's own two reserved-id waiters.
type soloShadower struct {
	mu      sync.Mutex
	waiters map[jsonrpcid.ID]chan string
}

func newSoloShadower() *soloShadower {
	return &soloShadower{waiters: make(map[jsonrpcid.ID]chan string)}
}

func (s *soloShadower) ShadowID(id jsonrpcid.ID) <-chan string {
	ch := make(chan string, 1)
	s.mu.Lock()
	s.waiters[id] = ch
	s.mu.Unlock()
	return ch
}

func (s *soloShadower) UnshadowID(id jsonrpcid.ID) {
	s.mu.Lock()
	delete(s.waiters, id)
	s.mu.Unlock()
}

func (s *soloShadower) deliver(line string) {
	id, _, ok := jsonrpcid.ExtractFromMessage([]byte(line))
	if !ok || !id.Valid() {
		return
	}
	s.mu.Lock()
	ch, found := s.waiters[id]
	if found {
		delete(s.waiters, id)
	}
	s.mu.Unlock()
	if found {
		ch <- line
		close(ch)
	}
}

type soloWriter struct {
	handle *procsup.Handle
}

func (w soloWriter) WriteRaw(body []byte) error {
	if !hasTrailingNewline(body) {
		body = append(append([]byte{}, body...), '\n')
	}
	_, err := w.handle.Stdin.Write(body)
	return err
}

func hasTrailingNewline(b []byte) bool {
	return len(b) > 0 && b[len(b)-1] == '\n'
}

// Validate spawns a child outside any Orchestrator, performs the
// initialize/tools-list handshake against it with a 5-second hard
// timeout, and terminates the child before returning. It returns the
// flattened tool list or an error; on timeout the child is killed and
// ErrValidateTimeout is returned.
func Validate(ctx context.Context, spec procsup.Spec, bridgeName string) ([]bridgecfg.Tool, error) {
	handle, err := procsup.Spawn(spec)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = handle.Kill()
	}()

	shadow := newSoloShadower()
	go func() {
		_ = lineframe.Pump(handle.Stdout, shadow.deliver, nil)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, ValidateTimeout)
	defer cancel()

	tools, err := Run(timeoutCtx, soloWriter{handle: handle}, shadow, bridgeName)
	if err != nil {
		if err == ErrHandshakeTimeout {
			return nil, ErrValidateTimeout
		}
		return nil, err
	}
	return tools, nil
}
