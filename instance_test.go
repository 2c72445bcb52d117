package mcproxy

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AlickH/MCProxy/bridgecfg"
	"github.com/stretchr/testify/require"
)

// echoHTTPPost sends a raw HTTP/1.1 POST with body and returns the parsed
// status code and response body, once a full Content-Length body has
// arrived.
func echoHTTPPost(t *testing.T, addr, path, body string) (int, string) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	req := fmt.Sprintf("POST %s HTTP/1.1\r\nHost: x\r\nContent-Length: %d\r\n\r\n%s", path, len(body), body)
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(conn)

	statusLine, err := reader.ReadString('\n')
	require.NoError(t, err)
	parts := strings.Fields(statusLine)
	require.GreaterOrEqual(t, len(parts), 2)
	status, err := strconv.Atoi(parts[1])
	require.NoError(t, err)

	contentLength := 0
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break
		}
		if strings.HasPrefix(strings.ToLower(line), "content-length:") {
			n, _ := strconv.Atoi(strings.TrimSpace(line[len("content-length:"):]))
			contentLength = n
		}
	}

	respBody := make([]byte, contentLength)
	if contentLength > 0 {
		_, err = reader.Read(respBody)
		require.NoError(t, err)
	}
	return status, string(respBody)
}

func TestInstanceSyncRoundTrip(t *testing.T) {
	cfg := bridgecfg.ChildConfig{
		ID:      "echo",
		Command: "cat",
		Host:    "127.0.0.1",
		Port:    0,
		Tools:   []bridgecfg.Tool{{Name: "noop"}},
	}

	inst := newInstance(cfg, newHookBus(Hooks{}))
	require.NoError(t, inst.Start(context.Background()))
	defer inst.Stop()

	addr := inst.ln.Addr().String()

	status, body := echoHTTPPost(t, addr, "/", `{"jsonrpc":"2.0","id":7,"method":"ping"}`)
	require.Equal(t, 200, status)
	require.Contains(t, body, `"id":7`)
}

func TestInstanceNotificationAccepted(t *testing.T) {
	cfg := bridgecfg.ChildConfig{
		ID:      "echo2",
		Command: "cat",
		Host:    "127.0.0.1",
		Port:    0,
		Tools:   []bridgecfg.Tool{{Name: "noop"}},
	}

	inst := newInstance(cfg, newHookBus(Hooks{}))
	require.NoError(t, inst.Start(context.Background()))
	defer inst.Stop()

	addr := inst.ln.Addr().String()
	status, _ := echoHTTPPost(t, addr, "/", `{"jsonrpc":"2.0","method":"notify"}`)
	require.Equal(t, 202, status)
}

func TestInstanceSSEUpgradeSendsEndpointEventAndUnbindsOnClose(t *testing.T) {
	cfg := bridgecfg.ChildConfig{
		ID:      "echo-sse",
		Command: "cat",
		Host:    "127.0.0.1",
		Port:    0,
		Tools:   []bridgecfg.Tool{{Name: "noop"}},
	}

	inst := newInstance(cfg, newHookBus(Hooks{}))
	require.NoError(t, inst.Start(context.Background()))
	defer inst.Stop()

	addr := inst.ln.Addr().String()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)

	req := "GET /sse HTTP/1.1\r\nHost: x\r\nAccept: text/event-stream\r\n\r\n"
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reader := bufio.NewReader(conn)

	var collected []byte
	buf := make([]byte, 512)
	for i := 0; i < 20; i++ {
		n, rerr := reader.Read(buf)
		collected = append(collected, buf[:n]...)
		if strings.Contains(string(collected), "event: endpoint") {
			break
		}
		if rerr != nil {
			break
		}
	}
	require.Contains(t, string(collected), "event: endpoint")
	require.Contains(t, string(collected), "/message?sessionId=")

	clients := inst.sess.ActiveClients()
	require.Len(t, clients, 1)
	require.False(t, clients[0].Idle)

	conn.Close()
	require.Eventually(t, func() bool {
		clients := inst.sess.ActiveClients()
		return len(clients) == 1 && clients[0].Idle
	}, 2*time.Second, 10*time.Millisecond)
}

func TestOrchestratorStartStop(t *testing.T) {
	orch := NewOrchestrator(Hooks{})
	cfg := bridgecfg.ChildConfig{
		ID:      "orch-echo",
		Command: "cat",
		Host:    "127.0.0.1",
		Port:    0,
		Tools:   []bridgecfg.Tool{{Name: "noop"}},
	}

	inst, err := orch.Start(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, inst)

	_, err = orch.Start(context.Background(), cfg)
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, orch.Stop(cfg.ID))

	_, ok := orch.Get(cfg.ID)
	require.False(t, ok)
}
