package router

import (
	"bytes"
	"testing"

	"github.com/AlickH/MCProxy/internal/jsonrpcid"
	"github.com/AlickH/MCProxy/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id  string
	got []string
}

func (f *fakeConn) ID() string { return f.id }
func (f *fakeConn) Dispatch(line string) error {
	f.got = append(f.got, line)
	return nil
}

type fakeLookup struct {
	conns map[string]ConnSink
}

func (l *fakeLookup) Lookup(id string) (ConnSink, bool) {
	c, ok := l.conns[id]
	return c, ok
}

type fakeBroadcaster struct {
	got []string
}

func (b *fakeBroadcaster) Broadcast(line string) {
	b.got = append(b.got, line)
}

func TestIngressForwardsToStdinWithNewline(t *testing.T) {
	var buf bytes.Buffer
	sessions := session.New()
	r := New(&buf, sessions, &fakeLookup{conns: map[string]ConnSink{}}, &fakeBroadcaster{})

	conn := &fakeConn{id: "c1"}
	err := r.Ingress([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), conn, "")
	require.NoError(t, err)
	assert.Equal(t, "{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n", buf.String())
}

func TestEgressDispatchesToPendingConnection(t *testing.T) {
	var buf bytes.Buffer
	sessions := session.New()
	bc := &fakeBroadcaster{}
	r := New(&buf, sessions, &fakeLookup{conns: map[string]ConnSink{}}, bc)

	conn := &fakeConn{id: "c1"}
	require.NoError(t, r.Ingress([]byte(`{"jsonrpc":"2.0","id":"x","method":"ping"}`), conn, ""))

	r.Egress(`{"jsonrpc":"2.0","id":"x","result":{}}`)
	require.Len(t, conn.got, 1)
	assert.Empty(t, bc.got)
}

func TestEgressBroadcastsNotification(t *testing.T) {
	var buf bytes.Buffer
	sessions := session.New()
	bc := &fakeBroadcaster{}
	r := New(&buf, sessions, &fakeLookup{conns: map[string]ConnSink{}}, bc)

	r.Egress(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)
	assert.Len(t, bc.got, 1)
}

func TestEgressFallsBackToSessionConnection(t *testing.T) {
	var buf bytes.Buffer
	sessions := session.New()
	live := &fakeConn{id: "sse1"}
	lookup := &fakeLookup{conns: map[string]ConnSink{"sse1": live}}
	bc := &fakeBroadcaster{}
	r := New(&buf, sessions, lookup, bc)

	sessions.BindConnection("s1", "sse1", "SSE")
	// a session message's originating connection is ephemeral and closes
	// right after the 202; only id_to_session should be recorded for it.
	require.NoError(t, r.Ingress([]byte(`{"jsonrpc":"2.0","id":7,"method":"tools/list"}`), nil, "s1"))

	r.Egress(`{"jsonrpc":"2.0","id":7,"result":{"tools":[]}}`)
	require.Len(t, live.got, 1)
}

func TestShadowedIDBypassesClientMapping(t *testing.T) {
	var buf bytes.Buffer
	sessions := session.New()
	bc := &fakeBroadcaster{}
	r := New(&buf, sessions, &fakeLookup{conns: map[string]ConnSink{}}, bc)

	oneID := jsonrpcid.FromInt(1)
	ch := r.ShadowID(oneID)

	conn := &fakeConn{id: "c1"}
	require.NoError(t, r.Ingress([]byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`), conn, ""))

	r.Egress(`{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05"}}`)
	select {
	case got := <-ch:
		assert.Contains(t, got, "protocolVersion")
	default:
		t.Fatal("expected shadow channel to receive the response")
	}
	assert.Empty(t, conn.got)
	assert.Empty(t, bc.got)
}
