package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/AlickH/MCProxy/internal/jsonrpcid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	sent [][]byte
}

func (w *fakeWriter) WriteRaw(body []byte) error {
	w.sent = append(w.sent, body)
	return nil
}

type fakeShadower struct {
	waiters map[jsonrpcid.ID]chan string
}

func newFakeShadower() *fakeShadower {
	return &fakeShadower{waiters: make(map[jsonrpcid.ID]chan string)}
}

func (f *fakeShadower) ShadowID(id jsonrpcid.ID) <-chan string {
	ch := make(chan string, 1)
	f.waiters[id] = ch
	return ch
}

func (f *fakeShadower) UnshadowID(id jsonrpcid.ID) {
	delete(f.waiters, id)
}

func TestRunHappyPath(t *testing.T) {
	w := &fakeWriter{}
	sh := newFakeShadower()

	go func() {
		<-time.After(5 * time.Millisecond)
		sh.waiters[ReservedInitializeID] <- `{"jsonrpc":"2.0","id":1,"result":{"protocolVersion":"2024-11-05"}}`
		<-time.After(5 * time.Millisecond)
		sh.waiters[ReservedToolsListID] <- `{"jsonrpc":"2.0","id":2,"result":{"tools":[{"name":"t","inputSchema":{"properties":{"q":{"type":"string"}}}}]}}`
	}()

	tools, err := Run(context.Background(), w, sh, "mcproxy")
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "t", tools[0].Name)
	assert.Equal(t, "string", tools[0].Params["q"])
	assert.Len(t, w.sent, 2)
}

func TestRunTimesOut(t *testing.T) {
	w := &fakeWriter{}
	sh := newFakeShadower()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, w, sh, "mcproxy")
	assert.ErrorIs(t, err, ErrHandshakeTimeout)
}

func TestRunRejectsBadInitializeResponse(t *testing.T) {
	w := &fakeWriter{}
	sh := newFakeShadower()
	go func() {
		sh.waiters[ReservedInitializeID] <- `{"jsonrpc":"2.0","id":1,"result":{}}`
	}()
	_, err := Run(context.Background(), w, sh, "mcproxy")
	assert.ErrorIs(t, err, ErrBadInitializeResponse)
}
