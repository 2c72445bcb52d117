package classifier

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyDecisionTable(t *testing.T) {
	cases := []struct {
		name   string
		req    Request
		action Action
	}{
		{"options", Request{Method: "OPTIONS", Path: "/whatever"}, ActionPreflight},
		{"get sse", Request{Method: "GET", Path: "/sse", Header: http.Header{"Accept": {"text/event-stream"}}}, ActionUpgradeSSE},
		{"get ndjson", Request{Method: "GET", Path: "/events", Header: http.Header{}}, ActionUpgradeNDJSON},
		{"get notfound", Request{Method: "GET", Path: "/unknown", Header: http.Header{}}, ActionNotFound},
		{"post session", Request{Method: "POST", Path: "/message", Query: url.Values{"sessionId": {"s1"}}, Body: []byte(`{"id":1}`)}, ActionSessionMessage},
		{"post streamable", Request{Method: "POST", Path: "/", Header: http.Header{"Accept": {"text/event-stream"}}, Body: []byte(`{"id":1}`)}, ActionStreamable},
		{"post sync", Request{Method: "POST", Path: "/", Header: http.Header{}, Body: []byte(`{"jsonrpc":"2.0","id":"x","method":"ping"}`)}, ActionSync},
		{"post notification", Request{Method: "POST", Path: "/", Header: http.Header{}, Body: []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)}, ActionNotification},
		{"other method", Request{Method: "PUT", Path: "/"}, ActionNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if c.req.Query == nil {
				c.req.Query = url.Values{}
			}
			if c.req.Header == nil {
				c.req.Header = http.Header{}
			}
			got := Classify(c.req)
			assert.Equal(t, c.action, got.Action, "action")
		})
	}
}

func TestClassifySyncExtractsID(t *testing.T) {
	d := Classify(Request{
		Method: "POST", Path: "/",
		Query:  url.Values{},
		Header: http.Header{},
		Body:   []byte(`{"jsonrpc":"2.0","id":"x","method":"ping"}`),
	})
	assert.Equal(t, ActionSync, d.Action)
	assert.True(t, d.HasID)
	assert.Equal(t, "x", d.ID.Str)
}
