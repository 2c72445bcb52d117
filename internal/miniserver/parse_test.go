package miniserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeadExtractsMethodPathQuery(t *testing.T) {
	head, err := parseHead([]byte("POST /message?sessionId=s1 HTTP/1.1\r\nHost: x\r\nContent-Length: 3\r\nAccept: text/event-stream"))
	require.NoError(t, err)
	assert.Equal(t, "POST", head.Method)
	assert.Equal(t, "/message", head.Path)
	assert.Equal(t, "s1", head.Query.Get("sessionId"))
	assert.Equal(t, 3, head.ContentLength)
	assert.Equal(t, "text/event-stream", head.Header.Get("Accept"))
}

func TestFindHeaderEndAcrossArbitraryFragments(t *testing.T) {
	whole := []byte("POST /x HTTP/1.1\r\nContent-Length: 3\r\n\r\nabc")
	// Simulate feeding the bytes in ever finer splits and ensure the
	// reassembled (head, body) pair is identical regardless of boundary.
	for split := 1; split < len(whole); split++ {
		buf := append([]byte{}, whole[:split]...)
		buf = append(buf, whole[split:]...)
		idx, sep := findHeaderEnd(buf)
		require.GreaterOrEqual(t, idx, 0)
		head, err := parseHead(buf[:idx])
		require.NoError(t, err)
		body := buf[idx+sep : idx+sep+head.ContentLength]
		assert.Equal(t, "abc", string(body))
	}
}

func TestLooksLikeTLS(t *testing.T) {
	assert.True(t, looksLikeTLS([]byte{0x16, 0x03, 0x01, 0x00}))
	assert.False(t, looksLikeTLS([]byte("GET / HTTP/1.1")))
}
