package miniserver

import (
	"bytes"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrGarbage marks bytes that cannot be parsed as an HTTP/1.1 request
// head: a TLS ClientHello, a buffer that overflowed the cap, or a request
// line / header block that isn't valid UTF-8.
var ErrGarbage = errors.New("miniserver: protocol garbage")

// maxBufferBytes is the hard cap on a connection's unparsed read buffer.
const maxBufferBytes = 10 * 1024 * 1024

// looksLikeTLS reports whether buf opens with a TLS ClientHello record
// header: handshake type 0x16, major version 0x03.
func looksLikeTLS(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0x16 && buf[1] == 0x03
}

// requestHead is everything the Mini-Server extracts from the header
// block of one HTTP message.
type requestHead struct {
	Method        string
	Path          string
	Query         url.Values
	Header        http.Header
	ContentLength int
}

// findHeaderEnd locates the first CRLFCRLF or LFLF terminator in buf,
// returning the index of its first byte and its length (4 or 2), or -1 if
// no terminator has arrived yet.
func findHeaderEnd(buf []byte) (idx, sepLen int) {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i, 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i, 2
	}
	return -1, 0
}

// parseHead parses the request line and headers out of head (the bytes up
// to, but not including, the header terminator).
func parseHead(head []byte) (requestHead, error) {
	if !isValidHeaderText(head) {
		return requestHead{}, ErrGarbage
	}
	lines := splitLines(head)
	if len(lines) == 0 {
		return requestHead{}, ErrGarbage
	}

	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return requestHead{}, ErrGarbage
	}
	method := parts[0]
	rawTarget := parts[1]

	rawPath, rawQuery, _ := strings.Cut(rawTarget, "?")
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		query = url.Values{}
	}

	header := http.Header{}
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		header.Add(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	contentLength := 0
	if cl := header.Get("Content-Length"); cl != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(cl)); err == nil && n >= 0 {
			contentLength = n
		}
	}

	return requestHead{
		Method:        method,
		Path:          rawPath,
		Query:         query,
		Header:        header,
		ContentLength: contentLength,
	}, nil
}

func splitLines(b []byte) []string {
	s := strings.ReplaceAll(string(b), "\r\n", "\n")
	return strings.Split(s, "\n")
}

func isValidHeaderText(b []byte) bool {
	if !utf8.Valid(b) {
		return false
	}
	for _, c := range b {
		if c == 0 {
			return false
		}
	}
	return true
}
