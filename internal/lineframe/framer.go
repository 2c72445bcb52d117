package lineframe

import (
	"bytes"
	"io"
	"unicode/utf8"
)

const readChunk = 32 * 1024

// Framer accumulates bytes and yields complete lines split on '\n', with a
// trailing '\r' stripped. It has no per-line size cap: a child process is
// trusted not to pathologically withhold a newline forever.
type Framer struct {
	buf []byte
}

// New returns an empty Framer.
func New() *Framer {
	return &Framer{}
}

// Feed appends chunk to the internal buffer and returns every complete
// line it can now extract. Invalid UTF-8 lines are dropped; Feed
// reports them via the returned dropped slice so the caller can log a
// warning without this package taking a logging dependency.
func (f *Framer) Feed(chunk []byte) (lines []string, dropped []string) {
	f.buf = append(f.buf, chunk...)
	for {
		idx := bytes.IndexByte(f.buf, '\n')
		if idx < 0 {
			break
		}
		raw := f.buf[:idx]
		f.buf = f.buf[idx+1:]
		raw = bytes.TrimRight(raw, "\r")
		if len(raw) == 0 {
			continue
		}
		if !utf8.Valid(raw) {
			dropped = append(dropped, string(raw))
			continue
		}
		lines = append(lines, string(raw))
	}
	return lines, dropped
}

// Pending returns whatever partial line is currently buffered, waiting for
// its terminating newline.
func (f *Framer) Pending() string {
	return string(bytes.TrimRight(f.buf, "\r"))
}

// Pump reads from r until EOF or error, calling emit for every complete
// line and warn for every line dropped as invalid UTF-8. It returns the
// error that ended the read loop; io.EOF is not considered an error and is
// returned as nil.
func Pump(r io.Reader, emit func(line string), warn func(raw string)) error {
	f := New()
	chunk := make([]byte, readChunk)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			lines, dropped := f.Feed(chunk[:n])
			for _, l := range lines {
				emit(l)
			}
			if warn != nil {
				for _, d := range dropped {
					warn(d)
				}
			}
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}
