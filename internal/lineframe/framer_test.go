package lineframe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeedSplitsCompleteLines(t *testing.T) {
	f := New()
	lines, dropped := f.Feed([]byte("L1\nL2\n"))
	assert.Equal(t, []string{"L1", "L2"}, lines)
	assert.Empty(t, dropped)
	assert.Empty(t, f.Pending())
}

func TestFeedRetainsPartialTail(t *testing.T) {
	f := New()
	lines, _ := f.Feed([]byte("L1\nL2"))
	assert.Equal(t, []string{"L1"}, lines)
	assert.Equal(t, "L2", f.Pending())
}

func TestFeedAcrossArbitraryChunkBoundaries(t *testing.T) {
	whole := "alpha\nbeta\ngamma\n"
	for split := 0; split <= len(whole); split++ {
		f := New()
		l1, _ := f.Feed([]byte(whole[:split]))
		l2, _ := f.Feed([]byte(whole[split:]))
		got := append(l1, l2...)
		assert.Equal(t, []string{"alpha", "beta", "gamma"}, got, "split at %d", split)
	}
}

func TestFeedStripsTrailingCR(t *testing.T) {
	f := New()
	lines, _ := f.Feed([]byte("hi\r\n"))
	assert.Equal(t, []string{"hi"}, lines)
}

func TestFeedSkipsEmptyLines(t *testing.T) {
	f := New()
	lines, _ := f.Feed([]byte("\n\nhi\n"))
	assert.Equal(t, []string{"hi"}, lines)
}

func TestFeedDropsInvalidUTF8(t *testing.T) {
	f := New()
	lines, dropped := f.Feed([]byte{0xff, 0xfe, '\n', 'o', 'k', '\n'})
	assert.Equal(t, []string{"ok"}, lines)
	assert.Len(t, dropped, 1)
}

func TestPump(t *testing.T) {
	r := strings.NewReader("one\ntwo\nthree")
	var got []string
	err := Pump(r, func(l string) { got = append(got, l) }, nil)
	assert.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, got)
}
