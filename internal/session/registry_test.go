package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNameStickiness(t *testing.T) {
	r := New()
	r.ObserveClientInfoName("s1", "ChatWise")
	r.ObserveUserAgent("s1", "curl/8.0")
	s, ok := r.Get("s1")
	assert.True(t, ok)
	assert.Equal(t, "Chatwise", s.Name)
}

func TestUserAgentAppliesBeforeClientInfoSeen(t *testing.T) {
	r := New()
	r.ObserveUserAgent("s1", "Mozilla/5.0 Chrome/100")
	s, _ := r.Get("s1")
	assert.Equal(t, "Chrome", s.Name)
}

func TestSweepEvictsPastThreshold(t *testing.T) {
	r := New()
	r.BindConnection("s1", "c1", "SSE")
	r.Unbind("s1", "c1")
	s, _ := r.Get("s1")
	s.LastSeen = time.Now().Add(-(EvictUninitialized + time.Second))

	evicted := r.Sweep(time.Now())
	assert.Equal(t, []string{"s1"}, evicted)
	_, ok := r.Get("s1")
	assert.False(t, ok)
}

func TestSweepKeepsInitializedLonger(t *testing.T) {
	r := New()
	r.BindConnection("s1", "c1", "SSE")
	r.SetInitialized("s1")
	r.Unbind("s1", "c1")
	s, _ := r.Get("s1")
	s.LastSeen = time.Now().Add(-(EvictUninitialized + time.Second))

	evicted := r.Sweep(time.Now())
	assert.Empty(t, evicted)
	_, ok := r.Get("s1")
	assert.True(t, ok)
}

func TestCleanNameBrands(t *testing.T) {
	assert.Equal(t, "Chatwise", CleanName("ChatWise/1.2"))
	assert.Equal(t, "Claude", CleanName("claude-desktop/0.9"))
	assert.Equal(t, "Firefox", CleanName("Mozilla/5.0 (X11) Firefox/120.0"))
	assert.Equal(t, "Example", CleanName("sub.domain.example"))
}
