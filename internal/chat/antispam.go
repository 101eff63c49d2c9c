package chat

import (
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Gate is a fixed-window message counter per user.
// Every attempt counts, including the ones it rejects.
type Gate struct {
	mu       sync.Mutex
	max      int
	cooldown time.Duration
	windows  map[string]*window
}

// NewGate creates a gate allowing max messages per cooldown window
func NewGate(max int, cooldownMs int64) *Gate {
	g := &Gate{windows: make(map[string]*window)}
	g.Configure(max, cooldownMs)
	return g
}

// Configure replaces the thresholds
func (g *Gate) Configure(max int, cooldownMs int64) {
	if max <= 0 {
		max = 5
	}
	if cooldownMs <= 0 {
		cooldownMs = 2500
	}
	g.mu.Lock()
	g.max = max
	g.cooldown = time.Duration(cooldownMs) * time.Millisecond
	g.mu.Unlock()
}

// Limits returns the current thresholds
func (g *Gate) Limits() (int, time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.max, g.cooldown
}

// Allow records an attempt by user at now and reports whether it may be delivered
func (g *Gate) Allow(user string, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[user]
	if !ok {
		w = &window{start: now}
		g.windows[user] = w
	}
	if now.Sub(w.start) > g.cooldown {
		w.start = now
		w.count = 0
	}
	w.count++
	return w.count <= g.max
}

// Forget drops a user's window
func (g *Gate) Forget(user string) {
	g.mu.Lock()
	delete(g.windows, user)
	g.mu.Unlock()
}
