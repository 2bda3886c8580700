package api

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateClass groups routes that share a per-key budget.
type rateClass string

const (
	classPush  rateClass = "push"
	classPull  rateClass = "pull"
	classOther rateClass = "other"
)

const rateWindow = time.Minute

// RateLimiter counts requests per key in fixed one-minute windows.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type window struct {
	start time.Time
	n     int
}

// NewRateLimiter returns a limiter that drops idle windows every few minutes
// until Stop.
func NewRateLimiter() *RateLimiter {
	rl := newRateLimiter(time.Now)
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-rl.stop:
				return
			case <-t.C:
				rl.sweep()
			}
		}
	}()
	return rl
}

func newRateLimiter(now func() time.Time) *RateLimiter {
	return &RateLimiter{windows: map[string]window{}, now: now, stop: make(chan struct{})}
}

// Stop ends the sweep loop. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow records one request for key and reports whether it fits in limit.
// Denied requests do not count toward the window.
func (rl *RateLimiter) Allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	w := rl.windows[key]
	if w.start.IsZero() || now.Sub(w.start) >= rateWindow {
		w = window{start: now}
	}
	if w.n >= limit {
		return false
	}
	w.n++
	rl.windows[key] = w
	return true
}

// sweep forgets windows that ended more than a window ago.
func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-2 * rateWindow)
	for k, w := range rl.windows {
		if w.start.Before(cutoff) {
			delete(rl.windows, k)
		}
	}
}

func (c Config) limitFor(class rateClass) int {
	switch class {
	case classPush:
		return c.RateLimitPush
	case classPull:
		return c.RateLimitPull
	default:
		return c.RateLimitOther
	}
}

// clientIP prefers the first X-Forwarded-For hop over the peer address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
