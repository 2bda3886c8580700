package api

import (
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestRateLimiterAllowDeny(t *testing.T) {
	rl := newRateLimiter(time.Now)
	for i := 0; i < 3; i++ {
		if !rl.Allow("k", 3) {
			t.Fatalf("request %d denied", i+1)
		}
	}
	if rl.Allow("k", 3) {
		t.Fatal("4th request should be denied")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	rl := newRateLimiter(clk.now)
	rl.Allow("k", 1)
	if rl.Allow("k", 1) {
		t.Fatal("expected deny inside window")
	}
	clk.t = clk.t.Add(time.Minute)
	if !rl.Allow("k", 1) {
		t.Fatal("expected allow after window reset")
	}
}

func TestRateLimiterKeyIsolation(t *testing.T) {
	rl := newRateLimiter(time.Now)
	rl.Allow("a", 1)
	if !rl.Allow("b", 1) {
		t.Fatal("key b should not share a's bucket")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	rl := newRateLimiter(clk.now)
	rl.Allow("old", 5)
	clk.t = clk.t.Add(3 * time.Minute)
	rl.Allow("new", 5)
	rl.sweep()
	if _, ok := rl.windows["old"]; ok {
		t.Error("stale bucket not removed")
	}
	if _, ok := rl.windows["new"]; !ok {
		t.Error("fresh bucket removed")
	}
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	rl := NewRateLimiter()
	rl.Stop()
	rl.Stop()
}

func TestLimitForClass(t *testing.T) {
	cfg := Config{RateLimitPush: 1, RateLimitPull: 2, RateLimitOther: 3}
	tests := map[rateClass]int{classPush: 1, classPull: 2, classOther: 3, "unknown": 3}
	for class, want := range tests {
		if got := cfg.limitFor(class); got != want {
			t.Errorf("limitFor(%s) = %d, want %d", class, got, want)
		}
	}
}

func TestRateLimiterDeniedRequestsDoNotCount(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	rl := newRateLimiter(clk.now)
	rl.Allow("k", 1)
	for i := 0; i < 5; i++ {
		rl.Allow("k", 1)
	}
	if n := rl.windows["k"].n; n != 1 {
		t.Errorf("window count = %d, want 1", n)
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Errorf("remote addr ip = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.7" {
		t.Errorf("forwarded ip = %q", got)
	}
}

func TestParseDaysDuration(t *testing.T) {
	tests := map[string]time.Duration{
		"30d":  30 * 24 * time.Hour,
		"12h":  12 * time.Hour,
		"junk": 0,
		"0d":   0,
	}
	for in, want := range tests {
		if got := parseDaysDuration(in); got != want {
			t.Errorf("parseDaysDuration(%q) = %v, want %v", in, got, want)
		}
	}
}
