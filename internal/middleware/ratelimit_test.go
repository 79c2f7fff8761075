package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable clock for the limiter.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, limit int, window time.Duration) (*RateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter(limit, window)
	rl.now = clock.now
	t.Cleanup(rl.Stop)
	return rl, clock
}

func TestRateLimiterAllow(t *testing.T) {
	rl, _ := newTestLimiter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := rl.allow("a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := rl.allow("a"); ok {
		t.Error("4th request should be rate-limited")
	}
	if ok, _ := rl.allow("b"); !ok {
		t.Error("different key should be allowed")
	}
}

func TestRateLimiterWindowSlides(t *testing.T) {
	rl, clock := newTestLimiter(t, 2, time.Minute)

	rl.allow("a")
	clock.advance(20 * time.Second)
	rl.allow("a")

	ok, retry := rl.allow("a")
	if ok {
		t.Fatal("should be rate-limited")
	}
	if retry != 40*time.Second {
		t.Errorf("retry: got %v, want 40s", retry)
	}

	clock.advance(41 * time.Second)
	if ok, _ := rl.allow("a"); !ok {
		t.Error("oldest request left the window, should be allowed")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter(t, 1, time.Minute)
	rl.allow("a")
	clock.advance(2 * time.Minute)
	rl.cleanup()

	rl.mu.RLock()
	defer rl.mu.RUnlock()
	if len(rl.clients) != 0 {
		t.Errorf("expected idle client removed, have %d", len(rl.clients))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 1, time.Minute)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := func(remote, operator string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/themes/x/draft", nil)
		r.RemoteAddr = remote
		if operator != "" {
			r = r.WithContext(context.WithValue(r.Context(), operatorKey, operator))
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, r)
		return rr
	}

	if rr := req("10.0.0.1:1234", ""); rr.Code != http.StatusOK {
		t.Fatalf("first: got %d", rr.Code)
	}
	rr := req("10.0.0.1:5678", "")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second: got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After: got %q", rr.Header().Get("Retry-After"))
	}

	// The operator is keyed separately from their IP.
	if rr := req("10.0.0.1:1234", "planner"); rr.Code != http.StatusOK {
		t.Errorf("operator: got %d", rr.Code)
	}
	if rr := req("10.0.0.9:1234", "planner"); rr.Code != http.StatusTooManyRequests {
		t.Errorf("operator from another IP: got %d", rr.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{name: "remote addr", remote: "192.168.1.1:12345", want: "192.168.1.1"},
		{name: "forwarded for", headers: map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, remote: "10.0.0.1:1", want: "203.0.113.5"},
		{name: "real ip", headers: map[string]string{"X-Real-IP": " 198.51.100.7 "}, remote: "10.0.0.1:1", want: "198.51.100.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := clientIP(r); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
