package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*RateLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	rl := NewRateLimiter()
	rl.now = clock.now
	return rl, clock
}

func TestRateLimiterBudget(t *testing.T) {
	rl, clock := newTestLimiter()
	p := Policy{Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		if ok, _ := rl.Allow("10.0.0.1", p); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}

	clock.advance(20 * time.Second)
	ok, wait := rl.Allow("10.0.0.1", p)
	if ok {
		t.Fatal("4th request should be denied")
	}
	if wait != 40*time.Second {
		t.Errorf("wait = %v, want 40s", wait)
	}

	if ok, _ := rl.Allow("10.0.0.2", p); !ok {
		t.Error("other keys have their own budget")
	}

	clock.advance(40 * time.Second)
	if ok, _ := rl.Allow("10.0.0.1", p); !ok {
		t.Error("should be allowed once the window resets")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, clock := newTestLimiter()

	rl.Allow("stale", Policy{Limit: 5, Window: time.Second})
	rl.Allow("fresh", Policy{Limit: 5, Window: time.Hour})
	clock.advance(time.Minute)

	rl.Cleanup()

	if _, ok := rl.buckets["stale"]; ok {
		t.Error("stale bucket should be removed")
	}
	if _, ok := rl.buckets["fresh"]; !ok {
		t.Error("fresh bucket should be kept")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter()
	keyFunc := RealIP

	handler := RateLimit(rl, keyFunc, Policy{Limit: 2, Window: time.Minute})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := send(); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := send()
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("3rd request: status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
}
