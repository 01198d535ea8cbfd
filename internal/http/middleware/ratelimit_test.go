package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRateLimiterAllowRefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(1000, 2)

	if !rl.Allow("clinic-1|10.0.0.1") {
		t.Fatal("first request should be allowed")
	}
	if !rl.Allow("clinic-1|10.0.0.1") {
		t.Fatal("second request should be allowed within burst")
	}
	if rl.Allow("clinic-1|10.0.0.1") {
		t.Fatal("third request should exceed the burst")
	}
}

func TestRateLimitKeysByTenantAndIP(t *testing.T) {
	mw := RateLimit(0.001, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(tenant string) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/session/status", nil)
		req.Header.Set("X-Real-Ip", "203.0.113.7")
		if tenant != "" {
			req.Header.Set("X-Tenant-Id", tenant)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("clinic-1"); code != http.StatusOK {
		t.Fatalf("first clinic-1 request: expected %d, got %d", http.StatusOK, code)
	}
	if code := send("clinic-1"); code != http.StatusTooManyRequests {
		t.Fatalf("second clinic-1 request: expected %d, got %d", http.StatusTooManyRequests, code)
	}
	// A different tenant behind the same proxy IP has its own bucket.
	if code := send("clinic-2"); code != http.StatusOK {
		t.Fatalf("clinic-2 request: expected %d, got %d", http.StatusOK, code)
	}
}

func TestRateLimitRejectionBodyIsJSON(t *testing.T) {
	mw := RateLimit(0.001, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/admin/session/status", nil)
	req.Header.Set("X-Real-Ip", "198.51.100.9")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected %d, got %d", http.StatusTooManyRequests, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON rejection body, got content type %q", ct)
	}
}
