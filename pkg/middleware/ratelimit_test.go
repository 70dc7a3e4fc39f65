package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimit_RejectsAfterBurst(t *testing.T) {
	var buf bytes.Buffer
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 2}, newBufferLogger(&buf))(okHandler())

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.Contains(t, buf.String(), "rate limit exceeded")
}

func TestRateLimit_SessionsHaveSeparateBuckets(t *testing.T) {
	var buf bytes.Buffer
	handler := RateLimit(RateLimitConfig{RPS: 0.001, Burst: 1, SessionCookie: "qc_session"}, newBufferLogger(&buf))(okHandler())

	for _, sid := range []string{"a", "b"} {
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.AddCookie(&http.Cookie{Name: "qc_session", Value: sid})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "session %s", sid)
	}
}

func TestVisitorStore_CleanupEvictsStale(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := newVisitorStore(1, 1, time.Minute)
	s.nowFunc = func() time.Time { return now }

	s.getVisitor("ip:1")
	now = now.Add(30 * time.Second)
	s.getVisitor("ip:2")
	now = now.Add(45 * time.Second)
	s.cleanup()

	assert.Equal(t, 1, s.len())
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "10.0.0.2:80", "203.0.113.5"},
		{"real ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "10.0.0.2:80", "198.51.100.7"},
		{"remote addr", nil, "192.0.2.1:1234", "192.0.2.1"},
		{"garbage header", map[string]string{"X-Forwarded-For": "nope"}, "192.0.2.1:1234", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
