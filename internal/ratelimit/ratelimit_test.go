package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()
	l := New(cfg)
	t.Cleanup(l.Stop)
	return l
}

func TestAllow_BurstThenDeny(t *testing.T) {
	l := newTestLimiter(t, Config{
		RequestsPerMinute: 60,
		BurstSize:         3,
		CleanupInterval:   time.Minute,
	})

	for i := 0; i < 3; i++ {
		if !l.Allow("merchant-1") {
			t.Fatalf("request %d within burst denied", i+1)
		}
	}
	if l.Allow("merchant-1") {
		t.Error("request beyond burst allowed")
	}
}

func TestAllow_KeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	if !l.Allow("merchant-1") {
		t.Fatal("first request for merchant-1 denied")
	}
	if l.Allow("merchant-1") {
		t.Error("merchant-1 exceeded burst but was allowed")
	}
	if !l.Allow("merchant-2") {
		t.Error("merchant-2 should have its own bucket")
	}
}

func TestAllow_TokensRefill(t *testing.T) {
	// 6000/min = 100 tokens/sec, so a short sleep refills the bucket.
	l := newTestLimiter(t, Config{
		RequestsPerMinute: 6000,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	if !l.Allow("merchant-1") {
		t.Fatal("first request denied")
	}
	if l.Allow("merchant-1") {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(50 * time.Millisecond)
	if !l.Allow("merchant-1") {
		t.Error("bucket did not refill")
	}
}

func TestMiddleware_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := newTestLimiter(t, Config{
		RequestsPerMinute: 60,
		BurstSize:         2,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/route", func(c *gin.Context) {
		c.String(200, "ok")
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/route", nil)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("requests within burst got %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("request beyond burst got %d, want 429", codes[2])
	}
}

func TestMiddleware_AuthKeyedSeparately(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := newTestLimiter(t, Config{
		RequestsPerMinute: 60,
		BurstSize:         1,
		CleanupInterval:   time.Minute,
	})

	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/route", func(c *gin.Context) {
		c.String(200, "ok")
	})

	// Exhaust the anonymous bucket.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/route", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("anonymous request got %d", w.Code)
	}

	// An authenticated request uses its own bucket.
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/route", nil)
	req.Header.Set("Authorization", "Bearer sk_test_key")
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authenticated request got %d, want 200", w.Code)
	}
}
