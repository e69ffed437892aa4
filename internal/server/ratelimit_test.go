package server

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPRateLimiterBurst(t *testing.T) {
	rl := NewIPRateLimiter(1, 3)
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("10.0.0.1"), "request %d within burst", i)
	}
	assert.False(t, rl.Allow("10.0.0.1"), "burst exhausted")

	// Independent buckets per address.
	assert.True(t, rl.Allow("10.0.0.2"))
}

// Exercised under the race detector: Allow updates lastSeen on a shared entry
// from many goroutines while removeStale reads it.
func TestIPRateLimiterConcurrentAllow(t *testing.T) {
	rl := NewIPRateLimiter(1000, 1000)
	defer rl.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				rl.Allow("10.0.0.1")
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 50; j++ {
			rl.removeStale(time.Now().Add(-time.Hour))
		}
	}()
	wg.Wait()

	_, ok := rl.limiters.Load("10.0.0.1")
	assert.True(t, ok, "active bucket survives the sweep")
}

func TestRemoveStaleDropsIdleBuckets(t *testing.T) {
	rl := NewIPRateLimiter(1, 1)
	defer rl.Stop()

	require.True(t, rl.Allow("10.0.0.1"))
	require.True(t, rl.Allow("10.0.0.2"))

	entry, ok := rl.limiters.Load("10.0.0.1")
	require.True(t, ok)
	entry.(*ipLimiterEntry).lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	rl.removeStale(time.Now().Add(-30 * time.Minute))

	_, stale := rl.limiters.Load("10.0.0.1")
	assert.False(t, stale, "idle bucket is dropped")
	_, fresh := rl.limiters.Load("10.0.0.2")
	assert.True(t, fresh, "recent bucket is kept")
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(1, 2)
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		req.RemoteAddr = "192.0.2.1:54321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestClientIPExtraction(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	assert.Equal(t, "203.0.113.9", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.44, 10.0.0.1")
	assert.Equal(t, "192.0.2.44", clientIP(req))
}
