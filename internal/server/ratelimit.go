package server

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Upgrade attempts allowed per IP. Generous for humans, tight enough to stop
// a reconnect loop from monopolizing the accept path.
const (
	upgradesPerSecond = 5
	upgradeBurst      = 10

	limiterCleanupInterval = 5 * time.Minute
)

type ipLimiterEntry struct {
	limiter *rate.Limiter

	// lastSeen is unix nanoseconds; Allow writes it while the cleanup
	// goroutine reads it.
	lastSeen atomic.Int64
}

// IPRateLimiter is a token-bucket limiter keyed by client IP.
type IPRateLimiter struct {
	limiters sync.Map // map[string]*ipLimiterEntry
	rate     rate.Limit
	burst    int
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter creates a limiter and starts its stale-entry cleanup.
func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		rate:     rate.Limit(perSecond),
		burst:    burst,
		stopChan: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopChan)
	})
}

// Allow reports whether a request from the given IP fits its budget.
func (rl *IPRateLimiter) Allow(ip string) bool {
	now := time.Now().UnixNano()
	if entry, ok := rl.limiters.Load(ip); ok {
		e := entry.(*ipLimiterEntry)
		e.lastSeen.Store(now)
		return e.limiter.Allow()
	}

	entry := &ipLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
	entry.lastSeen.Store(now)
	actual, _ := rl.limiters.LoadOrStore(ip, entry)
	e := actual.(*ipLimiterEntry)
	e.lastSeen.Store(now)
	return e.limiter.Allow()
}

// Middleware rejects over-budget requests with 429 before the upgrade runs.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			joinsRejected.WithLabelValues("rate_limit").Inc()
			w.Header().Set("Retry-After", "1")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopChan:
			return
		case <-ticker.C:
			rl.removeStale(time.Now().Add(-2 * limiterCleanupInterval))
		}
	}
}

// removeStale drops buckets idle since before the cutoff.
func (rl *IPRateLimiter) removeStale(cutoff time.Time) {
	rl.limiters.Range(func(key, value any) bool {
		if value.(*ipLimiterEntry).lastSeen.Load() < cutoff.UnixNano() {
			rl.limiters.Delete(key)
		}
		return true
	})
}

// clientIP extracts the client IP, honouring X-Forwarded-For from a fronting
// proxy before falling back to the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx >= 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
