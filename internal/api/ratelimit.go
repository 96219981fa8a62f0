package api

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// RateLimiter counts requests per key over a sliding window
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
	limit   int
	window  time.Duration
	keyFunc func(r *http.Request) string
	now     func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// slidingWindow holds request times of one key, oldest first
type slidingWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
}

// RateLimitConfig defines rate limit parameters
type RateLimitConfig struct {
	Limit   int           // Max requests per window
	Window  time.Duration // Time window
	KeyFunc func(r *http.Request) string
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
// Call Stop to release it.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = GetClientIP
	}

	rl := &RateLimiter{
		windows: make(map[string]*slidingWindow),
		limit:   cfg.Limit,
		window:  cfg.Window,
		keyFunc: cfg.KeyFunc,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.prune()
		case <-rl.stopCh:
			return
		}
	}
}

// prune drops keys without requests inside the window
func (rl *RateLimiter) prune() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, sw := range rl.windows {
		sw.mu.Lock()
		sw.pruneOld(now, rl.window)
		if len(sw.timestamps) == 0 {
			delete(rl.windows, key)
		}
		sw.mu.Unlock()
	}
}

// Stop stops the cleanup goroutine. Safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

// Allow records the request and reports whether it is under the limit
func (rl *RateLimiter) Allow(r *http.Request) bool {
	key := rl.keyFunc(r)
	now := rl.now()

	rl.mu.Lock()
	sw, ok := rl.windows[key]
	if !ok {
		sw = &slidingWindow{}
		rl.windows[key] = sw
	}
	rl.mu.Unlock()

	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.pruneOld(now, rl.window)
	if len(sw.timestamps) >= rl.limit {
		return false
	}
	sw.timestamps = append(sw.timestamps, now)
	return true
}

func (sw *slidingWindow) pruneOld(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(sw.timestamps) && sw.timestamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		sw.timestamps = sw.timestamps[i:]
	}
}

// Middleware rejects requests over the limit with 429
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(r) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetClientIP returns the request host without port.
// middleware.RealIP has already applied X-Real-IP / X-Forwarded-For to
// RemoteAddr, so the headers are not read again here.
func GetClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimiters holds all rate limiters of the API
type RateLimiters struct {
	Global *RateLimiter
	Export *RateLimiter

	// exportSlots caps concurrent exports system wide
	exportSlots chan struct{}
}

// NewRateLimiters creates the standard rate limiters
func NewRateLimiters() *RateLimiters {
	return &RateLimiters{
		// 100 requests per minute per IP
		Global: NewRateLimiter(RateLimitConfig{Limit: 100, Window: time.Minute}),
		// 2 exports per minute per IP
		Export:      NewRateLimiter(RateLimitConfig{Limit: 2, Window: time.Minute}),
		exportSlots: make(chan struct{}, 3),
	}
}

// Stop stops all rate limiter cleanup goroutines
func (rls *RateLimiters) Stop() {
	rls.Global.Stop()
	rls.Export.Stop()
}

// ExportGuard applies the export rate limit and the concurrency cap.
// Returns 429 when rate limited and 503 when every export slot is busy.
func (rls *RateLimiters) ExportGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rls.Export.Allow(r) {
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "export rate limit exceeded (max 2/min)")
			return
		}

		select {
		case rls.exportSlots <- struct{}{}:
			defer func() { <-rls.exportSlots }()
		default:
			respondError(w, http.StatusServiceUnavailable, "export capacity full, try again shortly")
			return
		}

		next.ServeHTTP(w, r)
	})
}
