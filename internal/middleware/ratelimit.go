package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// maxTrackedClients bounds the window table; expired windows are swept once it
// grows past this.
const maxTrackedClients = 4096

type window struct {
	count int
	until time.Time
}

// ipLimiter counts requests per client IP in fixed windows.
type ipLimiter struct {
	limit int
	per   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func newIPLimiter(limit int, per time.Duration, now func() time.Time) *ipLimiter {
	return &ipLimiter{limit: limit, per: per, now: now, windows: make(map[string]*window)}
}

// allow records one request from ip. When the window is full it returns false
// and how long until the window reopens.
func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > maxTrackedClients {
		for key, w := range l.windows {
			if !now.Before(w.until) {
				delete(l.windows, key)
			}
		}
	}
	w, ok := l.windows[ip]
	if !ok || !now.Before(w.until) {
		w = &window{until: now.Add(l.per)}
		l.windows[ip] = w
	}
	if w.count >= l.limit {
		return false, w.until.Sub(now)
	}
	w.count++
	return true, 0
}

// RateLimit allows limit requests per client IP in each fixed window of length
// per. It shields the recognition provider from bursts and is independent of
// scan quota: a rejected request never reaches the gate. A non-positive limit
// disables it.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	return rateLimit(limit, per, time.Now)
}

func rateLimit(limit int, per time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiter := newIPLimiter(limit, per, now)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.allow(ClientIP(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
