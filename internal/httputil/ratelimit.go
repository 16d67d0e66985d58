package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// IPRateLimiter hands out one token bucket per client IP. Idle buckets
// are forgotten after idleTTL so scanners cannot grow the map forever.
type IPRateLimiter struct {
	mu      sync.Mutex
	ips     map[string]*ipEntry
	r       rate.Limit
	b       int
	idleTTL time.Duration
	now     func() time.Time
}

type ipEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewIPRateLimiter allows r requests per second with bursts of b per IP.
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	return &IPRateLimiter{
		ips:     make(map[string]*ipEntry),
		r:       r,
		b:       b,
		idleTTL: 10 * time.Minute,
		now:     time.Now,
	}
}

// Limiter returns the bucket for ip, creating it on first use.
func (l *IPRateLimiter) Limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, ok := l.ips[ip]
	if !ok {
		l.sweep(now)
		e = &ipEntry{lim: rate.NewLimiter(l.r, l.b)}
		l.ips[ip] = e
	}
	e.seen = now
	return e.lim
}

// Len returns the number of tracked IPs.
func (l *IPRateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.ips)
}

func (l *IPRateLimiter) sweep(now time.Time) {
	for ip, e := range l.ips {
		if now.Sub(e.seen) > l.idleTTL {
			delete(l.ips, ip)
		}
	}
}

// Middleware rejects requests over the per-IP rate with 429.
func (l *IPRateLimiter) Middleware(trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lim := l.Limiter(ClientIP(r, trustProxy))
			if !lim.Allow() {
				retry := time.Second
				if l.r > 0 {
					retry = time.Duration(float64(time.Second) / float64(l.r))
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", strconv.Itoa(max(1, int(retry.Seconds()+0.5))))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
