package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/nkiryanov/calcboard/internal/handlers/render"
)

const bucketTTL = 5 * time.Minute

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type RateLimitConfig struct {
	PerSecond float64
	Burst     int

	// Key clients by X-Forwarded-For set by the proxy in front of the service
	// Keep it off unless every request comes through such proxy: the header is client controlled otherwise
	TrustProxyHeaders bool
}

// Token bucket per client IP
type RateLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time

	limit      rate.Limit
	burst      int
	trustProxy bool
	now        func() time.Time
}

func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		buckets:    make(map[string]*bucket),
		limit:      rate.Limit(cfg.PerSecond),
		burst:      max(cfg.Burst, 1),
		trustProxy: cfg.TrustProxyHeaders,
		now:        time.Now,
	}
}

// Reject requests over the limit with 429
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r, l.trustProxy)) {
			w.Header().Set("Retry-After", "1")
			render.ServiceError(w, "Too many requests, try again later", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *RateLimiter) allow(ip string) bool {
	if ip == "" {
		ip = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now

	return b.limiter.AllowN(now, 1)
}

// Forget clients not seen for a while. Must be called with mu held
func (l *RateLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < bucketTTL {
		return
	}
	l.lastSweep = now

	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > bucketTTL {
			delete(l.buckets, ip)
		}
	}
}

// Client address. With trustProxy it is the last X-Forwarded-For hop, the one appended by the proxy
func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := r.Header.Values("X-Forwarded-For")
		if len(xff) > 0 {
			hops := strings.Split(xff[len(xff)-1], ",")
			if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
				return last
			}
		}
	}
	return remoteHost(r)
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
