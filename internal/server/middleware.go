package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// SecurityHeadersMiddleware adds security headers to all responses.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			// Inline styles carry the theme variables and chroma classes.
			w.Header().Set("Content-Security-Policy",
				"default-src 'self'; "+
					"script-src 'self'; "+
					"style-src 'self' 'unsafe-inline'; "+
					"img-src 'self' data: https:; "+
					"font-src 'self' data:; "+
					"connect-src 'self'; "+
					"frame-ancestors 'none'")

			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request at debug level, and at warn level
// for server errors.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			level := slog.LevelDebug
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// evictionLogInterval is the minimum time between eviction log messages.
const evictionLogInterval = 30 * time.Second

// defaultMaxTrackedIPs bounds the limiter table when no size is given.
const defaultMaxTrackedIPs = 10000

// ipLimiter is one client's token bucket.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter hands out a token bucket per client IP. The table is bounded:
// when full, the least recently seen IP is dropped.
type ipRateLimiter struct {
	rps    rate.Limit
	burst  int
	maxIPs int
	logger *slog.Logger

	mu      sync.Mutex
	clients *lru.Cache[string, *ipLimiter]

	lastEvictLog time.Time
	evictCount   int
}

func newIPRateLimiter(rps float64, burst, maxIPs int, logger *slog.Logger) *ipRateLimiter {
	if maxIPs <= 0 {
		maxIPs = defaultMaxTrackedIPs
	}
	clients, err := lru.New[string, *ipLimiter](maxIPs)
	if err != nil {
		panic(err) // size is positive
	}
	return &ipRateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		maxIPs:  maxIPs,
		logger:  logger,
		clients: clients,
	}
}

// allow reports whether ip may make another request now.
func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	lim, ok := l.clients.Get(ip)
	if !ok {
		lim = &ipLimiter{limiter: rate.NewLimiter(l.rps, l.burst)}
		if l.clients.Add(ip, lim) {
			l.noteEviction(now)
		}
	}
	lim.lastSeen = now
	return lim.limiter.Allow()
}

// noteEviction must be called with mu held.
func (l *ipRateLimiter) noteEviction(now time.Time) {
	l.evictCount++
	if now.Sub(l.lastEvictLog) >= evictionLogInterval {
		l.logger.Warn("rate limiter evicted least recent clients", "count", l.evictCount, "capacity", l.maxIPs)
		l.lastEvictLog = now
		l.evictCount = 0
	}
}

// sweep drops clients not seen within idle.
func (l *ipRateLimiter) sweep(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for _, ip := range l.clients.Keys() {
		if lim, ok := l.clients.Peek(ip); ok && now.Sub(lim.lastSeen) > idle {
			l.clients.Remove(ip)
		}
	}
}

func (l *ipRateLimiter) len() int {
	return l.clients.Len()
}

// RateLimitMiddleware limits requests with a token bucket per client IP.
// rps is the refill rate, burst the bucket size and maxIPs the number of
// clients tracked at once.
//
// The cleanup goroutine runs until ctx is cancelled; the returned channel is
// closed when it exits.
func RateLimitMiddleware(ctx context.Context, rps float64, burst, maxIPs int, logger *slog.Logger) (func(http.Handler) http.Handler, <-chan struct{}) {
	limiter := newIPRateLimiter(rps, burst, maxIPs, logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				limiter.sweep(10 * time.Minute)
			case <-ctx.Done():
				return
			}
		}
	}()

	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.allow(getClientIP(r)) {
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}

	return mw, done
}

// getClientIP extracts the client IP from the request.
// It only trusts X-Forwarded-For / X-Real-IP when the immediate peer is a
// loopback or private address (i.e., behind a reverse proxy).
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	peerIP := net.ParseIP(host)
	trustedProxy := peerIP != nil && (peerIP.IsLoopback() || peerIP.IsPrivate())

	if trustedProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			return strings.TrimSpace(first)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			return strings.TrimSpace(xri)
		}
	}

	if peerIP != nil {
		return peerIP.String()
	}
	return host
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
