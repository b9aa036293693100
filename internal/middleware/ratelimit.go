package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	clientIdleTTL = 10 * time.Minute
	sweepAt       = 1024 // tracked clients before idle ones are dropped
)

type rateErr struct {
	Error string `json:"error"`
}

// ClientLimiter hands out one token bucket per client IP.
type ClientLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mu      sync.Mutex
	clients map[string]*clientBucket
}

type clientBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewClientLimiter allows rps requests per second per client with the given
// burst. rps <= 0 disables limiting and returns nil.
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	if rps <= 0 {
		return nil
	}
	return &ClientLimiter{
		limit:   rate.Limit(rps),
		burst:   max(burst, 1),
		now:     time.Now,
		clients: make(map[string]*clientBucket),
	}
}

func (l *ClientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.clients) >= sweepAt {
		for k, b := range l.clients {
			if now.Sub(b.seen) > clientIdleTTL {
				delete(l.clients, k)
			}
		}
	}
	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{lim: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1)
}

// retryAfter is the whole number of seconds until one token is back.
func (l *ClientLimiter) retryAfter() int {
	return int(math.Max(1, math.Ceil(1/float64(l.limit))))
}

// RateLimitMiddleware rejects requests beyond a client's budget with 429.
// A nil limiter disables limiting.
func RateLimitMiddleware(l *ClientLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter()))
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(rateErr{Error: "too_many_requests"})
		})
	}
}
