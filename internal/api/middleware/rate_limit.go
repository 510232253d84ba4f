package middleware

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Ntrondle/pnp-gateway/internal/api/errors"
)

// IPLimiter is a token-bucket limiter keyed by remote address. It guards
// endpoints that run before a credential is known — most importantly
// auth/keys creation and the authentication step itself — against a
// flood of unauthenticated traffic. This is deliberately separate from
// the Credential Registry's per-credential sliding-window budget (spec
// §4.F, enforced post-authentication by the Dispatcher): that one
// answers "is this credential over budget"; this one answers "is this
// network peer hammering us before we even know who they are".
type IPLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
}

// NewIPLimiter creates a limiter allowing requestsPerSecond sustained
// throughput per remote address, with burst headroom.
func NewIPLimiter(requestsPerSecond float64, burst int) *IPLimiter {
	return &IPLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (l *IPLimiter) get(addr string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[addr]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters[addr] = lim
	}
	return lim
}

// Cleanup drops limiters sitting at full capacity (i.e. unused since the
// last sweep). Intended to run on a periodic ticker.
func (l *IPLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	for addr, lim := range l.limiters {
		if lim.TokensAt(now) == float64(l.burst) {
			delete(l.limiters, addr)
		}
	}
}

// IPRateLimitMiddleware rejects requests once the calling address
// exceeds its token bucket. Returns RATE_LIMITED like the Credential
// Registry's budget enforcement, so clients see one consistent error
// shape regardless of which layer rejected them.
func IPRateLimitMiddleware(limiter *IPLimiter) func(http.Handler) http.Handler {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			limiter.Cleanup()
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr := clientAddr(r)
			if !limiter.get(addr).Allow() {
				err := errors.RateLimited(time.Second).WithRequestID(GetRequestID(r.Context()))
				errors.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientAddr(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
