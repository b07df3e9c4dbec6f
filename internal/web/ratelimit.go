package web

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MsgTooManyRequests is shown when a visitor exceeds the POST budget.
const MsgTooManyRequests = "요청이 너무 많습니다. 잠시 후 다시 시도해주세요."

// ipLimiter holds a per-IP token bucket and the last time it was accessed.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds per-IP limiters for the sensitive form posts.
type rateLimiterStore struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	r        rate.Limit
	b        int
	disabled bool
	// trustProxy reads the client address from X-Real-IP and
	// X-Forwarded-For instead of the connection.
	trustProxy bool
	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// newRateLimiterStore allows requestsPerMinute per IP, bursting to the same
// amount. Zero or negative turns limiting off.
func newRateLimiterStore(requestsPerMinute int, trustProxy bool) *rateLimiterStore {
	s := &rateLimiterStore{
		limiters:   make(map[string]*ipLimiter),
		r:          rate.Limit(float64(requestsPerMinute) / 60.0),
		b:          requestsPerMinute,
		disabled:   requestsPerMinute <= 0,
		trustProxy: trustProxy,
		stopCh:     make(chan struct{}),
		now:        time.Now,
	}
	if !s.disabled {
		go s.cleanup()
	}
	return s
}

// cleanup periodically removes stale entries until Stop is called.
func (s *rateLimiterStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.prune(10 * time.Minute)
		case <-s.stopCh:
			return
		}
	}
}

func (s *rateLimiterStore) prune(maxIdle time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for ip, l := range s.limiters {
		if now.Sub(l.lastSeen) > maxIdle {
			delete(s.limiters, ip)
		}
	}
}

func (s *rateLimiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(s.r, s.b)}
		s.limiters[ip] = l
	}
	l.lastSeen = s.now()
	return l.limiter
}

func (s *rateLimiterStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Stop shuts down the cleanup goroutine. It is safe to call multiple times.
func (s *rateLimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Middleware rejects requests over the per-IP budget with 429 and a
// Retry-After header. A disabled store returns next unchanged.
func (s *rateLimiterStore) Middleware(next http.Handler) http.Handler {
	if s.disabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := s.get(s.clientIP(r)).Reserve()
		if d := reservation.Delay(); d > 0 {
			reservation.Cancel()
			retryAfter := int(math.Ceil(d.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			http.Error(w, MsgTooManyRequests, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP is the address the budget is kept for. Proxy headers are only
// honoured behind a trusted proxy; otherwise any client could pick its own.
func (s *rateLimiterStore) clientIP(r *http.Request) string {
	if s.trustProxy {
		if ip := forwardedIP(r); ip != "" {
			return ip
		}
	}
	return remoteIP(r)
}

func forwardedIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if idx := strings.Index(fwd, ","); idx != -1 {
		fwd = fwd[:idx]
	}
	return strings.TrimSpace(fwd)
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
