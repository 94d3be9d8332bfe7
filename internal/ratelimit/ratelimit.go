// Package ratelimit limits requests per client over a fixed window.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rpggio/phasetrack/internal/metrics"
)

// DefaultMessage is the body returned with 429 responses for the default
// 15 minute window.
const DefaultMessage = "Too many requests from this IP, please try again after 15 minutes"

// Message returns the 429 body for a window.
func Message(window time.Duration) string {
	if window == 15*time.Minute {
		return DefaultMessage
	}
	return "Too many requests from this IP, please try again after " + humanDuration(window)
}

func humanDuration(d time.Duration) string {
	n, unit := int64(math.Ceil(d.Seconds())), "second"
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		n, unit = int64(d/time.Hour), "hour"
	case d >= time.Minute && d%time.Minute == 0:
		n, unit = int64(d/time.Minute), "minute"
	}
	if n != 1 {
		unit += "s"
	}
	return strconv.FormatInt(n, 10) + " " + unit
}

// Store counts hits per key within a window.
type Store interface {
	// Increment records one hit and returns the hit count in the current
	// window and when that window resets.
	Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

// MemoryStore is a fixed-window counter held in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*memoryWindow
	now     func() time.Time
}

type memoryWindow struct {
	count   int64
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*memoryWindow),
		now:     time.Now,
	}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &memoryWindow{resetAt: now.Add(window)}
		s.windows[key] = w
		s.sweepLocked(now)
	}
	w.count++
	return w.count, w.resetAt, nil
}

// sweepLocked drops expired windows so idle clients do not accumulate.
func (s *MemoryStore) sweepLocked(now time.Time) {
	for k, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, k)
		}
	}
}

// RedisStore shares counters across server instances.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisStore wraps a client. Keys are written as "<prefix><key>".
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	k := s.prefix + key

	count, err := s.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}

	// Set expiration on first increment
	if count == 1 {
		if err := s.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return count, s.now().Add(window), nil
	}

	ttl, err := s.rdb.PTTL(ctx, k).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// The expiry was lost; restart the window rather than lock the key forever.
		if err := s.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		ttl = window
	}
	return count, s.now().Add(ttl), nil
}

// Limiter is HTTP middleware enforcing Max requests per Window per client.
type Limiter struct {
	store   Store
	window  time.Duration
	max     int64
	message string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a limiter. A nil logger discards failures.
func New(store Store, window time.Duration, max int, logger *slog.Logger) *Limiter {
	return &Limiter{
		store:   store,
		window:  window,
		max:     int64(max),
		message: Message(window),
		logger:  logger,
		now:     time.Now,
	}
}

// Middleware rejects clients over the limit with 429. Store failures let
// the request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count, resetAt, err := l.store.Increment(r.Context(), clientKey(r), l.window)
		if err != nil {
			metrics.RateLimitStoreErrors.Inc()
			if l.logger != nil {
				l.logger.Warn("rate limit store failed", "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		remaining := l.max - count
		if remaining < 0 {
			remaining = 0
		}
		resetSeconds := int64(math.Ceil(resetAt.Sub(l.now()).Seconds()))
		if resetSeconds < 0 {
			resetSeconds = 0
		}

		h := w.Header()
		h.Set("RateLimit-Limit", strconv.FormatInt(l.max, 10))
		h.Set("RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		h.Set("RateLimit-Reset", strconv.FormatInt(resetSeconds, 10))

		if count > l.max {
			metrics.RateLimitRejections.Inc()
			h.Set("Retry-After", strconv.FormatInt(resetSeconds, 10))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": l.message})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
