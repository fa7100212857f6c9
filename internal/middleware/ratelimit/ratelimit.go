package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Incr adds one hit to key and returns the count for the current window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter provides rate limiting functionality
type Limiter struct {
	store  Store
	limit  int
	window time.Duration

	hits    atomic.Int64
	limited atomic.Int64
}

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Window            time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Window:            time.Minute,
	}
}

// NewLimiter creates a rate limiter backed by store. A nil store keeps
// counters in process memory.
func NewLimiter(config Config, store Store) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultConfig().RequestsPerMinute
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Limiter{
		store:  store,
		limit:  config.RequestsPerMinute,
		window: config.Window,
	}
}

// Allow records a hit for key and reports whether it is within the limit
// along with the hits left in the window. Store failures let the request
// through.
func (rl *Limiter) Allow(ctx context.Context, key string) (bool, int64) {
	rl.hits.Add(1)

	n, err := rl.store.Incr(ctx, "rl:"+key, rl.window)
	if err != nil {
		slog.WarnContext(ctx, "Rate limit store unavailable", "error", err)
		return true, int64(rl.limit)
	}

	remaining := lo.Max([]int64{0, int64(rl.limit) - n})
	if n > int64(rl.limit) {
		rl.limited.Add(1)
		return false, 0
	}
	return true, remaining
}

// Metrics for monitoring rate limit performance
type Metrics struct {
	TotalHits   int64
	LimitedHits int64
}

// GetMetrics returns current rate limiting metrics
func (rl *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   rl.hits.Load(),
		LimitedHits: rl.limited.Load(),
	}
}

// Middleware creates HTTP middleware for rate limiting
func (rl *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(rl.window.Seconds()))
	limit := strconv.Itoa(rl.limit)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), 200*time.Millisecond)
			ok, remaining := rl.Allow(ctx, extractIP(r))
			cancel()

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			if !ok {
				w.Header().Set("Retry-After", retryAfter)
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MemoryStore keeps fixed-window counters in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
}

type window struct {
	count   int64
	resetAt time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, d time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		s.windows[key] = w
	}
	w.count++
	return w.count, nil
}

// CleanExpired drops finished windows and returns how many were removed.
func (s *MemoryStore) CleanExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, w := range s.windows {
		if !now.Before(w.resetAt) {
			delete(s.windows, key)
			removed++
		}
	}
	return removed
}

// ActiveClients returns the number of currently tracked keys
func (s *MemoryStore) ActiveClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}
