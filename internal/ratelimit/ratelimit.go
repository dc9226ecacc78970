package ratelimit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yoshiniks/nodeAppShop/internal/httpmw"
)

// KeyFunc picks the bucket a request draws from.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the address resolved by httpmw.ClientIPWithOptions.
func ByClientIP(r *http.Request) string {
	return httpmw.ClientIPFromContext(r.Context())
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
	// logged resets when the entry is evicted and re-created
	logged bool
}

// Limiter holds per-key token buckets with background eviction.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	perSecond rate.Limit
	burst     int
	ttl       time.Duration
	maxKeys   int
	key       KeyFunc

	onFirstDenied func(key string)
	onDenied      func(key string)
	onCapacity    func()
	capLogged     bool
}

type Option func(*Limiter)

// WithRate sets the refill rate and bucket size. WithRate(0.2, 10) allows ten
// login attempts at once, then one every five seconds.
func WithRate(perSecond float64, burst int) Option {
	return func(l *Limiter) {
		l.perSecond = rate.Limit(perSecond)
		l.burst = burst
	}
}

// WithTTL controls how long an idle key stays in the map before cleanup.
func WithTTL(d time.Duration) Option {
	return func(l *Limiter) { l.ttl = d }
}

// WithMaxKeys caps tracked keys so a spray of source addresses cannot grow the
// map without bound. New keys are denied at capacity; 0 disables the cap.
func WithMaxKeys(n int) Option {
	return func(l *Limiter) { l.maxKeys = n }
}

func WithKeyFunc(fn KeyFunc) Option {
	return func(l *Limiter) { l.key = fn }
}

// WithOnFirstDenied runs once per key on its first denial, for logging.
func WithOnFirstDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.onFirstDenied = fn }
}

// WithOnDenied runs on every denial, for counters.
func WithOnDenied(fn func(key string)) Option {
	return func(l *Limiter) { l.onDenied = fn }
}

// WithOnCapacity runs once each time the key cap is reached.
func WithOnCapacity(fn func()) Option {
	return func(l *Limiter) { l.onCapacity = fn }
}

// New creates a Limiter. Cleanup runs until ctx is cancelled.
func New(ctx context.Context, opts ...Option) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*bucket),
		perSecond: 0.2,
		burst:     10,
		ttl:       10 * time.Minute,
		maxKeys:   100_000,
		key:       ByClientIP,
	}
	for _, o := range opts {
		o(l)
	}
	go l.cleanup(ctx)
	return l
}

// Allow reports whether key may proceed, creating its bucket on first use.
// Hooks run outside the lock.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	b, exists := l.buckets[key]
	if !exists {
		if l.maxKeys > 0 && len(l.buckets) >= l.maxKeys {
			fire := !l.capLogged
			l.capLogged = true
			l.mu.Unlock()
			if fire && l.onCapacity != nil {
				l.onCapacity()
			}
			if l.onDenied != nil {
				l.onDenied(key)
			}
			return false
		}
		b = &bucket{limiter: rate.NewLimiter(l.perSecond, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	allowed := b.limiter.Allow()
	first := !allowed && !b.logged
	if first {
		b.logged = true
	}
	l.mu.Unlock()

	if first && l.onFirstDenied != nil {
		l.onFirstDenied(key)
	}
	if !allowed && l.onDenied != nil {
		l.onDenied(key)
	}
	return allowed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) cleanup(ctx context.Context) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for k, b := range l.buckets {
				if now.Sub(b.lastSeen) > l.ttl {
					delete(l.buckets, k)
				}
			}
			if len(l.buckets) < l.maxKeys {
				l.capLogged = false
			}
			l.mu.Unlock()
		}
	}
}

// Middleware rejects requests over the limit with 429. Only methods in
// methods are limited; none means all.
func (l *Limiter) Middleware(methods ...string) func(http.Handler) http.Handler {
	limited := make(map[string]bool, len(methods))
	for _, m := range methods {
		limited[m] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(limited) > 0 && !limited[r.Method] {
				next.ServeHTTP(w, r)
				return
			}
			if !l.Allow(l.key(r)) {
				w.Header().Set("Retry-After", "30")
				// no detail about limits or remaining budget
				http.Error(w, "Too many attempts, try again later.", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
