// Package ratelimit enforces independent per-capability request budgets.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/webscout/webscout/internal/metrics"
	"github.com/webscout/webscout/internal/scout"
)

// Capability names a budgeted downstream dependency. The search and fetch
// budgets are independent so a slow search provider never starves content
// fetching and vice versa.
type Capability string

// Budgeted capabilities.
const (
	CapabilitySearch Capability = "search"
	CapabilityFetch  Capability = "fetch"
)

// Config holds per-capability budgets and backoff behavior.
type Config struct {
	SearchPerMinute int
	FetchPerMinute  int
	// Window is the budget window; it defaults to one minute and exists as a
	// knob so tests can compress time.
	Window time.Duration
	// MaxWait bounds a single blocking acquire. It must cover at least one
	// full window or a drained budget can never recover within one attempt.
	MaxWait time.Duration
	// MaxAttempts caps acquire retries before ErrRateLimitExceeded.
	MaxAttempts int
	// BaseBackoff seeds the exponential backoff between attempts.
	BaseBackoff time.Duration
}

const (
	defaultWindow      = time.Minute
	defaultMaxAttempts = 3
	defaultBaseBackoff = 500 * time.Millisecond
)

// Limiter manages one token bucket per capability. All concurrently-running
// pipelines share a single Limiter; the bucket map is guarded by a mutex.
type Limiter struct {
	mu          sync.Mutex
	limiters    map[Capability]*rate.Limiter
	perMinute   map[Capability]int
	window      time.Duration
	maxWait     time.Duration
	maxAttempts int
	baseBackoff time.Duration
}

// New creates a Limiter. A per-minute budget of zero or less means the
// capability is unlimited.
func New(cfg Config) *Limiter {
	window := cfg.Window
	if window <= 0 {
		window = defaultWindow
	}
	maxWait := cfg.MaxWait
	if maxWait <= 0 {
		maxWait = window + window/4
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = defaultBaseBackoff
	}
	l := &Limiter{
		limiters:    make(map[Capability]*rate.Limiter),
		perMinute:   make(map[Capability]int),
		window:      window,
		maxWait:     maxWait,
		maxAttempts: attempts,
		baseBackoff: backoff,
	}
	l.perMinute[CapabilitySearch] = cfg.SearchPerMinute
	l.perMinute[CapabilityFetch] = cfg.FetchPerMinute
	return l
}

// Acquire blocks until the capability's budget admits one request. Each wait
// is bounded by MaxWait; exhausted waits retry with exponential backoff up to
// MaxAttempts, after which scout.ErrRateLimitExceeded is returned. Context
// cancellation aborts immediately.
func (l *Limiter) Acquire(ctx context.Context, capability Capability) error {
	limiter := l.limiterFor(capability)
	if limiter == nil {
		return nil
	}

	for attempt := 0; attempt < l.maxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, l.backoff(attempt)); err != nil {
				return fmt.Errorf("rate limit backoff: %w", err)
			}
		}
		start := time.Now()
		waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
		err := limiter.Wait(waitCtx)
		cancel()
		if err == nil {
			if delay := time.Since(start); delay > time.Millisecond {
				metrics.ObserveRateLimitDelay(string(capability), delay)
			}
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("rate limit wait: %w", ctx.Err())
		}
	}
	return fmt.Errorf("capability %s after %d attempts: %w", capability, l.maxAttempts, scout.ErrRateLimitExceeded)
}

// Budget reports the configured per-window limit and currently available
// tokens for a capability.
type Budget struct {
	PerWindow int     `json:"per_window"`
	Available float64 `json:"available"`
}

// Snapshot returns the current budget state per capability.
func (l *Limiter) Snapshot() map[Capability]Budget {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Capability]Budget, len(l.perMinute))
	for capability, perMinute := range l.perMinute {
		b := Budget{PerWindow: perMinute, Available: float64(perMinute)}
		if limiter, ok := l.limiters[capability]; ok {
			b.Available = limiter.Tokens()
		}
		out[capability] = b
	}
	return out
}

func (l *Limiter) limiterFor(capability Capability) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[capability]; ok {
		return limiter
	}
	perMinute := l.perMinute[capability]
	if perMinute <= 0 {
		return nil
	}
	limiter := rate.NewLimiter(rate.Every(l.window/time.Duration(perMinute)), perMinute)
	l.limiters[capability] = limiter
	return limiter
}

func (l *Limiter) backoff(attempt int) time.Duration {
	d := l.baseBackoff << (attempt - 1)
	if max := 4 * l.baseBackoff; d > max {
		d = max
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
