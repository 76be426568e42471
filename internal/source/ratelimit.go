package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Clock abstracts wall time so rate limiting can be tested without real delays.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock is the real wall clock.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RateLimitConfig describes an adapter's request budget.
type RateLimitConfig struct {
	Requests int           // Budget per window
	Window   time.Duration // Rolling window length
	MinDelay time.Duration // Minimum spacing between requests
}

// RateLimiter enforces a request budget per window plus a minimum inter-request delay.
// State is local to one adapter instance.
type RateLimiter struct {
	mu          sync.Mutex
	cfg         RateLimitConfig
	clock       Clock
	pacer       *rate.Limiter
	windowStart time.Time
	used        int
}

// NewRateLimiter creates a rate limiter.
// Parameters:
//   - cfg: budget and pacing settings; zero values disable the respective rule.
//   - clock: time source, SystemClock when nil.
// Returns:
//   - *RateLimiter: ready-to-use limiter.
func NewRateLimiter(cfg RateLimitConfig, clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock
	}
	limit := rate.Inf
	if cfg.MinDelay > 0 {
		limit = rate.Every(cfg.MinDelay)
	}
	return &RateLimiter{
		cfg:   cfg,
		clock: clock,
		pacer: rate.NewLimiter(limit, 1),
	}
}

// Wait blocks until a request is allowed. It only fails when ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := r.clock.Now()
		r.rollWindow(now)
		if r.cfg.Requests > 0 && r.used >= r.cfg.Requests {
			wait := r.windowStart.Add(r.cfg.Window).Sub(now)
			r.mu.Unlock()
			if err := r.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		reservation := r.pacer.ReserveN(now, 1)
		delay := reservation.DelayFrom(now)
		r.used++
		r.mu.Unlock()

		if delay > 0 {
			if err := r.clock.Sleep(ctx, delay); err != nil {
				return err
			}
		}
		return nil
	}
}

// Status reports the remaining budget in the current window.
func (r *RateLimiter) Status() RateLimitStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clock.Now()
	r.rollWindow(now)
	if r.cfg.Requests <= 0 {
		return RateLimitStatus{Remaining: -1, Limit: -1, ResetAt: now}
	}
	return RateLimitStatus{
		Remaining: r.cfg.Requests - r.used,
		Limit:     r.cfg.Requests,
		ResetAt:   r.windowStart.Add(r.cfg.Window),
	}
}

func (r *RateLimiter) rollWindow(now time.Time) {
	if r.windowStart.IsZero() || !now.Before(r.windowStart.Add(r.cfg.Window)) {
		r.windowStart = now
		r.used = 0
	}
}
