package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"postcast/internal/logging"
)

// Limiter enforces a calls-per-period ceiling on outbound API requests using
// a window of recent call times. When the window fills, Wait sleeps until the
// oldest call ages out and then resets the window entirely; the generation
// APIs tolerate the occasional early burst that allows, and the reset keeps a
// long batch from creeping along one call at a time.
type Limiter struct {
	name    string
	max     int
	period  time.Duration
	logger  *slog.Logger
	now     func() time.Time
	sleeper func(time.Duration)

	mu    sync.Mutex
	calls []time.Time
}

// Option customizes the limiter.
type Option func(*Limiter)

// WithClock overrides the time source (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSleeper overrides how waits are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(l *Limiter) {
		l.sleeper = sleeper
	}
}

// New builds a limiter admitting maxCalls per period. A non-positive
// maxCalls or period disables limiting.
func New(name string, maxCalls int, period time.Duration, logger *slog.Logger, opts ...Option) *Limiter {
	if logger == nil {
		logger = logging.NewNop()
	}
	l := &Limiter{
		name:   name,
		max:    maxCalls,
		period: period,
		logger: logging.NewComponentLogger(logger, "ratelimit"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Wait blocks until a call is admitted, then records it. Calls older than one
// period are discarded first; if the window is still full, Wait sleeps until
// the oldest call leaves the period and then clears the whole window. Returns
// the context error if ctx ends during the sleep, without recording a call.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.max <= 0 || l.period <= 0 {
		if ctx != nil {
			return ctx.Err()
		}
		return nil
	}

	l.mu.Lock()
	now := l.now()
	l.prune(now)

	if len(l.calls) >= l.max {
		wait := l.period - now.Sub(l.calls[0])
		if wait > 0 {
			l.logger.Info("rate limit reached, waiting",
				logging.String("limiter", l.name),
				logging.Duration("wait", wait),
				logging.Int("window_calls", len(l.calls)))
			l.mu.Unlock()
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			l.mu.Lock()
		}
		l.calls = l.calls[:0]
	}

	l.calls = append(l.calls, l.now())
	l.mu.Unlock()
	return nil
}

// prune drops window entries older than one period. Caller holds the mutex.
func (l *Limiter) prune(now time.Time) {
	kept := l.calls[:0]
	for _, t := range l.calls {
		if now.Sub(t) < l.period {
			kept = append(kept, t)
		}
	}
	l.calls = kept
}

func (l *Limiter) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("ratelimit: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if l.sleeper != nil {
		l.sleeper(delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
