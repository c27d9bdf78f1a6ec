package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"postcast/internal/logging"
	"postcast/internal/services"
)

const (
	// DefaultMaxAttempts bounds how often a transient failure is retried.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the first backoff sleep; it doubles per attempt.
	DefaultBaseDelay = 4 * time.Second
	// DefaultMaxDelay caps the backoff growth.
	DefaultMaxDelay = 60 * time.Second
)

// Policy retries an operation on transient failures with exponential backoff.
// Zero fields fall back to the package defaults, so a Policy literal with
// only the knobs a caller cares about is valid. The zero delay growth is
// base, 2*base, 4*base, ... capped at MaxDelay.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Retryable decides whether an error is worth another attempt. When nil,
	// anything not marked permanent by the services taxonomy is retried:
	// server-side and connectivity failures retry, caller mistakes do not.
	Retryable func(error) bool

	Logger  *slog.Logger
	Sleeper func(time.Duration)
}

// Default returns the standard policy used for platform API calls.
func Default(logger *slog.Logger) Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		Logger:      logger,
	}
}

// Do runs fn until it succeeds, fails permanently, or attempts run out. The
// error from the final attempt is returned unchanged so callers can inspect
// the original failure.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	logger := logging.NewComponentLogger(p.Logger, "retry")

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !p.shouldRetry(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := p.delay(attempt)
		logger.Warn("transient failure, retrying",
			logging.String("operation", op),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay),
			logging.Error(err))
		if sleepErr := sleep(ctx, delay, p.Sleeper); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func (p Policy) shouldRetry(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !services.IsPermanent(err)
}

func (p Policy) delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// WaitPolicy retries an operation whose failure mode is "not ready yet",
// sleeping a fixed step times the attempt number between tries. Transcripts
// lag video publication by a few minutes, so the waits grow linearly rather
// than exponentially.
type WaitPolicy struct {
	Attempts int
	WaitStep time.Duration

	// Retryable defaults to matching services.ErrUnavailable only.
	Retryable func(error) bool

	Logger  *slog.Logger
	Sleeper func(time.Duration)
}

// Do runs fn until it succeeds, fails with a non-retryable error, or
// attempts run out. The final attempt's error is returned unchanged.
func (p WaitPolicy) Do(ctx context.Context, op string, fn func() error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	step := p.WaitStep
	if step <= 0 {
		step = time.Minute
	}
	logger := logging.NewComponentLogger(p.Logger, "retry")

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !p.shouldRetry(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := step * time.Duration(attempt)
		logger.Info("not yet available, waiting",
			logging.String("operation", op),
			logging.Int(logging.FieldAttempt, attempt),
			logging.Int("max_attempts", attempts),
			logging.Duration("delay", delay))
		if sleepErr := sleep(ctx, delay, p.Sleeper); sleepErr != nil {
			return sleepErr
		}
	}
	return err
}

func (p WaitPolicy) shouldRetry(err error) bool {
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return errors.Is(err, services.ErrUnavailable)
}

func sleep(ctx context.Context, delay time.Duration, sleeper func(time.Duration)) error {
	if delay <= 0 {
		return nil
	}
	if ctx == nil {
		return errors.New("retry: nil context")
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if sleeper != nil {
		sleeper(delay)
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
