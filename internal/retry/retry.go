// Package retry provides the single retry policy applied to all outbound
// delivery calls: bounded attempts with exponential backoff, where a
// server-specified delay takes precedence over the computed one.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy bounds the retry loop. The zero value is usable and resolves to
// 3 attempts, 500ms base delay, 30s delay cap.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func (p Policy) normalized() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	return p
}

// transientError marks an error as retryable, optionally carrying a
// server-provided delay before the next attempt.
type transientError struct {
	err      error
	delay    time.Duration
	hasDelay bool
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// TransientAfter marks err as retryable with a server-specified delay
// before the next attempt.
func TransientAfter(err error, delay time.Duration) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err, delay: delay, hasDelay: delay > 0}
}

// IsTransient reports whether err was marked retryable.
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

func serverDelay(err error) (time.Duration, bool) {
	var te *transientError
	if errors.As(err, &te) && te.hasDelay {
		return te.delay, true
	}
	return 0, false
}

// Do runs fn until it succeeds, returns a non-transient error, the context
// is cancelled, or the attempt budget is exhausted. Exhaustion wraps the
// last transient error.
func (p Policy) Do(ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) error) error {
	p = p.normalized()
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.BaseDelay << uint(attempt-1)
		if delay > p.MaxDelay {
			delay = p.MaxDelay
		}
		if d, ok := serverDelay(err); ok {
			delay = d
		}
		logger.Warn("transient failure, retrying",
			"op", op, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s: %d attempts exhausted: %w", op, p.MaxAttempts, lastErr)
}
