package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy controls how often and how fast an operation is retried.
type Policy struct {
	// Retries is the number of attempts after the first one.
	Retries int
	// Delay is the wait before the first retry. It grows by Factor after
	// every retry up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration
	Factor   float64
	// OnRetry is called before every wait with the 1-based number of the
	// attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy is used for every field an Option leaves untouched.
func DefaultPolicy() Policy {
	return Policy{Retries: 5, Delay: time.Second, MaxDelay: 30 * time.Second, Factor: 2}
}

// Option adjusts a Policy.
type Option func(*Policy)

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(p *Policy) { p.Retries = n }
}

// WithInitialDelay sets the wait before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) { p.Delay = d }
}

// WithMaxDelay caps the wait between attempts.
func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) { p.MaxDelay = d }
}

// WithOnRetry registers a hook run after every failed, retryable attempt.
func WithOnRetry(fn func(attempt int, err error)) Option {
	return func(p *Policy) { p.OnRetry = fn }
}

// Do runs op until it succeeds, returns a Fatal error, the retries run out
// or ctx is done.
func Do(ctx context.Context, op func() error, opts ...Option) error {
	p := DefaultPolicy()
	for _, opt := range opts {
		opt(&p)
	}

	wait := p.Delay
	for attempt := 1; ; attempt++ {
		err := op()
		switch {
		case err == nil:
			return nil
		case IsFatal(err):
			return fmt.Errorf("not retrying: %w", err)
		case attempt > p.Retries:
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if err := sleep(ctx, wait); err != nil {
			return fmt.Errorf("cancelled after %d attempts: %w", attempt, err)
		}
		wait = p.next(wait)
	}
}

func (p Policy) next(d time.Duration) time.Duration {
	if p.Factor > 1 {
		d = time.Duration(float64(d) * p.Factor)
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

// Fatal marks err as not worth retrying. Fatal(nil) is nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// IsFatal reports whether err, or any error it wraps, was marked Fatal.
func IsFatal(err error) bool {
	var f *fatalError
	return errors.As(err, &f)
}
