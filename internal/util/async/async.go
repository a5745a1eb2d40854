package async

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultLimit bounds fan-outs when the caller passes a non-positive limit.
// sshd on the targets refuses more than ~10 concurrent unauthenticated
// sessions, so larger fan-outs only produce spurious failures.
const DefaultLimit = 10

// Failure pairs an item with the error its function returned.
type Failure[T any] struct {
	Item T
	Err  error
}

// ForEach calls fn for every item with at most limit calls in flight.
// Errors are collected, not propagated: one item failing never cancels the
// others. Failures are returned in completion order.
func ForEach[T any](ctx context.Context, items []T, limit int, fn func(context.Context, T) error) []Failure[T] {
	if len(items) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var (
		mu       sync.Mutex
		failures []Failure[T]
	)

	// fn gets the caller's ctx, not a group-derived one: siblings keep
	// running after a failure.
	g := new(errgroup.Group)
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			if err := fn(ctx, item); err != nil {
				mu.Lock()
				failures = append(failures, Failure[T]{Item: item, Err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return failures
}
