package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_CollectsFailuresWithoutStoppingSiblings(t *testing.T) {
	t.Parallel()
	var visited atomic.Int32
	items := []string{"a", "b", "c", "d"}

	failures := ForEach(context.Background(), items, 2, func(_ context.Context, item string) error {
		visited.Add(1)
		if item == "b" || item == "d" {
			return errors.New("boom " + item)
		}
		return nil
	})

	assert.Equal(t, int32(4), visited.Load())
	require.Len(t, failures, 2)
	var failed []string
	for _, f := range failures {
		failed = append(failed, f.Item)
		assert.ErrorContains(t, f.Err, "boom")
	}
	assert.ElementsMatch(t, []string{"b", "d"}, failed)
}

func TestForEach_RespectsLimit(t *testing.T) {
	t.Parallel()
	var current, maxSeen atomic.Int32
	items := make([]int, 8)

	ForEach(context.Background(), items, 3, func(_ context.Context, _ int) error {
		c := current.Add(1)
		for {
			old := maxSeen.Load()
			if c <= old || maxSeen.CompareAndSwap(old, c) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		current.Add(-1)
		return nil
	})

	assert.LessOrEqual(t, maxSeen.Load(), int32(3))
	assert.Positive(t, maxSeen.Load())
}

func TestForEach_DefaultLimitForNonPositive(t *testing.T) {
	t.Parallel()
	var count atomic.Int32
	failures := ForEach(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, _ int) error {
		count.Add(1)
		return nil
	})
	assert.Empty(t, failures)
	assert.Equal(t, int32(3), count.Load())
}

func TestForEach_Empty(t *testing.T) {
	t.Parallel()
	called := false
	failures := ForEach(context.Background(), []int(nil), 4, func(_ context.Context, _ int) error {
		called = true
		return nil
	})
	assert.Nil(t, failures)
	assert.False(t, called)
}
