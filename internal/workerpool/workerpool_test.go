package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

// TestMain ensures RunBatch never leaks a worker goroutine past the point
// its errgroup.Wait() returns, across every test in this package.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}

func TestRunBatchPreservesOrder(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	results := RunBatch(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	for i, r := range results {
		assert.NoError(t, r.Err)
		assert.Equal(t, items[i]*items[i], r.Value)
	}
}

func TestRunBatchPerItemErrorDoesNotAbortBatch(t *testing.T) {
	items := []int{1, 2, 3}
	results := RunBatch(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		if n == 2 {
			return 0, errors.New("boom")
		}
		return n, nil
	})

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRunBatchRespectsLimit(t *testing.T) {
	var inFlight, maxInFlight int64
	items := make([]int, 20)
	RunBatch(context.Background(), items, 3, func(_ context.Context, _ int) (int, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			m := atomic.LoadInt64(&maxInFlight)
			if cur <= m || atomic.CompareAndSwapInt64(&maxInFlight, m, cur) {
				break
			}
		}
		atomic.AddInt64(&inFlight, -1)
		return 0, nil
	})

	assert.LessOrEqual(t, atomic.LoadInt64(&maxInFlight), int64(3))
}

func TestRunBatchStopsSchedulingAfterCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []int{1, 2, 3}
	results := RunBatch(ctx, items, 2, func(_ context.Context, n int) (int, error) {
		return n, nil
	})

	for _, r := range results {
		assert.Error(t, r.Err)
	}
}
