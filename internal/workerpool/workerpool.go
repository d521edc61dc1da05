// Package workerpool provides the bounded-concurrency fan-out substrate
// (C11) used by the detector's per-file unit extraction, built on
// golang.org/x/sync/errgroup — declared but unused in the
// teacher's go.mod, given a real home here.
package workerpool

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/codedup/internal/types"
)

// RunBatch runs fn over every item in items with at most limit concurrent
// in flight, collecting results in input order. A per-item error never
// aborts the batch — it is attached to that item's types.Result and the
// caller decides whether a partial-failure batch is acceptable.
func RunBatch[T, R any](ctx context.Context, items []T, limit int, fn func(context.Context, T) (R, error)) []types.Result[R] {
	if limit <= 0 {
		limit = 1
	}

	results := make([]types.Result[R], len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = types.Result[R]{Err: err}
				return nil
			}
			v, err := fn(gctx, item)
			results[i] = types.Result[R]{Value: v, Err: err}
			return nil // per-item errors never abort the batch
		})
	}

	_ = g.Wait()
	return results
}
