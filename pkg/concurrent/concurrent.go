package concurrent

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers normalises a worker count: values below one mean GOMAXPROCS.
func Workers(n int) int {
	if n < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// ForEach runs action for each element in at most workers goroutines.
// It waits for all goroutines to finish and returns the first error encountered.
// The context passed to action is cancelled after the first error.
func ForEach[T any](ctx context.Context, in []T, workers int, action func(context.Context, int, T) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))

	for idx, value := range in {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return action(gctx, idx, value)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// ParallelMap applies mapFn to each element in parallel, preserving order.
// The workers parameter controls the number of goroutines.
func ParallelMap[T any, R any](ctx context.Context, in []T, workers int, mapFn func(context.Context, T) (R, error)) ([]R, error) {
	out := make([]R, len(in))
	err := ForEach(ctx, in, workers, func(ctx context.Context, i int, v T) error {
		r, err := mapFn(ctx, v)
		if err != nil {
			return err
		}
		out[i] = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Batches splits n elements into contiguous [start, end) batches of at most size
// elements each. A size below one yields one batch per element.
func Batches(n, size int) [][2]int {
	if size < 1 {
		size = 1
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}
