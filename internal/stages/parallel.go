package stages

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// forEach calls fn for indexes 0..n-1 with at most jobs calls in flight.
// Callers store results by index, so output order matches input order
// whatever the completion order. The first error cancels the remaining calls.
func forEach(ctx context.Context, jobs, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return nil
	}
	if jobs <= 1 {
		for i := 0; i < n; i++ {
			if err := fn(ctx, i); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, n))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
