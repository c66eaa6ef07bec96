package hunter

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// resolveOrdered calls fn for each index in [0, n) using at most
// workers goroutines. Results are returned in index order regardless
// of the order in which the calls complete.
//
// The first error stops the remaining work. If ctx is cancelled,
// the returned error wraps ErrCancelled.
func resolveOrdered[T any](ctx context.Context, n int, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	results := make([]T, n)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := 0; i < n; i++ {
		if gCtx.Err() != nil {
			break
		}

		i := i

		g.Go(func() error {
			if gCtx.Err() != nil {
				return gCtx.Err()
			}

			result, err := fn(gCtx, i)
			if err != nil {
				return err
			}

			// Each goroutine owns exactly one slot.
			results[i] = result

			return nil
		})
	}

	err := g.Wait()
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}
	if err != nil {
		return nil, err
	}

	return results, nil
}
