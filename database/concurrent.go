package database

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ConcurrentMapFuncWithError applies f to every input with at most concurrency
// calls in flight and returns the outputs in input order. concurrency == 0
// disables concurrency, a negative value removes the limit. The first error
// cancels the context handed to the remaining calls.
func ConcurrentMapFuncWithError[Tin any, Tout any](ctx context.Context, inputs []Tin, concurrency int, f func(context.Context, Tin) (Tout, error)) ([]Tout, error) {
	eg, ctx := errgroup.WithContext(ctx)
	if concurrency == 0 {
		// disable concurrency
		eg.SetLimit(1)
	} else if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	outputs := make([]Tout, len(inputs))
	for i := range inputs {
		order := i
		in := inputs[i]
		eg.Go(func() error {
			out, err := f(ctx, in)
			if err != nil {
				return err
			}
			outputs[order] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}
