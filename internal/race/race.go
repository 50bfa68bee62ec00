// Package race provides N-way race primitives over bounded network calls.
// Every external fetch in the discovery and quote paths goes through one of
// these two helpers so that timeout and cancellation handling lives in one
// place instead of at each call site.
package race

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAllFailed is returned by First when every contender failed.
var ErrAllFailed = errors.New("race: all contenders failed")

// Result holds one contender's outcome from SettleAll.
type Result[T any] struct {
	Name  string
	Value T
	Err   error
	Took  time.Duration
}

// Fn is a single bounded contender. Implementations must honor ctx.
type Fn[T any] struct {
	Name string
	Run  func(ctx context.Context) (T, error)
}

// SettleAll launches all contenders concurrently under a shared deadline and
// waits for every one to settle. Individual failures do not fail the race;
// the caller merges whichever results carry a nil Err.
func SettleAll[T any](ctx context.Context, timeout time.Duration, fns []Fn[T]) []Result[T] {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make([]Result[T], len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func(i int, fn Fn[T]) {
			defer wg.Done()
			start := time.Now()
			v, err := fn.Run(ctx)
			results[i] = Result[T]{Name: fn.Name, Value: v, Err: err, Took: time.Since(start)}
		}(i, fn)
	}
	wg.Wait()
	return results
}

// First launches all contenders concurrently and returns the first success.
// Remaining in-flight calls are cancelled once a winner settles. If every
// contender fails, the last error is wrapped in ErrAllFailed.
func First[T any](ctx context.Context, timeout time.Duration, fns []Fn[T]) (Result[T], error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type settled struct {
		res Result[T]
		ok  bool
	}
	ch := make(chan settled, len(fns))
	for _, fn := range fns {
		go func(fn Fn[T]) {
			start := time.Now()
			v, err := fn.Run(ctx)
			ch <- settled{
				res: Result[T]{Name: fn.Name, Value: v, Err: err, Took: time.Since(start)},
				ok:  err == nil,
			}
		}(fn)
	}

	var lastErr error
	for range fns {
		select {
		case s := <-ch:
			if s.ok {
				return s.res, nil
			}
			lastErr = s.res.Err
		case <-ctx.Done():
			return Result[T]{}, ctx.Err()
		}
	}
	if lastErr == nil {
		return Result[T]{}, ErrAllFailed
	}
	return Result[T]{}, errors.Join(ErrAllFailed, lastErr)
}
