// Package pipe runs one task per input concurrently under a worker cap and a per-task
// deadline, and fans the partial results back in.
package pipe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	defaultConcurrency = 8
	defaultTimeout     = 5 * time.Second
)

// ErrTaskTimeout is reported for a task that outlived its deadline.
var ErrTaskTimeout = errors.New("pipe: task timed out")

type config struct {
	concurrency int
	timeout     time.Duration
	reportError func(index int, err error)
}

type Option func(*config)

// Concurrency caps the number of tasks in flight.
func Concurrency(concurrency int) Option {
	return func(c *config) {
		if concurrency > 0 {
			c.concurrency = concurrency
		}
	}
}

// Timeout bounds every task independently. The clock starts once a worker slot is acquired.
func Timeout(timeout time.Duration) Option {
	return func(c *config) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// OnError is called with the input index of every failed task.
func OnError(fn func(index int, err error)) Option {
	return func(c *config) {
		c.reportError = fn
	}
}

// FanOut calls fn for every item and concatenates what succeeded, in completion order.
// A task that errors, panics or exceeds its deadline contributes nothing and never affects
// the others. Cancelling ctx abandons the tasks still queued or running.
func FanOut[T, R any](ctx context.Context, items []T, fn func(ctx context.Context, item T) ([]R, error), opts ...Option) []R {
	cfg := &config{
		concurrency: defaultConcurrency,
		timeout:     defaultTimeout,
		reportError: func(int, error) {},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	slots := make(chan struct{}, cfg.concurrency)
	outCh := make(chan []R, len(items))

	wg := &sync.WaitGroup{}
	for i, item := range items {
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
			case <-ctx.Done():
				cfg.reportError(i, ctx.Err())
				return
			}
			defer func() { <-slots }()

			taskCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
			defer cancel()

			outs, err := runTask(taskCtx, fn, item)
			if err != nil {
				cfg.reportError(i, err)
				return
			}
			outCh <- outs
		}()
	}
	wg.Wait()
	close(outCh)

	results := []R{}
	for outs := range outCh {
		results = append(results, outs...)
	}
	return results
}

type taskResult[R any] struct {
	outs []R
	err  error
}

// runTask returns as soon as ctx is done, even when fn does not watch ctx itself.
func runTask[T, R any](ctx context.Context, fn func(ctx context.Context, item T) ([]R, error), item T) ([]R, error) {
	doneCh := make(chan taskResult[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				doneCh <- taskResult[R]{err: fmt.Errorf("pipe: task panicked: %v", r)}
			}
		}()
		outs, err := fn(ctx, item)
		doneCh <- taskResult[R]{outs: outs, err: err}
	}()

	select {
	case res := <-doneCh:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrTaskTimeout, res.err)
		}
		return res.outs, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTaskTimeout
		}
		return nil, ctx.Err()
	}
}
