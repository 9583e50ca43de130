package pipe_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbytex91/addonx/internal/pipe"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestFanOutIsolatesFailures(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var mu sync.Mutex
	var failed []int
	items := []string{"fast", "slow", "broken", "panics"}
	start := time.Now()
	got := pipe.FanOut(context.Background(), items, func(ctx context.Context, item string) ([]string, error) {
		switch item {
		case "fast":
			return []string{"a", "b"}, nil
		case "slow":
			<-ctx.Done()
			return nil, ctx.Err()
		case "broken":
			return nil, errors.New("500")
		default:
			panic("boom")
		}
	}, pipe.Timeout(200*time.Millisecond), pipe.OnError(func(index int, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed = append(failed, index)
	}))

	assert.ElementsMatch(t, []string{"a", "b"}, got)
	assert.Less(t, time.Since(start), time.Second)
	assert.ElementsMatch(t, []int{1, 2, 3}, failed)
}

func TestFanOutTimeoutIgnoringContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	var timedOut atomic.Bool
	start := time.Now()
	got := pipe.FanOut(context.Background(), []int{1, 2}, func(ctx context.Context, item int) ([]int, error) {
		if item == 2 {
			<-release
		}
		return []int{item}, nil
	}, pipe.Timeout(100*time.Millisecond), pipe.OnError(func(_ int, err error) {
		timedOut.Store(errors.Is(err, pipe.ErrTaskTimeout))
	}))

	assert.Equal(t, []int{1}, got)
	assert.True(t, timedOut.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestFanOutRespectsConcurrency(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var inFlight, peak atomic.Int32
	items := make([]int, 20)
	got := pipe.FanOut(context.Background(), items, func(ctx context.Context, item int) ([]int, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return []int{item}, nil
	}, pipe.Concurrency(3))

	assert.Len(t, got, 20)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFanOutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := pipe.FanOut(ctx, []int{1, 2, 3}, func(ctx context.Context, item int) ([]int, error) {
		return []int{item}, nil
	}, pipe.Concurrency(1))

	assert.Empty(t, got)
}
