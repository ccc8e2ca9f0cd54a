package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunProcessesAllItems(t *testing.T) {
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	var sum atomic.Int64
	Run(context.Background(), items, Options{Pace: time.Microsecond}, func(_ context.Context, v int) error {
		sum.Add(int64(v))
		return nil
	})

	want := int64(50 * 49 / 2)
	if sum.Load() != want {
		t.Errorf("sum = %d, want %d", sum.Load(), want)
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	items := make([]int, 20)

	var inFlight, peak atomic.Int64
	Run(context.Background(), items, Options{Concurrency: 3, Pace: time.Microsecond}, func(_ context.Context, _ int) error {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	if p := peak.Load(); p > 3 {
		t.Errorf("peak concurrency = %d, want <= 3", p)
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	items := []int{0, 1, 2, 3, 4}

	var ok atomic.Int64
	Run(context.Background(), items, Options{Pace: time.Microsecond}, func(_ context.Context, v int) error {
		if v == 2 {
			return errors.New("boom")
		}
		ok.Add(1)
		return nil
	})

	if ok.Load() != 4 {
		t.Errorf("completed = %d, want 4", ok.Load())
	}
}

func TestRunSuppressedErrors(t *testing.T) {
	sentinel := errors.New("expected teardown")
	var suppressed atomic.Int64

	Run(context.Background(), []int{0, 1, 2}, Options{
		Pace: time.Microsecond,
		Suppress: func(err error) bool {
			if errors.Is(err, sentinel) {
				suppressed.Add(1)
				return true
			}
			return false
		},
	}, func(_ context.Context, _ int) error {
		return sentinel
	})

	if suppressed.Load() != 3 {
		t.Errorf("suppressed = %d, want 3", suppressed.Load())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	items := make([]int, 1000)
	var done atomic.Int64
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	Run(ctx, items, Options{Concurrency: 1, Pace: time.Millisecond}, func(_ context.Context, _ int) error {
		done.Add(1)
		return nil
	})

	if done.Load() >= 1000 {
		t.Error("cancellation did not stop the run early")
	}
}

func TestRunEmpty(t *testing.T) {
	Run(context.Background(), nil, Options{}, func(_ context.Context, _ int) error {
		t.Fatal("worker called for empty slice")
		return nil
	})
}
