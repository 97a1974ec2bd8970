package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestJobRunsImmediatelyAndOnTicks(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var runs atomic.Int32
	r.Add("counter", 20*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	r.Start(context.Background())
	time.Sleep(70 * time.Millisecond)
	r.Stop()

	if got := runs.Load(); got < 2 {
		t.Errorf("runs = %d, want at least 2 (immediate + ticks)", got)
	}
}

func TestOverlappingRunsSkipped(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var active atomic.Int32
	var overlapped atomic.Bool
	block := make(chan struct{})

	r.Add("slow", 10*time.Millisecond, func(ctx context.Context) error {
		if active.Add(1) > 1 {
			overlapped.Store(true)
		}
		defer active.Add(-1)
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})

	r.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	close(block)
	r.Stop()

	if overlapped.Load() {
		t.Error("two runs of the same job were active concurrently")
	}
}

func TestFailingJobKeepsTicking(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var runs atomic.Int32
	r.Add("flaky", 15*time.Millisecond, func(ctx context.Context) error {
		runs.Add(1)
		return errors.New("boom")
	})

	r.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	r.Stop()

	if got := runs.Load(); got < 2 {
		t.Errorf("runs = %d, want at least 2 despite errors", got)
	}
}

func TestStopWaitsForInFlightRun(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var finished atomic.Bool
	r.Add("graceful", time.Hour, func(ctx context.Context) error {
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})

	r.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	r.Stop()

	if !finished.Load() {
		t.Error("Stop returned before the in-flight run finished")
	}
}

func TestJobsRunIndependently(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var fast atomic.Int32
	block := make(chan struct{})

	r.Add("stuck", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return nil
	})
	r.Add("fast", 10*time.Millisecond, func(ctx context.Context) error {
		fast.Add(1)
		return nil
	})

	r.Start(context.Background())
	time.Sleep(50 * time.Millisecond)
	close(block)
	r.Stop()

	if got := fast.Load(); got < 2 {
		t.Errorf("fast job runs = %d, want at least 2 while sibling was stuck", got)
	}
}
