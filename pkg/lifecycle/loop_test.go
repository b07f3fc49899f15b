package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type runRecorder struct {
	mu        sync.Mutex
	successes int
	attempts  []int
}

func (r *runRecorder) OnRunSuccess(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes++
}

func (r *runRecorder) OnRunError(_ error, attempt int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attempt)
}

func TestLoop_OnceRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	task := func(context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("unavailable")
		}
		return nil
	}
	rec := &runRecorder{}
	l := NewLoop(LoopConfig{
		Name:         "test",
		Interval:     time.Hour,
		RetryInitial: time.Millisecond,
		RetryMax:     5 * time.Millisecond,
		Once:         true,
	}, task, nil, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run() = %v, want nil", err)
	}
	if calls.Load() != 3 {
		t.Errorf("task ran %d times, want 3", calls.Load())
	}
	if rec.successes != 1 {
		t.Errorf("successes = %d, want 1", rec.successes)
	}
	if len(rec.attempts) != 2 || rec.attempts[0] != 1 || rec.attempts[1] != 2 {
		t.Errorf("attempts = %v, want [1 2]", rec.attempts)
	}
}

func TestLoop_RunsOnInterval(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := NewLoop(LoopConfig{Interval: 5 * time.Millisecond}, func(context.Context) error {
		if calls.Add(1) == 4 {
			cancel()
		}
		return nil
	}, nil, nil)

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
	if calls.Load() != 4 {
		t.Errorf("task ran %d times, want 4", calls.Load())
	}
}

func TestLoop_StopsWhileBackingOff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	l := NewLoop(LoopConfig{Interval: time.Hour, RetryInitial: time.Hour}, func(context.Context) error {
		return errors.New("down")
	}, nil, nil)

	start := time.Now()
	err := l.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() = %v, want DeadlineExceeded", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("loop ignored context while backing off")
	}
}

func TestBackoff(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, 400*time.Millisecond)

	for _, base := range []time.Duration{100, 200, 400, 400} {
		base *= time.Millisecond
		if b.Current() != base {
			t.Fatalf("Current() = %v, want %v", b.Current(), base)
		}
		d := b.Next()
		lo, hi := time.Duration(float64(base)*0.8), time.Duration(float64(base)*1.2)
		if d < lo || d > hi {
			t.Errorf("Next() = %v, want within [%v, %v]", d, lo, hi)
		}
	}

	b.Reset()
	if b.Current() != 100*time.Millisecond {
		t.Errorf("Current() after Reset = %v", b.Current())
	}
}

func TestBackoff_WaitHonoursContext(t *testing.T) {
	b := NewBackoff(time.Hour, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait() = %v, want context.Canceled", err)
	}
}
