package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "shoutbox/pkg/logx"
)

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestPoolRunsJobs(t *testing.T) {
	p := NewPool(Config{Workers: 2, QueueSize: 8}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		err := p.Enqueue(Job{Name: "n", Run: func(context.Context) error {
			ran.Add(1)
			return nil
		}})
		if err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	waitFor(t, func() bool { return ran.Load() == 5 }, "jobs did not run")
}

func TestPoolRetriesUntilSuccess(t *testing.T) {
	p := NewPool(Config{
		Workers:       1,
		QueueSize:     4,
		RetryMax:      5,
		RetryBase:     time.Millisecond,
		RetryMaxDelay: 5 * time.Millisecond,
	}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var attempts atomic.Int32
	done := make(chan struct{})
	_ = p.Enqueue(Job{Name: "flaky", Run: func(context.Context) error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("job never succeeded")
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestPoolNoRetryRunsOnce(t *testing.T) {
	p := NewPool(Config{
		Workers:   1,
		QueueSize: 4,
		RetryMax:  5,
		RetryBase: time.Millisecond,
	}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)

	var attempts atomic.Int32
	_ = p.Enqueue(Job{Name: "terminal", Run: func(context.Context) error {
		attempts.Add(1)
		return NoRetry(errors.New("bad input"))
	}})

	waitFor(t, func() bool { return attempts.Load() >= 1 }, "job did not run")
	// Give any erroneous retry a chance to fire before asserting.
	time.Sleep(20 * time.Millisecond)
	p.Stop()
	if got := attempts.Load(); got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestPoolRetryAfterHint(t *testing.T) {
	p := NewPool(Config{
		Workers:       1,
		QueueSize:     4,
		RetryMax:      1,
		RetryBase:     time.Hour, // hint must win over the base
		RetryMaxDelay: 50 * time.Millisecond,
	}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var attempts atomic.Int32
	done := make(chan struct{})
	_ = p.Enqueue(Job{Name: "hinted", Run: func(context.Context) error {
		if attempts.Add(1) == 1 {
			return RetryAfter(errors.New("throttled"), 5*time.Millisecond)
		}
		close(done)
		return nil
	}})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry did not fire within the hinted delay")
	}
}

func TestPoolPanicIsolated(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 4}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	_ = p.Enqueue(Job{Name: "boom", Run: func(context.Context) error {
		panic("kaboom")
	}})
	var ran atomic.Int32
	_ = p.Enqueue(Job{Name: "after", Run: func(context.Context) error {
		ran.Add(1)
		return nil
	}})
	waitFor(t, func() bool { return ran.Load() == 1 }, "worker died after panic")
}

func TestPoolQueueFull(t *testing.T) {
	// Never started, so the single slot fills and stays full.
	p := NewPool(Config{Workers: 1, QueueSize: 1}, logx.Nop())
	noop := Job{Name: "n", Run: func(context.Context) error { return nil }}
	if err := p.Enqueue(noop); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := p.Enqueue(noop); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
}

func TestPoolEnqueueAfterStop(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 1}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Stop()

	noop := Job{Name: "n", Run: func(context.Context) error { return nil }}
	if err := p.Enqueue(noop); !errors.Is(err, ErrStopped) {
		t.Fatalf("Enqueue err = %v, want ErrStopped", err)
	}
	if err := p.EnqueueAt(noop, time.Now().Add(time.Hour)); !errors.Is(err, ErrStopped) {
		t.Fatalf("EnqueueAt err = %v, want ErrStopped", err)
	}
}

func TestPoolEnqueueAt(t *testing.T) {
	p := NewPool(Config{Workers: 1, QueueSize: 4}, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var ran atomic.Int32
	start := time.Now()
	err := p.EnqueueAt(Job{Name: "later", Run: func(context.Context) error {
		ran.Add(1)
		return nil
	}}, start.Add(20*time.Millisecond))
	if err != nil {
		t.Fatalf("enqueue at: %v", err)
	}
	if ran.Load() != 0 {
		t.Fatal("job ran before its eta")
	}
	waitFor(t, func() bool { return ran.Load() == 1 }, "delayed job never ran")
	if time.Since(start) < 20*time.Millisecond {
		t.Fatal("job ran early")
	}
}

func TestNoRetryMarker(t *testing.T) {
	base := errors.New("boom")
	if !IsNoRetry(NoRetry(base)) {
		t.Fatal("NoRetry not detected")
	}
	if IsNoRetry(base) {
		t.Fatal("plain error flagged as no-retry")
	}
	if !errors.Is(NoRetry(base), base) {
		t.Fatal("NoRetry must wrap the cause")
	}
	if NoRetry(nil) != nil {
		t.Fatal("NoRetry(nil) must be nil")
	}
}
