package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopPostRunsOnLoop(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() { _ = loop.Run(ctx) }()

	loop.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted task did not run")
	}
}

func TestLoopEveryUntilCancelled(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	var count atomic.Int32
	reached := make(chan struct{})
	h := loop.Every(5*time.Millisecond, func() {
		if count.Add(1) == 3 {
			close(reached)
		}
	})

	select {
	case <-reached:
	case <-time.After(2 * time.Second):
		t.Fatalf("periodic task ran %d times, want at least 3", count.Load())
	}

	h.Cancel()
	time.Sleep(10 * time.Millisecond)
	before := count.Load()
	time.Sleep(30 * time.Millisecond)
	if got := count.Load(); got != before {
		t.Errorf("periodic task kept running after cancel: %d -> %d", before, got)
	}
	if !h.Cancelled() {
		t.Error("Cancelled() = false after Cancel()")
	}
}

func TestLoopRunStopsOnContext(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()
	cancel()

	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestLoopPanickingTimerIsUnregistered(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	var runs atomic.Int32
	h := loop.Every(time.Millisecond, func() {
		runs.Add(1)
		panic("boom")
	})

	deadline := time.Now().Add(2 * time.Second)
	for !h.Cancelled() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !h.Cancelled() {
		t.Fatal("panicking timer was not cancelled")
	}
	time.Sleep(20 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("panicking timer ran %d times, want 1", got)
	}
}

func TestManualStep(t *testing.T) {
	m := NewManual()
	var posted, ticks int

	m.Post(func() { posted++ })
	h := m.Every(100*time.Millisecond, func() { ticks++ })

	m.Step()
	m.Step()
	if posted != 1 {
		t.Errorf("posted ran %d times, want 1", posted)
	}
	if ticks != 2 {
		t.Errorf("ticks = %d, want 2", ticks)
	}

	h.Cancel()
	h.Cancel()
	m.Step()
	if ticks != 2 {
		t.Errorf("ticks after cancel = %d, want 2", ticks)
	}
	if m.Active() != 0 {
		t.Errorf("Active() = %d, want 0", m.Active())
	}
}
