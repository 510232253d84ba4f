package tasks

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSpawnRunsBody(t *testing.T) {
	s := New(nil)
	done := make(chan struct{})
	s.Spawn("k", func(ctx context.Context) { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("body did not run")
	}
}

// TestSpawnPreemptsExisting covers spec §4.H / S6: spawning a new task at
// a key already in use cancels the old one first, and at most one task
// for that key exists at any time.
func TestSpawnPreemptsExisting(t *testing.T) {
	s := New(nil)
	firstCancelled := make(chan struct{})
	firstStarted := make(chan struct{})

	s.Spawn("ramp:P1", func(ctx context.Context) {
		close(firstStarted)
		<-ctx.Done()
		close(firstCancelled)
	})
	<-firstStarted

	secondDone := make(chan struct{})
	s.Spawn("ramp:P1", func(ctx context.Context) { close(secondDone) })

	select {
	case <-firstCancelled:
	case <-time.After(time.Second):
		t.Fatal("expected first task to be cancelled before the second installs")
	}
	select {
	case <-secondDone:
	case <-time.After(time.Second):
		t.Fatal("expected second task to run")
	}
}

func TestCancelAllCancelsEveryTask(t *testing.T) {
	s := New(nil)
	var running int32
	for i := 0; i < 5; i++ {
		key := string(rune('a' + i))
		s.Spawn(key, func(ctx context.Context) {
			atomic.AddInt32(&running, 1)
			<-ctx.Done()
			atomic.AddInt32(&running, -1)
		})
	}
	time.Sleep(20 * time.Millisecond)
	s.CancelAll()

	if s.ActiveCount() != 0 {
		t.Fatalf("expected no active tasks after CancelAll, got %d", s.ActiveCount())
	}
	if atomic.LoadInt32(&running) != 0 {
		t.Fatalf("expected every task to have observed cancellation, running=%d", running)
	}
}

func TestRampBodyEmitsEvenlySpacedSteps(t *testing.T) {
	var values []float64
	setter := func(ctx context.Context, pin string, value float64) error {
		values = append(values, value)
		return nil
	}
	body := RampBody(RampParams{Pin: "P1", Start: 0, End: 1, Duration: 20 * time.Millisecond, Steps: 5}, setter, nil)
	body(context.Background())

	if len(values) != 5 {
		t.Fatalf("expected 5 steps, got %d", len(values))
	}
	if values[0] != 0 || values[4] != 1 {
		t.Fatalf("expected first/last step at start/end, got %v", values)
	}
}

func TestRampBodyAbortsOnSetterError(t *testing.T) {
	calls := 0
	setter := func(ctx context.Context, pin string, value float64) error {
		calls++
		if calls == 2 {
			return errBoom
		}
		return nil
	}
	body := RampBody(RampParams{Pin: "P1", Start: 0, End: 1, Duration: 10 * time.Millisecond, Steps: 5}, setter, nil)
	body(context.Background())

	if calls != 2 {
		t.Fatalf("expected ramp to abort after the failing step, got %d calls", calls)
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

var errBoom = simpleErr("boom")
