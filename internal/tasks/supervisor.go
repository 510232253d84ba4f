// Package tasks implements the Task Supervisor: keyed, cancellable
// background work (PWM ramps, batch executions) with preemption-before-
// install semantics and deterministic shutdown (spec §4.H).
package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Body is the function a spawned task runs. It must poll ctx.Done() at
// reasonable checkpoints so Spawn's preemption and CancelAll's shutdown
// can make forward progress within their grace period.
type Body func(ctx context.Context)

// grace bounds how long Spawn and CancelAll wait for a cancelled task to
// observe cancellation before giving up on a clean handoff (spec §4.H:
// "cancel it and wait for it to observe cancellation, bounded by a small
// grace, before installing the new one").
const grace = 2 * time.Second

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Supervisor owns every active task behind one mutex, keyed by a caller-
// chosen string (e.g. "ramp:P1" — spec §3 Task).
type Supervisor struct {
	mu     sync.Mutex
	tasks  map[string]*handle
	logger *slog.Logger
}

// New constructs an empty Supervisor.
func New(logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{tasks: make(map[string]*handle), logger: logger}
}

// Spawn installs body under key, first cancelling and waiting out any
// existing task at that key (spec §4.H: "at most one task per key").
func (s *Supervisor) Spawn(key string, body Body) {
	s.preempt(key)

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.tasks[key] = h
	s.mu.Unlock()

	go func() {
		defer close(h.done)
		defer s.remove(key, h)
		body(ctx)
	}()
}

// preempt cancels the current task at key, if any, and waits up to grace
// for it to exit before returning.
func (s *Supervisor) preempt(key string) {
	s.mu.Lock()
	existing := s.tasks[key]
	s.mu.Unlock()
	if existing == nil {
		return
	}
	existing.cancel()
	select {
	case <-existing.done:
	case <-time.After(grace):
		s.logger.Warn("task did not observe cancellation within grace period", "key", key)
	}
}

// remove clears the task slot for key, but only if it still holds the
// handle that just finished — a newer Spawn may have already replaced it.
func (s *Supervisor) remove(key string, h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[key] == h {
		delete(s.tasks, key)
	}
}

// Cancel requests cancellation of the task at key, if any. Idempotent.
func (s *Supervisor) Cancel(key string) {
	s.mu.Lock()
	h := s.tasks[key]
	s.mu.Unlock()
	if h != nil {
		h.cancel()
	}
}

// CancelAll cancels every active task and waits (bounded by grace, per
// task) for all of them to exit — used for shutdown and for
// emergency_stop (spec §4.H cancel_all, §4.E step a). Satisfies the
// safety.TaskCanceller interface.
func (s *Supervisor) CancelAll() {
	s.mu.Lock()
	handles := make([]*handle, 0, len(s.tasks))
	for _, h := range s.tasks {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		select {
		case <-h.done:
		case <-time.After(grace):
			s.logger.Warn("task did not exit within grace period during cancel_all")
		}
	}
}

// Active reports whether a task is currently running at key.
func (s *Supervisor) Active(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[key]
	return ok
}

// ActiveCount reports how many tasks are currently running, for the
// queue/status endpoints.
func (s *Supervisor) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
