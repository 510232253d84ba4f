package controller

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for unit tests that exercise the
// Dispatcher and Task Supervisor without a real controller. Every call
// is recorded in order so tests can assert dispatch sequencing (spec
// §8 scenario S3).
type Fake struct {
	mu sync.Mutex

	Commands []string
	Status   map[string]any
	Objects  map[string]any
	Version  map[string]any

	FailNextCommand bool
	StopCalled      bool
	Closed          bool

	statusCalls int
}

// NewFake constructs a Fake with empty mappings, ready to use.
func NewFake() *Fake {
	return &Fake{
		Status:  map[string]any{},
		Objects: map[string]any{},
		Version: map[string]any{},
	}
}

func (f *Fake) RunCommand(ctx context.Context, line string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNextCommand {
		f.FailNextCommand = false
		return &Error{Message: "fake: forced failure"}
	}
	f.Commands = append(f.Commands, line)
	return nil
}

func (f *Fake) QueryObjects(ctx context.Context, objects map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.Objects))
	for k, v := range f.Objects {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) GetStatus(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	out := make(map[string]any, len(f.Status))
	for k, v := range f.Status {
		out[k] = v
	}
	return out, nil
}

// StatusCallCount reports how many times GetStatus has been invoked, for
// tests asserting cache-read-through coalesces repeated queries.
func (f *Fake) StatusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *Fake) EmergencyStop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopCalled = true
	return nil
}

func (f *Fake) GetVersion(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]any, len(f.Version))
	for k, v := range f.Version {
		out[k] = v
	}
	return out, nil
}

func (f *Fake) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
}

// CommandsSnapshot returns a copy of every command line recorded so far.
func (f *Fake) CommandsSnapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.Commands))
	copy(out, f.Commands)
	return out
}
