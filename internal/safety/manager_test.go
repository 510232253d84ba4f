package safety

import (
	"testing"

	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
)

func TestValidateMoveRejectsOutOfBounds(t *testing.T) {
	limits := DefaultLimits()
	limits.RequireHomedBeforeMove = false
	m := NewManager(limits)
	ctx := motion.New()

	req := command.Request{Kind: command.Move, Parameters: map[string]any{"x": 500.0, "feedrate": 1500.0}}
	violations := m.Validate(req, ctx)
	if len(violations) == 0 {
		t.Fatal("expected axis bounds violation")
	}
	found := false
	for _, v := range violations {
		if v.Check == "axis_bounds" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected axis_bounds violation, got %v", violations)
	}
}

func TestValidateMoveRequiresHoming(t *testing.T) {
	limits := DefaultLimits()
	m := NewManager(limits)
	ctx := motion.New()

	req := command.Request{Kind: command.Move, Parameters: map[string]any{"x": 10.0, "feedrate": 1500.0}}
	violations := m.Validate(req, ctx)
	found := false
	for _, v := range violations {
		if v.Check == "unhomed_axis" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected unhomed_axis violation before homing")
	}

	m.MarkHomed(motion.X)
	violations = m.Validate(req, ctx)
	for _, v := range violations {
		if v.Check == "unhomed_axis" {
			t.Fatalf("did not expect unhomed_axis after MarkHomed: %v", violations)
		}
	}
}

func TestValidatePWMRange(t *testing.T) {
	m := NewManager(DefaultLimits())
	req := command.Request{Kind: command.PWMSet, Parameters: map[string]any{"value": 1.5}}
	violations := m.Validate(req, motion.New())
	if len(violations) == 0 {
		t.Fatal("expected value_range violation")
	}
}

func TestValidateFeederBounds(t *testing.T) {
	m := NewManager(DefaultLimits())
	req := command.Request{Kind: command.FeederAdvance, Parameters: map[string]any{"distance": -1.0}}
	violations := m.Validate(req, motion.New())
	if len(violations) == 0 {
		t.Fatal("expected feed_distance violation for non-positive distance")
	}
}

func TestValidateGPIOWriteDigital(t *testing.T) {
	m := NewManager(DefaultLimits())
	req := command.Request{Kind: command.GPIOWrite, Parameters: map[string]any{"value": 2.0}}
	violations := m.Validate(req, motion.New())
	if len(violations) == 0 {
		t.Fatal("expected gpio_value violation for non-digital value")
	}
}

type fakeTasks struct{ cancelled bool }

func (f *fakeTasks) CancelAll() { f.cancelled = true }

type fakeController struct{ called bool }

func (f *fakeController) EmergencyStop() error { f.called = true; return nil }

type fakeCache struct{ invalidated bool }

func (f *fakeCache) InvalidateAllCategories() { f.invalidated = true }

func TestEmergencyStop(t *testing.T) {
	m := NewManager(DefaultLimits())
	m.MarkHomed(motion.X, motion.Y, motion.Z)

	tasks := &fakeTasks{}
	ctrl := &fakeController{}
	cache := &fakeCache{}

	if err := m.EmergencyStop(tasks, ctrl, cache); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !tasks.cancelled || !ctrl.called || !cache.invalidated {
		t.Fatalf("expected all emergency-stop steps to run: %+v %+v %+v", tasks, ctrl, cache)
	}
	if m.IsHomed(motion.X) {
		t.Fatal("expected homed axes cleared after emergency stop")
	}
}
