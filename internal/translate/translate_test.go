package translate

import (
	"strings"
	"testing"

	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/validate"
)

func newTranslator() *Translator {
	return New(validate.NewRegistry())
}

// TestTranslateMoveAbsolute covers testable property 3 (spec §8): an
// absolute move writes position[axis] = parameters[axis] for each
// supplied axis, and scenario S1's expected command line.
func TestTranslateMoveAbsolute(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()

	req := command.Request{Kind: command.Move, Parameters: map[string]any{
		"x": 100.0, "y": 50.0, "z": 10.0, "feedrate": 1500.0,
	}}
	result := tr.Translate(req, ctx)
	if !result.Success {
		t.Fatalf("expected success, got diagnostic %q", result.Diagnostic)
	}
	if len(result.Commands) != 1 {
		t.Fatalf("expected exactly one command, got %v", result.Commands)
	}
	want := "G0 X100 Y50 Z10 F1500"
	if result.Commands[0] != want {
		t.Fatalf("got %q, want %q", result.Commands[0], want)
	}
	if ctx.Get(motion.X) != 100.0 || ctx.Get(motion.Y) != 50.0 || ctx.Get(motion.Z) != 10.0 {
		t.Fatalf("context position not updated: %v", ctx.Snapshot())
	}
}

// TestTranslateMoveRelative covers property 3's relative-mode half.
func TestTranslateMoveRelative(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	ctx.Set(motion.X, 10.0)
	ctx.SetMode(motion.Relative)

	req := command.Request{Kind: command.Move, Parameters: map[string]any{"x": 5.0, "feedrate": 1500.0}}
	result := tr.Translate(req, ctx)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic)
	}
	if ctx.Get(motion.X) != 15.0 {
		t.Fatalf("expected relative move to add delta, got %v", ctx.Get(motion.X))
	}
}

// TestTranslateUnknownKind covers the unknown-kind failure path.
func TestTranslateUnknownKind(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	result := tr.Translate(command.Request{Kind: command.Kind("bogus")}, ctx)
	if result.Success {
		t.Fatal("expected failure for unknown kind")
	}
}

// TestTranslateMissingParamDoesNotMutateContext covers property 2: on
// rejection (here, a substitution failure from a parameter with no
// default and no context fallback), the context is left unchanged.
func TestTranslateMissingParamDoesNotMutateContext(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	before := ctx.Snapshot()

	req := command.Request{Kind: command.GPIOWrite, Parameters: map[string]any{"value": 1.0}}
	result := tr.Translate(req, ctx)
	if result.Success {
		t.Fatal("expected failure: missing required pin parameter")
	}
	if !strings.Contains(result.Diagnostic, "pin") {
		t.Fatalf("expected diagnostic to mention missing pin, got %q", result.Diagnostic)
	}
	after := ctx.Snapshot()
	for axis, v := range before {
		if after[axis] != v {
			t.Fatalf("context mutated on rejection: before=%v after=%v", before, after)
		}
	}
}

// TestTranslateVacuumOnComputesPWM covers the vacuum_on edge case of
// spec §4.D: PWM = power/255.
func TestTranslateVacuumOnComputesPWM(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	req := command.Request{Kind: command.VacuumOn, Parameters: map[string]any{"power": 255.0}}
	result := tr.Translate(req, ctx)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic)
	}
	if !strings.Contains(result.Commands[0], "SPEED=1.000") {
		t.Fatalf("expected normalized PWM of 1.000, got %q", result.Commands[0])
	}
}

// TestTranslatePickAndPlaceSequence covers scenario S3: the fixed
// eight-step pick_and_place expansion in order.
func TestTranslatePickAndPlaceSequence(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()

	req := command.Request{Kind: command.PickAndPlace, Parameters: map[string]any{
		"x": 100.0, "y": 50.0,
		"place_x": 200.0, "place_y": 150.0,
		"pick_height": 5.0, "place_height": 2.0, "safe_height": 10.0,
		"feedrate": 1200.0, "power": 255.0,
	}}
	result := tr.Translate(req, ctx)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic)
	}
	if len(result.Commands) != 8 {
		t.Fatalf("expected 8 commands, got %d: %v", len(result.Commands), result.Commands)
	}

	expectSubstr := []string{"Z10", "Z5", "SPEED=1.000", "Z10", "Z10", "Z2", "SPEED=0.000", "Z10"}
	for i, sub := range expectSubstr {
		if !strings.Contains(result.Commands[i], sub) {
			t.Fatalf("step %d: expected %q to contain %q", i, result.Commands[i], sub)
		}
	}

	if ctx.Get(motion.X) != 200.0 || ctx.Get(motion.Y) != 150.0 || ctx.Get(motion.Z) != 10.0 {
		t.Fatalf("expected final position at place XY and safe height, got %v", ctx.Snapshot())
	}
}

// TestTranslateHomeDefaultsToAllAxes covers the home edge case's default.
func TestTranslateHomeDefaultsToAllAxes(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	result := tr.Translate(command.Request{Kind: command.Home}, ctx)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic)
	}
	if result.Commands[0] != "G28 all" {
		t.Fatalf("got %q", result.Commands[0])
	}
}

// TestTranslateNonEmptySequenceContainsParameters covers property 1.
func TestTranslateNonEmptySequenceContainsParameters(t *testing.T) {
	tr := newTranslator()
	ctx := motion.New()
	req := command.Request{Kind: command.FeederAdvance, Parameters: map[string]any{"distance": 25.0}}
	result := tr.Translate(req, ctx)
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Diagnostic)
	}
	if len(result.Commands) == 0 {
		t.Fatal("expected non-empty command sequence")
	}
	if !strings.Contains(result.Commands[0], "25.000") {
		t.Fatalf("expected supplied distance to appear in output, got %q", result.Commands[0])
	}
}
