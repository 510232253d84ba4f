package template

import "testing"

func TestCompileAndSubstitute(t *testing.T) {
	tpl := Compile("G0 X{x} Y{y} F{feedrate}")
	out, err := tpl.Substitute(Params{"x": 100.0, "y": 50.0, "feedrate": 1500.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "G0 X100.000 Y50.000 F1500.000"
	if out != want {
		t.Fatalf("got %q want %q", out, want)
	}
}

func TestSubstituteMissingParam(t *testing.T) {
	tpl := Compile("G0 X{x}")
	_, err := tpl.Substitute(Params{})
	if err == nil {
		t.Fatal("expected missing parameter error")
	}
	me, ok := err.(*MissingParamError)
	if !ok {
		t.Fatalf("expected *MissingParamError, got %T", err)
	}
	if me.Name != "x" {
		t.Fatalf("expected missing param x, got %s", me.Name)
	}
}

func TestSubstituteIntSpecifier(t *testing.T) {
	tpl := Compile("STEPS={steps:int}")
	out, err := tpl.Substitute(Params{"steps": 11.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "STEPS=11" {
		t.Fatalf("got %q", out)
	}
}

func TestSubstituteIdempotentOnLiteralBraces(t *testing.T) {
	// A value that happens to render with no braces should never be
	// re-scanned for placeholders on a second substitution pass.
	tpl := Compile("SET_PIN VALUE={value}")
	out, err := tpl.Substitute(Params{"value": 0.5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	again := Compile(out)
	out2, err := again.Substitute(Params{})
	if err != nil {
		t.Fatalf("re-substitution of a literal string must not require params: %v", err)
	}
	if out2 != out {
		t.Fatalf("expected idempotent output, got %q want %q", out2, out)
	}
}

func TestSubstituteBooleanAndString(t *testing.T) {
	tpl := Compile("GPIO {pin}={state}")
	out, err := tpl.Substitute(Params{"pin": "P1", "state": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "GPIO P1=1" {
		t.Fatalf("got %q", out)
	}
}
