// Package translate implements the Command Translator: it maps a
// high-level command and the live Motion Context into an ordered list of
// low-level commands, via the Parameter Validators and Template Engine,
// and advances the Context once translation succeeds.
package translate

import (
	"fmt"

	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/template"
	"github.com/Ntrondle/pnp-gateway/internal/validate"
)

// Mutation applies a successfully-translated request's effect to the
// Motion Context. It runs only after every validator has passed and the
// template substitution succeeded (spec §4.D step 5 / SPEC_FULL.md §4.2).
type Mutation func(ctx *motion.Context, req command.Request)

// Step is one low-level command emitted during translation: a template
// plus an optional remap from the full, filled parameter set to the
// names that step's template actually references. Remap is what lets a
// fixed multi-step expansion like pick_and_place reuse one "move" template
// for both its descend-to-pick and descend-to-place steps, reading
// different source parameters (pick_height vs place_height) into the same
// placeholder name (z) each time.
type Step struct {
	Template *template.Template
	Remap    func(params map[string]any) map[string]any
}

// ContextFill supplies parameters implicit in the Motion Context (current
// axis positions, feedrate) for any name still missing after Defaults and
// the caller's own parameters have been applied (spec §4.D step 2: "...
// then from Context (e.g. current feedrate)").
type ContextFill func(params map[string]any, ctx *motion.Context)

// Def describes how one command Kind translates: which template(s) to
// render and what defaults and context mutation apply.
type Def struct {
	Steps       []Step
	Defaults    map[string]any
	FillContext ContextFill
	Mutation    Mutation
}

// Translator holds the kind->Def table, shared parameter validators, and
// compiled templates. It does not own the Motion Context; the Dispatcher
// passes one in per call and serializes access.
type Translator struct {
	defs       map[command.Kind]Def
	validators *validate.Registry
}

// New constructs a Translator with the standard command table.
func New(validators *validate.Registry) *Translator {
	t := &Translator{defs: make(map[command.Kind]Def), validators: validators}
	registerStandardCommands(t)
	return t
}

// Register installs or overwrites a command definition. Exposed so tests
// and future command families can extend the table without modifying this
// package.
func (t *Translator) Register(kind command.Kind, def Def) {
	t.defs[kind] = def
}

// Translate runs the six-step algorithm of spec §4.D: resolve kind, fill
// defaults, validate, substitute, mutate context, return commands.
func (t *Translator) Translate(req command.Request, ctx *motion.Context) command.Result {
	def, ok := t.defs[req.Kind]
	if !ok {
		return command.Fail(fmt.Sprintf("unknown command kind %q", req.Kind))
	}

	params := fillParams(req, def, ctx)

	if rejections := t.validators.ValidateAll(params); len(rejections) > 0 {
		return command.Fail(rejections[0].Error())
	}

	var commands []string
	for _, step := range def.Steps {
		stepParams := params
		if step.Remap != nil {
			stepParams = step.Remap(params)
		}
		line, err := step.Template.Substitute(stepParams)
		if err != nil {
			return command.Fail(err.Error())
		}
		commands = append(commands, line)
	}
	if len(commands) == 0 {
		return command.Fail(fmt.Sprintf("command kind %q has no templates", req.Kind))
	}

	if def.Mutation != nil {
		def.Mutation(ctx, req)
	}

	return command.Ok(commands...)
}

// fillParams fills missing parameters from the command's defaults, then
// from implicit Context fields (feedrate, current axis positions), per
// spec §4.D step 2.
func fillParams(req command.Request, def Def, ctx *motion.Context) map[string]any {
	params := make(map[string]any, len(req.Parameters)+len(def.Defaults)+4)
	for k, v := range def.Defaults {
		params[k] = v
	}
	for k, v := range req.Parameters {
		params[k] = v
	}
	if def.FillContext != nil {
		def.FillContext(params, ctx)
	}
	return params
}
