package translate

import (
	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
	"github.com/Ntrondle/pnp-gateway/internal/template"
)

// Compiled once at package init and reused across every Translator
// instance (templates are immutable after Compile).
var (
	moveTemplate        = template.Compile("G0 X{x:int} Y{y:int} Z{z:int} F{feedrate:int}")
	homeTemplate        = template.Compile("G28 {axes}")
	fanSpeedTemplate    = template.Compile("SET_FAN_SPEED FAN=vacuum SPEED={pwm}")
	fanOffTemplate      = template.Compile("SET_FAN_SPEED FAN=vacuum SPEED=0.000")
	pwmSetTemplate      = template.Compile("SET_PIN PIN={pin} VALUE={value}")
	gpioWriteTemplate   = template.Compile("SET_PIN PIN={pin} VALUE={value:int}")
	servoTemplate       = template.Compile("SET_SERVO SERVO={actuator} ANGLE={position:int}")
	actuatorOnTemplate  = template.Compile("SET_PIN PIN={actuator} VALUE=1")
	actuatorOffTemplate = template.Compile("SET_PIN PIN={actuator} VALUE=0")
	feederTemplate      = template.Compile("MANUAL_STEPPER STEPPER=feeder MOVE={distance} SPEED={speed}")
)

// fillFeedrate supplies the Context's current feedrate when a move-family
// command omits one (spec §4.D step 2).
func fillFeedrate(params map[string]any, ctx *motion.Context) {
	if _, ok := params["feedrate"]; !ok {
		params["feedrate"] = ctx.Feedrate()
	}
}

// fillAxesFromContext supplies the Context's last commanded position for
// any of x/y/z a move-family command didn't include, so the fixed
// templates below can always render a full X/Y/Z/F line even when the
// caller only supplied the axes actually changing.
func fillAxesFromContext(params map[string]any, ctx *motion.Context) {
	fillFeedrate(params, ctx)
	for _, axis := range []motion.Axis{motion.X, motion.Y, motion.Z} {
		name := string(axis)
		if _, ok := params[name]; !ok {
			params[name] = ctx.Get(axis)
		}
	}
}

// moveMutation advances the Motion Context per spec §3: absolute mode
// overwrites position[axis] with the supplied parameter, relative mode
// adds it. Only axes present in the original request are touched — the
// context-filled values used for rendering the command line never
// themselves re-enter the context as if the caller had supplied them.
func moveMutation(ctx *motion.Context, req command.Request) {
	deltas := make(map[motion.Axis]float64, 3)
	for _, axis := range []motion.Axis{motion.X, motion.Y, motion.Z} {
		if v, ok := req.Float(string(axis)); ok {
			deltas[axis] = v
		}
	}
	ctx.ApplyMove(ctx.Mode(), deltas)
}

// remap builds a step-local parameter map by reading named source keys
// out of the full filled parameter set under new destination names, with
// every other key passed through unchanged. Used for pick/place/
// pick_and_place where two steps need the same "z" placeholder filled
// from different source parameters (pick_height vs place_height).
func remap(rename map[string]string) func(map[string]any) map[string]any {
	return func(params map[string]any) map[string]any {
		out := make(map[string]any, len(params)+len(rename))
		for k, v := range params {
			out[k] = v
		}
		for dst, src := range rename {
			if v, ok := params[src]; ok {
				out[dst] = v
			}
		}
		return out
	}
}

// vacuumPWM computes PWM = power/255 per spec §4.D's vacuum_on edge case,
// exposed as a parameter named "pwm" the fan-speed template renders.
func vacuumPWM(params map[string]any) map[string]any {
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	power, _ := toFloat(params["power"])
	out["pwm"] = power / 255.0
	return out
}

// placeMutation advances x/y to the place target and z to safe_height —
// the resting position after place's or pick_and_place's final ascend.
func placeMutation(ctx *motion.Context, req command.Request) {
	deltas := make(map[motion.Axis]float64, 3)
	if v, ok := req.Float("place_x"); ok {
		deltas[motion.X] = v
	}
	if v, ok := req.Float("place_y"); ok {
		deltas[motion.Y] = v
	}
	if v, ok := req.Float("safe_height"); ok {
		deltas[motion.Z] = v
	}
	ctx.ApplyMove(ctx.Mode(), deltas)
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	}
	return 0, false
}

func registerStandardCommands(t *Translator) {
	t.Register(command.Move, Def{
		Steps:       []Step{{Template: moveTemplate}},
		FillContext: fillAxesFromContext,
		Mutation:    moveMutation,
	})

	t.Register(command.Home, Def{
		Steps:    []Step{{Template: homeTemplate}},
		Defaults: map[string]any{"axes": "all"},
	})

	t.Register(command.VacuumOn, Def{
		Steps: []Step{{Template: fanSpeedTemplate, Remap: vacuumPWM}},
	})

	t.Register(command.VacuumOff, Def{
		Steps: []Step{{Template: fanOffTemplate}},
	})

	t.Register(command.VacuumSet, Def{
		Steps: []Step{{Template: fanSpeedTemplate, Remap: vacuumPWM}},
	})

	t.Register(command.PWMSet, Def{
		Steps: []Step{{Template: pwmSetTemplate}},
	})

	t.Register(command.GPIOWrite, Def{
		Steps: []Step{{Template: gpioWriteTemplate}},
	})

	t.Register(command.ActuatorActuate, Def{
		Steps: []Step{{Template: servoTemplate}},
	})

	t.Register(command.ActuatorOn, Def{
		Steps: []Step{{Template: actuatorOnTemplate}},
	})

	t.Register(command.ActuatorOff, Def{
		Steps: []Step{{Template: actuatorOffTemplate}},
	})

	t.Register(command.FeederAdvance, Def{
		Steps:    []Step{{Template: feederTemplate}},
		Defaults: map[string]any{"speed": 50.0},
	})

	// pick: travel to the pick XY at safe height, descend to pick height,
	// engage vacuum, ascend back to safe height (spec §4.D edge case,
	// first half of pick_and_place's fixed expansion).
	t.Register(command.Pick, Def{
		Steps: []Step{
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "safe_height"})},
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "pick_height"})},
			{Template: fanSpeedTemplate, Remap: vacuumPWM},
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "safe_height"})},
		},
		FillContext: fillAxesFromContext,
		Mutation: func(ctx *motion.Context, req command.Request) {
			deltas := make(map[motion.Axis]float64, 3)
			if v, ok := req.Float("x"); ok {
				deltas[motion.X] = v
			}
			if v, ok := req.Float("y"); ok {
				deltas[motion.Y] = v
			}
			if v, ok := req.Float("safe_height"); ok {
				deltas[motion.Z] = v
			}
			ctx.ApplyMove(ctx.Mode(), deltas)
		},
	})

	// place: travel to the place XY at safe height, descend to place
	// height, release vacuum, ascend back to safe height.
	t.Register(command.Place, Def{
		Steps: []Step{
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "safe_height"})},
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "place_height"})},
			{Template: fanOffTemplate},
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "safe_height"})},
		},
		FillContext: fillAxesFromContext,
		Mutation: placeMutation,
	})

	// pick_and_place: the fixed eight-step sequence of spec §4.D / S3 —
	// pick's four steps followed by place's four steps, sharing one
	// parameter set (x/y for pick, place_x/place_y for place).
	t.Register(command.PickAndPlace, Def{
		Steps: []Step{
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "safe_height"})},
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "pick_height"})},
			{Template: fanSpeedTemplate, Remap: vacuumPWM},
			{Template: moveTemplate, Remap: remap(map[string]string{"z": "safe_height"})},
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "safe_height"})},
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "place_height"})},
			{Template: fanOffTemplate},
			{Template: moveTemplate, Remap: remap(map[string]string{"x": "place_x", "y": "place_y", "z": "safe_height"})},
		},
		FillContext: fillAxesFromContext,
		Mutation: placeMutation,
	})
}
