package validate

import "github.com/Ntrondle/pnp-gateway/internal/safety"

// FromSafetyLimits builds a Registry whose predicates mirror the numeric
// envelope configured in limits, so the Parameter Validators and the
// Safety Manager are derived from the same source and can never disagree
// (spec §4.C). Axis allow-lists (GPIO pins, sensor names) only get a
// predicate when the corresponding list is non-empty — an empty list means
// "unrestricted" per safety.Limits, and OneOf with zero entries would
// reject every value instead.
func FromSafetyLimits(limits safety.Limits) *Registry {
	r := NewRegistry()

	for axis, lim := range limits.Axes {
		r.Register(string(axis), InRange(lim.Min, lim.Max))
	}

	r.Register("feedrate", GreaterThan(0))
	r.Register("feedrate", InRange(0, limits.MaxFeedrate))

	r.Register("power", InRange(limits.PWMMin, limits.PWMMax))
	r.Register("vacuum_power", InRange(limits.VacuumMin, limits.VacuumMax))

	// Shared by PWMSet's normalized [0,1] target and GPIOWrite's {0,1}
	// value — InRange(0,1) accepts both; GPIOWrite's exact-integer rule is
	// enforced downstream by safety.Manager.validateGPIO.
	r.Register("value", InRange(0, 1))

	r.Register("distance", GreaterThan(0))
	r.Register("distance", InRange(0, limits.MaxFeedDistance))
	r.Register("speed", InRange(0, limits.MaxFeedSpeed))

	if len(limits.GPIOAllowList) > 0 {
		r.Register("pin", OneOf(limits.GPIOAllowList...))
	}
	if len(limits.KnownSensors) > 0 {
		r.Register("sensor", OneOf(limits.KnownSensors...))
	}

	return r
}
