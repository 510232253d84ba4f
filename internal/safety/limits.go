package safety

import "github.com/Ntrondle/pnp-gateway/internal/motion"

// AxisLimits bounds a single axis's travel.
type AxisLimits struct {
	Min float64
	Max float64
}

// Limits is configured once at startup and read-only thereafter (spec
// §3 SafetyLimits). Nothing in this package mutates a Limits value.
type Limits struct {
	Axes                  map[motion.Axis]AxisLimits
	MaxFeedrate           float64
	PWMMin, PWMMax        float64
	VacuumMin, VacuumMax  float64
	MaxFeedDistance       float64
	MaxFeedSpeed          float64
	RequireHomedBeforeMove bool
	GPIOAllowList         []string // empty means unrestricted
	KnownSensors          []string
	// RejectZeroVacuumPower resolves spec §9 Open Question 3: when true,
	// vacuum_on with vacuum_power=0 is rejected as invalid rather than
	// forwarded as "off".
	RejectZeroVacuumPower bool
}

// DefaultLimits returns a permissive-but-sane configuration, overridden by
// internal/config at startup.
func DefaultLimits() Limits {
	return Limits{
		Axes: map[motion.Axis]AxisLimits{
			motion.X: {Min: 0, Max: 300},
			motion.Y: {Min: 0, Max: 300},
			motion.Z: {Min: 0, Max: 100},
		},
		MaxFeedrate:            6000,
		PWMMin:                 0,
		PWMMax:                 255,
		VacuumMin:              0,
		VacuumMax:              255,
		MaxFeedDistance:        500,
		MaxFeedSpeed:           200,
		RequireHomedBeforeMove: true,
		RejectZeroVacuumPower:  false,
	}
}

func (l Limits) gpioAllowed(pin string) bool {
	if len(l.GPIOAllowList) == 0 {
		return true
	}
	for _, p := range l.GPIOAllowList {
		if p == pin {
			return true
		}
	}
	return false
}

func (l Limits) sensorKnown(name string) bool {
	if len(l.KnownSensors) == 0 {
		return true
	}
	for _, s := range l.KnownSensors {
		if s == name {
			return true
		}
	}
	return false
}
