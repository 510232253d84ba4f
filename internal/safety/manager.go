// Package safety implements stateful limit enforcement: axis bounds,
// the homed-axes set, and numerical envelopes per command family.
package safety

import (
	"fmt"
	"sync"

	"github.com/Ntrondle/pnp-gateway/internal/command"
	"github.com/Ntrondle/pnp-gateway/internal/motion"
)

// Violation is one failed safety check, returned alongside others so the
// caller can report every problem in one response (spec §4.E).
type Violation struct {
	Check   string
	Message string
}

// TaskCanceller is the subset of the Task Supervisor the Safety Manager
// needs for EmergencyStop. Defined here (not imported from internal/tasks)
// to avoid a dependency cycle — internal/tasks never needs to know about
// safety.
type TaskCanceller interface {
	CancelAll()
}

// CacheInvalidator is the subset of the State Cache EmergencyStop needs.
type CacheInvalidator interface {
	InvalidateAllCategories()
}

// ControllerEStop issues the controller's own emergency-stop command.
type ControllerEStop interface {
	EmergencyStop() error
}

// Manager enforces spec §4.E's per-family rules and owns HomedAxes.
type Manager struct {
	mu    sync.Mutex
	homed map[motion.Axis]bool
	limits Limits
}

// NewManager constructs a Manager with no axes homed.
func NewManager(limits Limits) *Manager {
	return &Manager{limits: limits, homed: make(map[motion.Axis]bool)}
}

// IsHomed reports whether an axis has been homed since the last reset.
func (m *Manager) IsHomed(axis motion.Axis) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.homed[axis]
}

// MarkHomed records axes as homed. Called by the Dispatcher after the
// controller confirms a home operation succeeded (spec §4.E: "home...
// marks axes as homed on success").
func (m *Manager) MarkHomed(axes ...motion.Axis) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range axes {
		m.homed[a] = true
	}
}

// ClearHomed empties HomedAxes. Called by EmergencyStop.
func (m *Manager) ClearHomed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.homed = make(map[motion.Axis]bool)
}

// Validate runs the per-family checks of spec §4.E against a request and
// the current motion context, returning every violation found (an empty
// slice means the request is permitted).
func (m *Manager) Validate(req command.Request, ctx *motion.Context) []Violation {
	switch command.FamilyOf(req.Kind) {
	case command.FamilyMove:
		return m.validateMove(req, ctx)
	case command.FamilyPWM, command.FamilyVacuum:
		return m.validatePowerLike(req)
	case command.FamilyFeeder:
		return m.validateFeeder(req)
	case command.FamilyGPIO:
		return m.validateGPIO(req)
	case command.FamilySensor:
		return m.validateSensor(req)
	case command.FamilyHome, command.FamilyQuery, command.FamilyEmergency:
		return nil
	default:
		return []Violation{{Check: "unknown_family", Message: fmt.Sprintf("no safety rule for kind %s", req.Kind)}}
	}
}

func (m *Manager) validateMove(req command.Request, ctx *motion.Context) []Violation {
	var violations []Violation

	if fr, ok := req.Float("feedrate"); ok {
		if fr <= 0 || fr > m.limits.MaxFeedrate {
			violations = append(violations, Violation{
				Check:   "feedrate",
				Message: fmt.Sprintf("feedrate %v out of range (0, %v]", fr, m.limits.MaxFeedrate),
			})
		}
	}

	mode := ctx.Mode()
	for _, axis := range []motion.Axis{motion.X, motion.Y, motion.Z} {
		v, ok := req.Float(string(axis))
		if !ok {
			continue
		}
		target := v
		if mode == motion.Relative {
			target = ctx.Get(axis) + v
		}
		lim, known := m.limits.Axes[axis]
		if known && (target < lim.Min || target > lim.Max) {
			violations = append(violations, Violation{
				Check:   "axis_bounds",
				Message: fmt.Sprintf("axis %s target %v outside [%v, %v]", axis, target, lim.Min, lim.Max),
			})
		}
		if m.limits.RequireHomedBeforeMove && !m.IsHomed(axis) {
			violations = append(violations, Violation{
				Check:   "unhomed_axis",
				Message: fmt.Sprintf("unhomed axis %s", axis),
			})
		}
	}
	return violations
}

func (m *Manager) validatePowerLike(req command.Request) []Violation {
	var violations []Violation
	if power, ok := req.Float("power"); ok {
		if power < m.limits.PWMMin || power > m.limits.PWMMax {
			violations = append(violations, Violation{
				Check:   "power_range",
				Message: fmt.Sprintf("power %v outside [%v, %v]", power, m.limits.PWMMin, m.limits.PWMMax),
			})
		}
	}
	if value, ok := req.Float("value"); ok {
		if value < 0.0 || value > 1.0 {
			violations = append(violations, Violation{
				Check:   "value_range",
				Message: fmt.Sprintf("value %v outside [0.0, 1.0]", value),
			})
		}
	}
	if req.Kind == command.VacuumOn && m.limits.RejectZeroVacuumPower {
		if power, ok := req.Float("vacuum_power"); ok && power == 0 {
			violations = append(violations, Violation{
				Check:   "zero_vacuum_power",
				Message: "vacuum_power of 0 is rejected by configuration; use vacuum_off instead",
			})
		}
	}
	return violations
}

func (m *Manager) validateFeeder(req command.Request) []Violation {
	var violations []Violation
	distance, _ := req.Float("distance")
	if distance <= 0 || distance > m.limits.MaxFeedDistance {
		violations = append(violations, Violation{
			Check:   "feed_distance",
			Message: fmt.Sprintf("distance %v must be in (0, %v]", distance, m.limits.MaxFeedDistance),
		})
	}
	if speed, ok := req.Float("speed"); ok && speed > m.limits.MaxFeedSpeed {
		violations = append(violations, Violation{
			Check:   "feed_speed",
			Message: fmt.Sprintf("speed %v exceeds max %v", speed, m.limits.MaxFeedSpeed),
		})
	}
	return violations
}

func (m *Manager) validateGPIO(req command.Request) []Violation {
	var violations []Violation
	if req.Kind == command.GPIOWrite {
		if value, ok := req.Float("value"); ok && value != 0 && value != 1 {
			violations = append(violations, Violation{
				Check:   "gpio_value",
				Message: fmt.Sprintf("gpio value must be 0 or 1, got %v", value),
			})
		}
	}
	if pin, ok := req.String("pin"); ok && !m.limits.gpioAllowed(pin) {
		violations = append(violations, Violation{
			Check:   "gpio_pin",
			Message: fmt.Sprintf("pin %s is not in the configured allow-list", pin),
		})
	}
	return violations
}

func (m *Manager) validateSensor(req command.Request) []Violation {
	var violations []Violation
	if name, ok := req.String("sensor"); ok && !m.limits.sensorKnown(name) {
		violations = append(violations, Violation{
			Check:   "unknown_sensor",
			Message: fmt.Sprintf("unknown sensor type %q", name),
		})
	}
	return violations
}

// EmergencyStop performs spec §4.E's dedicated emergency procedure:
// cancel every active task, dispatch the controller's emergency command,
// clear HomedAxes, and invalidate every cache category. Returns the first
// error encountered, but always completes every step regardless — a
// partial emergency stop that leaves tasks running is worse than one that
// returns an error after doing everything it could.
func (m *Manager) EmergencyStop(tasks TaskCanceller, ctrl ControllerEStop, cache CacheInvalidator) error {
	tasks.CancelAll()
	err := ctrl.EmergencyStop()
	m.ClearHomed()
	cache.InvalidateAllCategories()
	return err
}
