// Package command defines the closed vocabulary of high-level operations
// the gateway accepts, and the immutable request/result types that flow
// between the REST boundary, the Command Translator, and the Dispatcher.
package command

// Kind is a closed enum of high-level operations. Unknown kinds are
// rejected by the Command Translator with UnknownCommand.
type Kind string

const (
	Move           Kind = "move"
	Home           Kind = "home"
	Pick           Kind = "pick"
	Place          Kind = "place"
	PickAndPlace   Kind = "pick_and_place"
	VacuumOn       Kind = "vacuum_on"
	VacuumOff      Kind = "vacuum_off"
	VacuumSet      Kind = "vacuum_set"
	PWMSet         Kind = "pwm_set"
	PWMRamp        Kind = "pwm_ramp"
	GPIORead       Kind = "gpio_read"
	GPIOWrite      Kind = "gpio_write"
	ActuatorActuate Kind = "actuator_actuate"
	ActuatorOn     Kind = "actuator_on"
	ActuatorOff    Kind = "actuator_off"
	FeederAdvance  Kind = "feeder_advance"
	SensorRead     Kind = "sensor_read"
	Status         Kind = "status"
	SystemInfo     Kind = "system_info"
	Version        Kind = "version"
	QueueList      Kind = "queue_list"
	QueueClear     Kind = "queue_clear"
	BatchExecute   Kind = "batch_execute"
	EmergencyStop  Kind = "emergency_stop"
)

// Family groups kinds that share Safety Manager and cache-invalidation
// behavior (spec §4.E and §4.G's command-family tables).
type Family string

const (
	FamilyMove      Family = "move"
	FamilyPWM       Family = "pwm"
	FamilyVacuum    Family = "vacuum"
	FamilyFeeder    Family = "feeder"
	FamilyGPIO      Family = "gpio"
	FamilyActuator  Family = "actuator"
	FamilySensor    Family = "sensor"
	FamilyHome      Family = "home"
	FamilyQuery     Family = "query"
	FamilyEmergency Family = "emergency"
)

// FamilyOf classifies a Kind into its safety/cache family. Unknown kinds
// map to "" and are rejected upstream by the translator.
func FamilyOf(k Kind) Family {
	switch k {
	case Move:
		return FamilyMove
	case Home:
		return FamilyHome
	case Pick, Place, PickAndPlace:
		return FamilyMove
	case VacuumOn, VacuumOff, VacuumSet:
		return FamilyVacuum
	case PWMSet, PWMRamp:
		return FamilyPWM
	case GPIORead, GPIOWrite:
		return FamilyGPIO
	case ActuatorActuate, ActuatorOn, ActuatorOff:
		return FamilyActuator
	case FeederAdvance:
		return FamilyFeeder
	case SensorRead:
		return FamilySensor
	case Status, SystemInfo, Version, QueueList:
		return FamilyQuery
	case EmergencyStop:
		return FamilyEmergency
	default:
		return ""
	}
}

// IsMutating reports whether a kind changes controller state (vs. a
// read-only query). The Dispatcher uses this to choose cache-read-through
// vs. direct-dispatch handling (spec §4.I step 6). Note this is finer than
// Family: gpio_read and sensor_read share a family with gpio_write and
// sensor validation for Safety Manager purposes, but neither mutates
// controller state or invalidates a cache category.
func IsMutating(k Kind) bool {
	switch k {
	case Status, SystemInfo, Version, QueueList, GPIORead, SensorRead:
		return false
	default:
		return true
	}
}

// Request is an immutable high-level command request: a kind plus named
// scalar parameters (rationals, integers, strings, booleans).
type Request struct {
	Kind       Kind
	Parameters map[string]any
}

// Param returns a parameter value and whether it was present.
func (r Request) Param(name string) (any, bool) {
	v, ok := r.Parameters[name]
	return v, ok
}

// Float returns a parameter as float64, treating ints as floats.
func (r Request) Float(name string) (float64, bool) {
	v, ok := r.Parameters[name]
	if !ok {
		return 0, false
	}
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

// String returns a parameter as a string.
func (r Request) String(name string) (string, bool) {
	v, ok := r.Parameters[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Result is the immutable outcome of translating a Request: an ordered
// sequence of low-level command lines on success, or a diagnostic on
// failure. Constructed once by the Command Translator and never mutated
// afterward.
type Result struct {
	Commands   []string
	Success    bool
	Diagnostic string
}

// Ok constructs a successful Result.
func Ok(commands ...string) Result {
	return Result{Commands: commands, Success: true}
}

// Fail constructs a failed Result with a diagnostic message.
func Fail(diagnostic string) Result {
	return Result{Success: false, Diagnostic: diagnostic}
}
