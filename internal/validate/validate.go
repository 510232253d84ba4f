// Package validate implements the parameter-validator registry: a predicate
// registry keyed by parameter name, not by command. Registering a predicate
// for "feedrate" applies to every command that declares a feedrate
// parameter. All registered predicates for a name must hold.
package validate

import "fmt"

// Rejection is a structured validator failure.
type Rejection struct {
	Parameter string
	Value     any
	Reason    string
}

func (r Rejection) Error() string {
	return fmt.Sprintf("parameter %s=%v rejected: %s", r.Parameter, r.Value, r.Reason)
}

// Predicate validates a single named parameter's value. It returns a
// non-empty reason string on failure, or "" on success.
type Predicate func(value any) (reason string, ok bool)

// Registry maps parameter name to the predicates that must all hold.
type Registry struct {
	predicates map[string][]Predicate
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{predicates: make(map[string][]Predicate)}
}

// Register adds a predicate for a parameter name. Multiple predicates for
// the same name compose: all must pass.
func (r *Registry) Register(name string, p Predicate) {
	r.predicates[name] = append(r.predicates[name], p)
}

// Validate runs every predicate registered for name against value and
// returns all failures (normally 0 or 1, but composed predicates for the
// same parameter can both fail independently).
func (r *Registry) Validate(name string, value any) []Rejection {
	var out []Rejection
	for _, p := range r.predicates[name] {
		if reason, ok := p(value); !ok {
			out = append(out, Rejection{Parameter: name, Value: value, Reason: reason})
		}
	}
	return out
}

// ValidateAll runs Validate over every entry in params and returns the
// concatenation of all rejections, in parameter-name iteration order.
func (r *Registry) ValidateAll(params map[string]any) []Rejection {
	var out []Rejection
	for name, value := range params {
		out = append(out, r.Validate(name, value)...)
	}
	return out
}

// Common predicate constructors, used by internal/safety to populate a
// Registry from configured SafetyLimits.

// InRange accepts numeric values (float64) within [min, max] inclusive.
func InRange(min, max float64) Predicate {
	return func(value any) (string, bool) {
		f, ok := asFloat(value)
		if !ok {
			return "not a number", false
		}
		if f < min || f > max {
			return fmt.Sprintf("must be within [%v, %v], got %v", min, max, f), false
		}
		return "", true
	}
}

// GreaterThan accepts numeric values strictly greater than min.
func GreaterThan(min float64) Predicate {
	return func(value any) (string, bool) {
		f, ok := asFloat(value)
		if !ok {
			return "not a number", false
		}
		if f <= min {
			return fmt.Sprintf("must be greater than %v, got %v", min, f), false
		}
		return "", true
	}
}

// OneOf accepts values equal (after string conversion) to one of allowed.
func OneOf(allowed ...string) Predicate {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(value any) (string, bool) {
		s, ok := value.(string)
		if !ok {
			return "not a string", false
		}
		if _, ok := set[s]; !ok {
			return fmt.Sprintf("must be one of %v, got %q", allowed, s), false
		}
		return "", true
	}
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
