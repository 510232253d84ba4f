// Package motion holds the gateway's authoritative per-connection motion
// state: positioning mode, units, feedrate, and last commanded position.
package motion

// PositioningMode selects how move targets are interpreted.
type PositioningMode string

const (
	Absolute PositioningMode = "absolute"
	Relative PositioningMode = "relative"
)

// Units selects the unit system reported to and by the controller.
type Units string

const (
	Millimeters Units = "mm"
	Inches      Units = "inch"
)

// Axis identifies one of the three linear axes the gateway tracks.
type Axis string

const (
	X Axis = "x"
	Y Axis = "y"
	Z Axis = "z"
)

// DefaultFeedrate is the feedrate a fresh Context starts with.
const DefaultFeedrate = 1500.0

// Context is the mutable motion state shared by one dispatcher instance.
// It is not safe for concurrent use on its own: the dispatcher serializes
// translate-and-mutate phases with its own mutex (see internal/dispatcher).
type Context struct {
	mode     PositioningMode
	units    Units
	feedrate float64
	position map[Axis]float64
}

// New returns a Context in its initial state: absolute positioning,
// millimeters, 1500 feedrate, all axes at zero.
func New() *Context {
	return &Context{
		mode:     Absolute,
		units:    Millimeters,
		feedrate: DefaultFeedrate,
		position: map[Axis]float64{X: 0, Y: 0, Z: 0},
	}
}

// Mode returns the current positioning mode.
func (c *Context) Mode() PositioningMode { return c.mode }

// SetMode changes the positioning mode. It never transforms stored
// positions; only the interpretation of future move parameters changes.
func (c *Context) SetMode(m PositioningMode) { c.mode = m }

// UnitSystem returns the current unit system.
func (c *Context) UnitSystem() Units { return c.units }

// SetUnits changes the unit system. Setting the same value is a no-op.
func (c *Context) SetUnits(u Units) {
	if u == c.units {
		return
	}
	c.units = u
}

// Feedrate returns the current feedrate.
func (c *Context) Feedrate() float64 { return c.feedrate }

// SetFeedrate overwrites the current feedrate.
func (c *Context) SetFeedrate(v float64) { c.feedrate = v }

// Get returns the last commanded position for an axis.
func (c *Context) Get(axis Axis) float64 { return c.position[axis] }

// Set overwrites the stored position for an axis directly, bypassing mode
// interpretation. Used by non-move commands that still affect position
// (e.g. a pick/place step sequence written through ApplyMove instead).
func (c *Context) Set(axis Axis, value float64) { c.position[axis] = value }

// Snapshot returns a copy of the current position map, for diffing against
// pre-translation state in tests (spec §8 property 2).
func (c *Context) Snapshot() map[Axis]float64 {
	out := make(map[Axis]float64, len(c.position))
	for a, v := range c.position {
		out[a] = v
	}
	return out
}

// ApplyMove updates position according to the current positioning mode:
// absolute mode overwrites position[axis] with the supplied target;
// relative mode adds the supplied delta to position[axis]. Only axes
// present in deltasOrTargets are touched.
func (c *Context) ApplyMove(mode PositioningMode, deltasOrTargets map[Axis]float64) {
	for axis, v := range deltasOrTargets {
		switch mode {
		case Relative:
			c.position[axis] += v
		default:
			c.position[axis] = v
		}
	}
}
