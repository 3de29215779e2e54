package param

import (
	"fmt"
	"math"
	"strings"
)

// Curve selects the response applied when mapping a normalized input onto a range.
type Curve int

const (
	Linear Curve = iota
	Exponential
	Logarithmic
	Cube
)

// logFloor replaces a non-positive minimum before taking its logarithm.
const logFloor = 0.0000001

var curveNames = map[Curve]string{
	Linear:      "linear",
	Exponential: "exp",
	Logarithmic: "log",
	Cube:        "cube",
}

func (c Curve) String() string {
	if s, ok := curveNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Curve(%d)", int(c))
}

// Valid reports whether c is one of the known curves.
func (c Curve) Valid() bool {
	_, ok := curveNames[c]
	return ok
}

// ParseCurve accepts the short names printed by String as well as a few
// long-form aliases ("exponential", "logarithmic", "cubic").
func ParseCurve(s string) (Curve, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear", "lin":
		return Linear, nil
	case "exp", "exponential":
		return Exponential, nil
	case "log", "logarithmic":
		return Logarithmic, nil
	case "cube", "cubic":
		return Cube, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCurve, s)
}

// Range is an output range plus the log bounds the logarithmic curve needs.
// Build it with NewRange so the cached bounds always match Min and Max.
type Range struct {
	Min, Max     float32
	lnMin, lnMax float32
}

// NewRange derives the log bounds for [min, max]. A non-positive min is floored
// to 1e-7; max is taken as given and must be positive for Logarithmic.
func NewRange(min, max float32) Range {
	lo := min
	if lo < logFloor {
		lo = logFloor
	}
	return Range{
		Min:   min,
		Max:   max,
		lnMin: float32(math.Log(float64(lo))),
		lnMax: float32(math.Log(float64(max))),
	}
}

// Map scales in onto r through curve c. Inputs outside [0, 1] extrapolate;
// nothing is clamped. ok is false for an unknown curve, in which case the
// returned value is meaningless and callers keep their previous result.
func (r Range) Map(in float32, c Curve) (out float32, ok bool) {
	switch c {
	case Linear:
		return in*(r.Max-r.Min) + r.Min, true
	case Exponential:
		return (in*in)*(r.Max-r.Min) + r.Min, true
	case Logarithmic:
		return float32(math.Exp(float64(in*(r.lnMax-r.lnMin) + r.lnMin))), true
	case Cube:
		return (in*(in*in))*(r.Max-r.Min) + r.Min, true
	}
	return 0, false
}

// LogBounds returns the cached natural-log bounds used by Logarithmic.
func (r Range) LogBounds() (lnMin, lnMax float32) {
	return r.lnMin, r.lnMax
}
