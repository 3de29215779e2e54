// Package param maps normalized control readings onto application ranges and
// arbitrates "virtual parameters": several logical parameters sharing one
// physical control, only one of which is live at a time (a shift layer on a
// knob, for example).
//
// A Parameter is not safe for concurrent use. It belongs to the loop that
// calls Process, and SetEnabled must be called from that same loop.
package param

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	ErrUnknownCurve    = errors.New("param: unknown curve")
	ErrUnknownBehavior = errors.New("param: unknown update behavior")
	ErrNoSource        = errors.New("param: no control source")
)

// closeTo is the raw-value distance below which two readings count as the
// same knob position.
const closeTo = 0.001

// Source is the control feeding a Parameter. Process is called once per tick
// and returns the smoothed normalized reading; RawFloat returns the latest
// unsmoothed sample and is only used to decide re-acquisition.
type Source interface {
	Process() float32
	RawFloat() float32
}

// UpdateBehavior controls how a parameter resumes after being re-enabled.
type UpdateBehavior int

const (
	// Always resumes on the first tick after re-enabling.
	Always UpdateBehavior = iota
	// OnChange resumes once the control moves away from where it was when
	// the parameter was re-enabled.
	OnChange
	// Pickup resumes once the control returns to where it was when the
	// parameter was disabled, so the output never jumps.
	Pickup
)

var behaviorNames = map[UpdateBehavior]string{
	Always:   "always",
	OnChange: "onchange",
	Pickup:   "pickup",
}

func (b UpdateBehavior) String() string {
	if s, ok := behaviorNames[b]; ok {
		return s
	}
	return fmt.Sprintf("UpdateBehavior(%d)", int(b))
}

func (b UpdateBehavior) Valid() bool {
	_, ok := behaviorNames[b]
	return ok
}

func ParseBehavior(s string) (UpdateBehavior, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "always":
		return Always, nil
	case "onchange", "on_change", "on-change", "change":
		return OnChange, nil
	case "pickup":
		return Pickup, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownBehavior, s)
}

// TrackState is the tracking machine's state.
type TrackState int

const (
	// Tracking forwards every freshly mapped value to the output.
	Tracking TrackState = iota
	// Holding freezes the output until the update behavior lets it resume.
	Holding
)

func (s TrackState) String() string {
	if s == Holding {
		return "holding"
	}
	return "tracking"
}

// Config describes a parameter. The zero Behavior is Always.
type Config struct {
	Source   Source
	Min, Max float32
	Curve    Curve
	Behavior UpdateBehavior
}

// Validate reports configurations whose curve or behavior would make Process
// silently keep stale values.
func (c Config) Validate() error {
	if c.Source == nil {
		return ErrNoSource
	}
	if !c.Curve.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCurve, int(c.Curve))
	}
	if !c.Behavior.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownBehavior, int(c.Behavior))
	}
	return nil
}

// Parameter is one virtual parameter bound to a control source.
type Parameter struct {
	in       Source
	rng      Range
	curve    Curve
	behavior UpdateBehavior

	scaled   float32 // last curve output, recomputed every tick
	out      float32 // visible value
	raw      float32
	snapshot float32 // raw reading at the last relevant enable/disable edge

	enabled bool
	state   TrackState
}

// New builds an enabled, tracking parameter. An unknown curve or behavior is
// logged and kept: Process then leaves the scaled value (or the hold) as is.
func New(cfg Config) *Parameter {
	if err := cfg.Validate(); err != nil {
		slog.Warn("param: invalid config, values will go stale", "err", err)
	}
	return &Parameter{
		in:       cfg.Source,
		rng:      NewRange(cfg.Min, cfg.Max),
		curve:    cfg.Curve,
		behavior: cfg.Behavior,
		enabled:  true,
		state:    Tracking,
	}
}

// Process reads one sample from the source, maps it and returns the visible
// value. Call it at the source's sample rate.
func (p *Parameter) Process() float32 {
	in := p.in.Process()
	p.raw = p.in.RawFloat()

	if v, ok := p.rng.Map(in, p.curve); ok {
		p.scaled = v
	}

	if !p.enabled {
		return p.out
	}
	if p.state == Tracking || p.reacquire() {
		p.state = Tracking
		p.out = p.scaled
	}
	return p.out
}

// reacquire decides whether a holding, enabled parameter resumes this tick.
func (p *Parameter) reacquire() bool {
	switch p.behavior {
	case Always:
		return true
	case OnChange:
		return !isClose(p.raw, p.snapshot)
	case Pickup:
		return isClose(p.raw, p.snapshot)
	}
	return false
}

// Value returns the visible value without advancing.
func (p *Parameter) Value() float32 { return p.out }

// SetEnabled switches the parameter on or off. A disabled parameter keeps
// mapping its input but its visible value is frozen; re-enabling defers the
// decision to resume to the next Process call.
func (p *Parameter) SetEnabled(enabled bool) {
	switch {
	case p.enabled && !enabled:
		p.state = Holding
		if p.behavior == Pickup {
			p.snapshot = p.raw
		}
	case !p.enabled && enabled:
		if p.behavior == OnChange {
			p.snapshot = p.raw
		}
	}
	p.enabled = enabled
}

func (p *Parameter) Enabled() bool { return p.enabled }

func (p *Parameter) State() TrackState { return p.state }

// Scaled is the most recent curve output, live even while disabled.
func (p *Parameter) Scaled() float32 { return p.scaled }

// Raw is the most recent unsmoothed source reading.
func (p *Parameter) Raw() float32 { return p.raw }

func (p *Parameter) Curve() Curve { return p.curve }

func (p *Parameter) Behavior() UpdateBehavior { return p.behavior }

func (p *Parameter) Range() Range { return p.rng }

// SetRange changes the output range and recomputes the log bounds. The new
// range applies from the next Process call.
func (p *Parameter) SetRange(min, max float32) {
	p.rng = NewRange(min, max)
}

func isClose(a, b float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= closeTo
}
