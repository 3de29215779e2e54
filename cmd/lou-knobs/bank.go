package main

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/chase3718/lou-knobs/control"
	"github.com/chase3718/lou-knobs/midiout"
	"github.com/chase3718/lou-knobs/param"
)

// Layer is which set of virtual parameters the knobs currently drive.
type Layer int

const (
	LayerBase Layer = iota
	LayerShift
)

func (l Layer) String() string {
	if l == LayerShift {
		return "shift"
	}
	return "base"
}

// Target is what a virtual parameter sends when its value changes.
type Target int

const (
	TargetCC Target = iota
	TargetPitchBend
)

var errBadSpec = errors.New("bad -param spec")

// ParamSpec describes one virtual parameter on the command line.
type ParamSpec struct {
	Name     string
	Knob     int
	Layer    Layer
	Channel  uint8 // 0-15
	Target   Target
	CC       uint8
	Min, Max float32
	Curve    param.Curve
	Behavior param.UpdateBehavior
	Flip     bool
}

// ParseParamSpec parses "knob=0,layer=shift,cc=74,min=20,max=20000,curve=log,behavior=pickup".
// Channels are 1-16 on the command line. "cc=pb" sends pitch bend instead of
// a controller.
func ParseParamSpec(s string) (ParamSpec, error) {
	spec := ParamSpec{Max: 127}
	seenCC := false
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return spec, fmt.Errorf("%w: %q is not key=value", errBadSpec, field)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.TrimSpace(val)

		var err error
		switch key {
		case "name":
			spec.Name = val
		case "knob":
			spec.Knob, err = strconv.Atoi(val)
			if err == nil && (spec.Knob < 0 || spec.Knob >= MaxKnobs) {
				err = fmt.Errorf("knob %d out of range 0-%d", spec.Knob, MaxKnobs-1)
			}
		case "layer":
			switch strings.ToLower(val) {
			case "base", "":
				spec.Layer = LayerBase
			case "shift":
				spec.Layer = LayerShift
			default:
				err = fmt.Errorf("unknown layer %q", val)
			}
		case "ch", "channel":
			var ch int
			ch, err = strconv.Atoi(val)
			if err == nil && (ch < 1 || ch > 16) {
				err = fmt.Errorf("channel %d out of range 1-16", ch)
			}
			spec.Channel = uint8(ch - 1)
		case "cc":
			seenCC = true
			if strings.EqualFold(val, "pb") {
				spec.Target = TargetPitchBend
				break
			}
			var cc int
			cc, err = strconv.Atoi(val)
			if err == nil && (cc < 0 || cc > 127) {
				err = fmt.Errorf("cc %d out of range 0-127", cc)
			}
			spec.CC = uint8(cc)
		case "min":
			spec.Min, err = parseFloat32(val)
		case "max":
			spec.Max, err = parseFloat32(val)
		case "curve":
			spec.Curve, err = param.ParseCurve(val)
		case "behavior", "behaviour":
			spec.Behavior, err = param.ParseBehavior(val)
		case "flip":
			spec.Flip, err = strconv.ParseBool(val)
		default:
			err = fmt.Errorf("unknown key %q", key)
		}
		if err != nil {
			return spec, fmt.Errorf("%w: %s: %w", errBadSpec, field, err)
		}
	}
	if !seenCC {
		return spec, fmt.Errorf("%w: %q has no cc", errBadSpec, s)
	}
	if spec.Name == "" {
		spec.Name = fmt.Sprintf("k%d/%s", spec.Knob, spec.Layer)
	}
	return spec, nil
}

func parseFloat32(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	return float32(f), err
}

// DefaultSpecs maps every knob to CC 20+i on the base layer and CC 30+i on
// the shift layer, the latter with pickup so shifting never jumps a value.
func DefaultSpecs(knobs int) []ParamSpec {
	var specs []ParamSpec
	for i := 0; i < knobs; i++ {
		specs = append(specs,
			ParamSpec{Name: fmt.Sprintf("k%d/base", i), Knob: i, CC: uint8(20 + i), Max: 127},
			ParamSpec{Name: fmt.Sprintf("k%d/shift", i), Knob: i, Layer: LayerShift, CC: uint8(30 + i), Max: 127, Behavior: param.Pickup},
		)
	}
	return specs
}

// VirtualParam is one parameter on one layer of a physical knob. Each owns
// its own analog control, fed the same samples as its siblings on that knob.
type VirtualParam struct {
	Spec   ParamSpec
	analog *control.Analog
	p      *param.Parameter
	last   int // last value sent
	sent   bool
}

func (v *VirtualParam) Value() float32 { return v.p.Value() }

func (v *VirtualParam) State() param.TrackState { return v.p.State() }

func (v *VirtualParam) Enabled() bool { return v.p.Enabled() }

// wire quantises the visible value for the target: 0-127 for CC,
// -8192..8191 for pitch bend.
func (v *VirtualParam) wire() int {
	span := v.Spec.Max - v.Spec.Min
	var norm float64
	if span != 0 {
		norm = float64((v.p.Value() - v.Spec.Min) / span)
	}
	norm = math.Max(0, math.Min(1, norm))
	if v.Spec.Target == TargetPitchBend {
		return int(math.Round(norm*16383)) - 8192
	}
	return int(math.Round(norm * 127))
}

func (v *VirtualParam) message(w int) midi.Message {
	if v.Spec.Target == TargetPitchBend {
		return midiout.PitchBend(v.Spec.Channel, int16(w))
	}
	return midiout.ControlChange(v.Spec.Channel, v.Spec.CC, uint8(w))
}

// Bank is the full set of virtual parameters. It is driven by the main loop
// only: Apply, SetLayer and Tick must not be called concurrently.
type Bank struct {
	params []*VirtualParam
	layer  Layer
	primed bool
}

// NewBank validates specs and builds their parameters. All parameters start
// enabled; the first Tick samples them once and then disables the layers that
// are not active, so pickup targets start at the power-on knob positions.
func NewBank(specs []ParamSpec, ac control.AnalogConfig) (*Bank, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: empty bank", errBadSpec)
	}
	b := &Bank{}
	for _, s := range specs {
		if s.Knob < 0 || s.Knob >= MaxKnobs {
			return nil, fmt.Errorf("%w: %s: knob %d out of range", errBadSpec, s.Name, s.Knob)
		}
		cfg := ac
		cfg.Flip = cfg.Flip != s.Flip
		a := control.NewAnalog(cfg)
		pc := param.Config{Source: a, Min: s.Min, Max: s.Max, Curve: s.Curve, Behavior: s.Behavior}
		if err := pc.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		b.params = append(b.params, &VirtualParam{
			Spec:   s,
			analog: a,
			p:      param.New(pc),
		})
	}
	return b, nil
}

func (b *Bank) Params() []*VirtualParam { return b.params }

func (b *Bank) Layer() Layer { return b.layer }

// Apply feeds a scan's knob readings to every parameter bound to them.
// Knobs missing from the frame keep their previous reading.
func (b *Bank) Apply(f ControlFrame) {
	for _, v := range b.params {
		if v.Spec.Knob < len(f.Knobs) {
			v.analog.Set(f.Knobs[v.Spec.Knob])
		}
	}
}

// SetLayer enables the parameters on l and disables the rest.
func (b *Bank) SetLayer(l Layer) {
	if l != b.layer {
		logger.Debug("bank: layer change", "from", b.layer, "to", l)
	}
	b.layer = l
	if !b.primed {
		return
	}
	b.applyLayer()
}

func (b *Bank) applyLayer() {
	for _, v := range b.params {
		v.p.SetEnabled(v.Spec.Layer == b.layer)
	}
}

// Tick advances every parameter by one sample and emits a message for each
// one whose quantised value changed.
func (b *Bank) Tick(emit func(midi.Message)) {
	for _, v := range b.params {
		v.p.Process()
	}
	if !b.primed {
		b.primed = true
		b.applyLayer()
	}
	for _, v := range b.params {
		w := v.wire()
		if v.sent && w == v.last {
			continue
		}
		v.last, v.sent = w, true
		emit(v.message(w))
		logger.Debug("bank: send", "param", v.Spec.Name, "value", v.p.Value(), "wire", w, "state", v.p.State())
	}
}

// Resync forgets what was sent so the next Tick re-sends every value, e.g.
// after a MIDI output reconnects.
func (b *Bank) Resync() {
	for _, v := range b.params {
		v.sent = false
	}
}
