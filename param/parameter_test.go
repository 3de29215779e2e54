package param

import (
	"errors"
	"testing"
)

// knob is a Source whose smoothed and raw readings are the same value.
type knob struct{ v float32 }

func (k *knob) Process() float32  { return k.v }
func (k *knob) RawFloat() float32 { return k.v }

func newParam(min, max float32, c Curve, b UpdateBehavior) (*Parameter, func(float32) float32) {
	k := &knob{}
	p := New(Config{Source: k, Min: min, Max: max, Curve: c, Behavior: b})
	return p, func(v float32) float32 {
		k.v = v
		return p.Process()
	}
}

func mapped(min, max, in float32, c Curve) float32 {
	v, _ := NewRange(min, max).Map(in, c)
	return v
}

func TestParameter_ScenarioLinearAlways(t *testing.T) {
	p, tick := newParam(0, 100, Linear, Always)
	for i, tc := range []struct{ raw, want float32 }{
		{0.0, 0},
		{0.5, 50},
		{1.0, 100},
	} {
		if got := tick(tc.raw); !near(got, tc.want, 1e-4) {
			t.Fatalf("step %d raw=%v: got %v, expected %v", i, tc.raw, got, tc.want)
		}
		if p.Value() != p.Scaled() {
			t.Fatalf("step %d: Value %v differs from Scaled %v while tracking", i, p.Value(), p.Scaled())
		}
	}
}

func TestParameter_ScenarioLogEndpoints(t *testing.T) {
	_, tick := newParam(20, 20000, Logarithmic, Always)
	if got := tick(0); !near(got, 20, 0.01) {
		t.Errorf("in=0: got %v, expected ~20", got)
	}
	if got := tick(1); !near(got, 20000, 5) {
		t.Errorf("in=1: got %v, expected ~20000", got)
	}
}

func TestParameter_ScenarioPickup(t *testing.T) {
	p, tick := newParam(0, 100, Linear, Pickup)
	f := func(in float32) float32 { return mapped(0, 100, in, Linear) }

	tick(0.3)
	p.SetEnabled(false)
	if p.State() != Holding {
		t.Fatalf("state after disable = %v, expected holding", p.State())
	}
	frozen := p.Value()
	if !near(frozen, f(0.3), 1e-4) {
		t.Fatalf("frozen value %v, expected %v", frozen, f(0.3))
	}

	p.SetEnabled(true)
	for _, raw := range []float32{0.1, 0.2} {
		if got := tick(raw); got != frozen {
			t.Fatalf("raw=%v: output moved to %v while waiting for pickup", raw, got)
		}
		if p.State() != Holding {
			t.Fatalf("raw=%v: state %v, expected holding", raw, p.State())
		}
	}

	if got := tick(0.301); !near(got, f(0.301), 1e-4) {
		t.Fatalf("raw=0.301: got %v, expected pickup at %v", got, f(0.301))
	}
	if p.State() != Tracking {
		t.Fatalf("state after pickup = %v, expected tracking", p.State())
	}
	for _, raw := range []float32{0.5, 0.9, 0.1} {
		if got := tick(raw); !near(got, f(raw), 1e-4) {
			t.Fatalf("raw=%v after pickup: got %v, expected %v", raw, got, f(raw))
		}
	}
}

func TestParameter_PickupWaitsWhileDisabled(t *testing.T) {
	p, tick := newParam(0, 1, Linear, Pickup)
	tick(0.7)
	p.SetEnabled(false)

	// Passing through the pickup point while disabled does not count.
	for _, raw := range []float32{0.2, 0.7, 0.4} {
		if got := tick(raw); !near(got, 0.7, 1e-6) {
			t.Fatalf("disabled raw=%v: got %v, expected frozen 0.7", raw, got)
		}
		if !near(p.Scaled(), raw, 1e-6) {
			t.Fatalf("disabled raw=%v: scaled %v not recomputed", raw, p.Scaled())
		}
	}

	p.SetEnabled(true)
	if got := tick(0.4); !near(got, 0.7, 1e-6) {
		t.Fatalf("enabled away from pickup: got %v, expected 0.7", got)
	}
	if got := tick(0.7005); !near(got, 0.7005, 1e-6) {
		t.Fatalf("pickup: got %v, expected 0.7005", got)
	}
}

func TestParameter_OnChange(t *testing.T) {
	p, tick := newParam(0, 10, Linear, OnChange)
	f := func(in float32) float32 { return mapped(0, 10, in, Linear) }

	tick(0.6)
	p.SetEnabled(false)
	frozen := p.Value()
	p.SetEnabled(true)

	for _, raw := range []float32{0.6, 0.6005, 0.5995} {
		if got := tick(raw); got != frozen {
			t.Fatalf("raw=%v: output %v moved before the control changed", raw, got)
		}
	}
	if got := tick(0.62); !near(got, f(0.62), 1e-5) {
		t.Fatalf("raw=0.62: got %v, expected %v", got, f(0.62))
	}
	if p.State() != Tracking {
		t.Fatalf("state = %v, expected tracking", p.State())
	}
	// Back near the old position still tracks.
	if got := tick(0.6); !near(got, f(0.6), 1e-5) {
		t.Fatalf("raw=0.6 after resume: got %v, expected %v", got, f(0.6))
	}
}

func TestParameter_OnChangeBaselineIsEnableTime(t *testing.T) {
	p, tick := newParam(0, 1, Linear, OnChange)
	tick(0.1)
	p.SetEnabled(false)
	tick(0.8) // knob moved by the other layer
	p.SetEnabled(true)

	if got := tick(0.8); !near(got, 0.1, 1e-6) {
		t.Fatalf("raw unchanged since enable: got %v, expected frozen 0.1", got)
	}
	if got := tick(0.81); !near(got, 0.81, 1e-6) {
		t.Fatalf("raw moved after enable: got %v, expected 0.81", got)
	}
}

func TestParameter_AlwaysResumesImmediately(t *testing.T) {
	p, tick := newParam(-1, 1, Cube, Always)
	tick(0.9)
	p.SetEnabled(false)
	if got := tick(0.2); !near(got, mapped(-1, 1, 0.9, Cube), 1e-5) {
		t.Fatalf("disabled: got %v, expected frozen value", got)
	}
	p.SetEnabled(true)
	if p.State() != Holding {
		t.Fatalf("state right after enable = %v, expected holding until next tick", p.State())
	}
	if got := tick(0.2); !near(got, mapped(-1, 1, 0.2, Cube), 1e-5) {
		t.Fatalf("first tick after enable: got %v, expected fresh %v", got, mapped(-1, 1, 0.2, Cube))
	}
	if p.State() != Tracking {
		t.Fatalf("state = %v, expected tracking", p.State())
	}
}

func TestParameter_SetEnabledIdempotent(t *testing.T) {
	for _, b := range []UpdateBehavior{Always, OnChange, Pickup} {
		p, tick := newParam(0, 1, Linear, b)
		tick(0.25)

		p.SetEnabled(true)
		if p.Value() != 0.25 || p.State() != Tracking || p.snapshot != 0 {
			t.Fatalf("%v: enable while enabled changed state", b)
		}

		p.SetEnabled(false)
		snap := p.snapshot
		tick(0.75)
		p.SetEnabled(false)
		if p.snapshot != snap {
			t.Fatalf("%v: second disable moved snapshot %v -> %v", b, snap, p.snapshot)
		}
		if p.Value() != 0.25 {
			t.Fatalf("%v: second disable changed value to %v", b, p.Value())
		}
		if p.Enabled() {
			t.Fatalf("%v: still enabled", b)
		}
	}
}

func TestParameter_ValueDoesNotAdvance(t *testing.T) {
	k := &knob{v: 0.5}
	p := New(Config{Source: k, Min: 0, Max: 2, Curve: Exponential})
	if p.Value() != 0 {
		t.Fatalf("initial value %v, expected 0", p.Value())
	}
	p.Process()
	k.v = 1
	if got := p.Value(); !near(got, 0.5, 1e-6) {
		t.Fatalf("Value after input change: got %v, expected 0.5", got)
	}
}

func TestParameter_UnknownCurveKeepsStaleValue(t *testing.T) {
	p, tick := newParam(0, 1, Curve(17), Always)
	if got := tick(0.4); got != 0 {
		t.Fatalf("unknown curve: got %v, expected stale 0", got)
	}
	if !near(p.Raw(), 0.4, 0) {
		t.Fatalf("raw not sampled: %v", p.Raw())
	}
}

func TestParameter_UnknownBehaviorHoldsForever(t *testing.T) {
	p, tick := newParam(0, 1, Linear, UpdateBehavior(9))
	tick(0.3)
	p.SetEnabled(false)
	p.SetEnabled(true)
	for _, raw := range []float32{0.3, 0.5, 1} {
		if got := tick(raw); !near(got, 0.3, 1e-6) {
			t.Fatalf("raw=%v: got %v, expected held 0.3", raw, got)
		}
	}
	if p.State() != Holding {
		t.Fatalf("state = %v, expected holding", p.State())
	}
}

func TestParameter_SetRangeRecomputesLogBounds(t *testing.T) {
	p, tick := newParam(20, 20000, Logarithmic, Always)
	p.SetRange(100, 1000)
	if got := tick(0); !near(got, 100, 0.01) {
		t.Fatalf("in=0 after SetRange: got %v, expected ~100", got)
	}
	if got := tick(1); !near(got, 1000, 0.1) {
		t.Fatalf("in=1 after SetRange: got %v, expected ~1000", got)
	}
	if r := p.Range(); r.Min != 100 || r.Max != 1000 {
		t.Fatalf("Range() = %+v", r)
	}
}

func TestConfig_Validate(t *testing.T) {
	k := &knob{}
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{Source: k, Max: 1}, nil},
		{"no source", Config{Max: 1}, ErrNoSource},
		{"bad curve", Config{Source: k, Curve: Curve(8)}, ErrUnknownCurve},
		{"bad behavior", Config{Source: k, Behavior: UpdateBehavior(5)}, ErrUnknownBehavior},
	}
	for _, tc := range cases {
		err := tc.cfg.Validate()
		if tc.want == nil && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
		if tc.want != nil && !errors.Is(err, tc.want) {
			t.Errorf("%s: got %v, expected %v", tc.name, err, tc.want)
		}
	}
}

func TestParseBehavior(t *testing.T) {
	for in, want := range map[string]UpdateBehavior{
		"":          Always,
		"always":    Always,
		"on_change": OnChange,
		"OnChange":  OnChange,
		"pickup":    Pickup,
	} {
		got, err := ParseBehavior(in)
		if err != nil || got != want {
			t.Errorf("ParseBehavior(%q) = %v, %v; expected %v", in, got, err, want)
		}
	}
	if _, err := ParseBehavior("latch"); !errors.Is(err, ErrUnknownBehavior) {
		t.Errorf("ParseBehavior(latch) err = %v", err)
	}
}
