package control

import (
	"math"
	"testing"

	"github.com/chase3718/lou-knobs/param"
)

var _ param.Source = (*Analog)(nil)

func TestAnalog_NoSmoothing(t *testing.T) {
	a := NewAnalog(AnalogConfig{})
	a.Set(2048)
	if got := a.Process(); got != 0.5 {
		t.Fatalf("Process = %v, expected 0.5", got)
	}
	if got := a.RawFloat(); got != 0.5 {
		t.Fatalf("RawFloat = %v, expected 0.5", got)
	}
}

func TestAnalog_FlipInvert(t *testing.T) {
	a := NewAnalog(AnalogConfig{Flip: true})
	a.Set(1024)
	if got := a.Process(); got != 0.75 {
		t.Errorf("flip: got %v, expected 0.75", got)
	}
	if got := a.RawFloat(); got != 0.25 {
		t.Errorf("flip raw: got %v, expected 0.25", got)
	}

	b := NewAnalog(AnalogConfig{Invert: true})
	b.Set(1024)
	if got := b.Process(); got != -0.25 {
		t.Errorf("invert: got %v, expected -0.25", got)
	}
}

func TestAnalog_SmoothingConverges(t *testing.T) {
	a := NewAnalog(AnalogConfig{SampleRate: 1000, SlewSeconds: 0.01})
	if c := a.Coeff(); math.Abs(float64(c)-0.2) > 1e-6 {
		t.Fatalf("coeff = %v, expected 0.2", c)
	}
	a.Set(4095)
	first := a.Process()
	if first <= 0 || first >= a.RawFloat() {
		t.Fatalf("first smoothed step %v should sit between 0 and %v", first, a.RawFloat())
	}
	var v float32
	for i := 0; i < 200; i++ {
		v = a.Process()
	}
	if math.Abs(float64(v-a.RawFloat())) > 1e-4 {
		t.Fatalf("did not converge: %v vs %v", v, a.RawFloat())
	}
	if a.Value() != v {
		t.Fatalf("Value %v != last Process %v", a.Value(), v)
	}
}

func TestAnalog_CoeffClamped(t *testing.T) {
	a := NewAnalog(AnalogConfig{SampleRate: 10, SlewSeconds: 0.01})
	if a.Coeff() != 1 {
		t.Fatalf("coeff = %v, expected clamp to 1", a.Coeff())
	}
}

func TestAnalog_Bits(t *testing.T) {
	a := NewAnalog(AnalogConfig{Bits: 7})
	a.Set(64)
	if got := a.RawFloat(); got != 0.5 {
		t.Fatalf("7-bit raw = %v, expected 0.5", got)
	}
}

func TestAnalog_DrivesParameter(t *testing.T) {
	a := NewAnalog(AnalogConfig{})
	p := param.New(param.Config{Source: a, Min: 0, Max: 100, Curve: param.Linear})
	a.Set(1024)
	if got := p.Process(); got != 25 {
		t.Fatalf("parameter value %v, expected 25", got)
	}
}
