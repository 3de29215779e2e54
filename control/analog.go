// Package control turns raw ADC readings from the knob board into the
// normalized, smoothed readings a param.Parameter consumes.
package control

// DefaultBits is the ADC resolution of the knob board.
const DefaultBits = 12

// AnalogConfig configures an Analog control.
type AnalogConfig struct {
	// SampleRate is how often Process is called, in Hz.
	SampleRate float32
	// SlewSeconds is the smoothing time. Zero or negative disables smoothing.
	SlewSeconds float32
	// Flip maps t to 1-t, for knobs wired backwards.
	Flip bool
	// Invert negates the reading (applied after Flip).
	Invert bool
	// Bits is the ADC resolution; 0 means DefaultBits.
	Bits int
}

// Analog is a single knob reading. Set stores the latest ADC sample; Process
// advances the one-pole smoother by one step.
//
// Like param.Parameter, an Analog is owned by one loop.
type Analog struct {
	sample uint16
	scale  float32
	coeff  float32
	flip   bool
	invert bool
	value  float32
}

func NewAnalog(cfg AnalogConfig) *Analog {
	bits := cfg.Bits
	if bits <= 0 || bits > 16 {
		bits = DefaultBits
	}
	coeff := float32(1)
	if cfg.SlewSeconds > 0 && cfg.SampleRate > 0 {
		coeff = 1 / (cfg.SlewSeconds * cfg.SampleRate * 0.5)
		if coeff > 1 {
			coeff = 1
		}
	}
	return &Analog{
		scale:  1 / float32(uint32(1)<<bits),
		coeff:  coeff,
		flip:   cfg.Flip,
		invert: cfg.Invert,
	}
}

// Set stores the most recent ADC reading.
func (a *Analog) Set(sample uint16) { a.sample = sample }

// Process returns the smoothed reading.
func (a *Analog) Process() float32 {
	t := float32(a.sample) * a.scale
	if a.flip {
		t = 1 - t
	}
	if a.invert {
		t = -t
	}
	a.value += a.coeff * (t - a.value)
	return a.value
}

// RawFloat is the latest sample scaled to [0, 1), before flip, invert or
// smoothing.
func (a *Analog) RawFloat() float32 { return float32(a.sample) * a.scale }

// Value is the last result of Process.
func (a *Analog) Value() float32 { return a.value }

// Coeff is the smoothing coefficient in use.
func (a *Analog) Coeff() float32 { return a.coeff }
