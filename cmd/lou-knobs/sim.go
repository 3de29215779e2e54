package main

import (
	"context"
	"math"
	"time"
)

// simShiftPeriod is how long the simulated shift button stays in each state.
const simShiftPeriod = 4 * time.Second

// simFrame builds the simulated scan at elapsed time t: knob i is a slow sine
// with its own period, and shift is held during every other period.
func simFrame(knobs int, t time.Duration, seq byte) ControlFrame {
	f := ControlFrame{Knobs: make([]uint16, knobs), Seq: seq}
	secs := t.Seconds()
	for i := range f.Knobs {
		period := 3.0 + float64(i)
		v := 0.5 + 0.5*math.Sin(2*math.Pi*secs/period)
		f.Knobs[i] = uint16(math.Round(v * 4095))
	}
	if (t/simShiftPeriod)%2 == 1 {
		f.Buttons |= ButtonShift
	}
	return f
}

// runSim stands in for the knob board: it encodes simulated scans and runs
// them through the same decoder as the serial path. out is closed on return.
func runSim(ctx context.Context, knobs int, rate time.Duration, out chan<- ControlFrame) {
	defer close(out)
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	start := time.Now()
	var (
		dec FrameDecoder
		seq byte
	)
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			f := simFrame(knobs, now.Sub(start), seq)
			seq++
			for _, b := range f.Encode() {
				df, ok := dec.Feed(b)
				if !ok {
					continue
				}
				select {
				case out <- df:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}
