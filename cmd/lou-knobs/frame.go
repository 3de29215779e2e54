package main

import "fmt"

const (
	SOF0            = 0xAA
	SOF1            = 0x55
	CmdControlFrame = 0x20
	MaxKnobs        = 16

	// ButtonShift is bit 0 of the button byte.
	ButtonShift = 1 << 0
)

// ControlFrame is one scan of the knob board: every knob's 12-bit ADC reading
// plus the button byte, sent by the microcontroller at the scan rate.
type ControlFrame struct {
	Knobs   []uint16
	Buttons byte
	Seq     byte
}

// Shift reports whether the shift button is held.
func (f ControlFrame) Shift() bool { return f.Buttons&ButtonShift != 0 }

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][k0 hi][k0 lo]...[Buttons][Seq][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and payload.
func (f *ControlFrame) Encode() []byte {
	payload := make([]byte, 0, 2*len(f.Knobs)+2)
	for _, k := range f.Knobs {
		payload = append(payload, byte(k>>8), byte(k))
	}
	payload = append(payload, f.Buttons, f.Seq)

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ CmdControlFrame
	for _, b := range payload {
		cks ^= b
	}

	out := []byte{SOF0, SOF1, length, CmdControlFrame}
	out = append(out, payload...)
	out = append(out, cks)
	return out
}

type decodeState int

const (
	waitSOF0 decodeState = iota
	waitSOF1
	waitLen
	inBody
	waitCks
)

// FrameDecoder reassembles ControlFrames from a byte stream. Corrupt frames
// are counted and skipped; decoding resumes at the next SOF0.
type FrameDecoder struct {
	state   decodeState
	length  byte
	cks     byte
	body    []byte
	Dropped int
}

func validLength(n byte) bool {
	// CMD + 2 bytes per knob + buttons + seq
	return n >= 5 && n <= 3+2*MaxKnobs && n%2 == 1
}

// Feed consumes one byte and returns a frame when b completes one.
func (d *FrameDecoder) Feed(b byte) (ControlFrame, bool) {
	switch d.state {
	case waitSOF0:
		if b == SOF0 {
			d.state = waitSOF1
		}
	case waitSOF1:
		switch b {
		case SOF1:
			d.state = waitLen
		case SOF0:
			// stay: this may be the real start
		default:
			d.state = waitSOF0
		}
	case waitLen:
		if !validLength(b) {
			d.drop("bad length", b)
			return ControlFrame{}, false
		}
		d.length = b
		d.cks = b
		d.body = d.body[:0]
		d.state = inBody
	case inBody:
		d.body = append(d.body, b)
		d.cks ^= b
		if len(d.body) == int(d.length) {
			d.state = waitCks
		}
	case waitCks:
		d.state = waitSOF0
		if b != d.cks {
			d.drop("checksum mismatch", b)
			return ControlFrame{}, false
		}
		if d.body[0] != CmdControlFrame {
			d.drop("unknown command", d.body[0])
			return ControlFrame{}, false
		}
		return d.frame(), true
	}
	return ControlFrame{}, false
}

func (d *FrameDecoder) frame() ControlFrame {
	payload := d.body[1:]
	n := (len(payload) - 2) / 2
	f := ControlFrame{Knobs: make([]uint16, n)}
	for i := 0; i < n; i++ {
		f.Knobs[i] = uint16(payload[2*i])<<8 | uint16(payload[2*i+1])
	}
	f.Buttons = payload[2*n]
	f.Seq = payload[2*n+1]
	return f
}

func (d *FrameDecoder) drop(reason string, b byte) {
	d.Dropped++
	d.state = waitSOF0
	logger.Debug("frame: dropped", "reason", reason, "byte", fmt.Sprintf("0x%02X", b), "dropped_total", d.Dropped)
}
