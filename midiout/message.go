// Package midiout builds outgoing MIDI messages and batches them for a
// byte-oriented transport, optionally compressing with running status.
package midiout

import (
	"gitlab.com/gomidi/midi/v2"
)

// MaxSysExLen is the largest SysEx payload (without F0/F7) we send.
const MaxSysExLen = 128

func NoteOn(ch, key, vel uint8) midi.Message {
	return midi.NoteOn(ch&0x0F, key&0x7F, vel&0x7F)
}

func NoteOff(ch, key, vel uint8) midi.Message {
	return midi.NoteOffVelocity(ch&0x0F, key&0x7F, vel&0x7F)
}

// PitchBend takes a signed bend in [-8192, 8191]; 0 is centre.
func PitchBend(ch uint8, bend int16) midi.Message {
	if bend < -8192 {
		bend = -8192
	}
	if bend > 8191 {
		bend = 8191
	}
	return midi.Pitchbend(ch&0x0F, bend)
}

func ControlChange(ch, cc, val uint8) midi.Message {
	return midi.ControlChange(ch&0x0F, cc&0x7F, val&0x7F)
}

func Clock() midi.Message { return midi.TimingClock() }

func Start() midi.Message { return midi.Start() }

func Stop() midi.Message { return midi.Stop() }

// SysEx wraps data in F0 ... F7. Payloads over MaxSysExLen give an empty
// message, which TxBuffer and senders skip.
func SysEx(data []byte) midi.Message {
	if len(data) > MaxSysExLen {
		return midi.Message{}
	}
	return midi.SysEx(data)
}
