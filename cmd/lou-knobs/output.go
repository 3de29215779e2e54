package main

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"

	"github.com/chase3718/lou-knobs/midiout"
)

// DIN MIDI line rate.
const dinBaud = 31250

// txBufferSize fits a full bank refresh (16 knobs x 2 layers of CC).
const txBufferSize = 128

// Emitter is where the bank's messages go. Emit may buffer; Flush pushes
// anything pending to the wire.
type Emitter interface {
	Emit(msg midi.Message)
	Flush() error
	Close() error
}

// OutputSpec is the parsed -out flag.
type OutputSpec struct {
	Port   bool   // host MIDI port via rtmidi
	Device string // DIN MIDI UART otherwise
}

func ParseOutput(s string) (OutputSpec, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "midi") || s == "" {
		return OutputSpec{Port: true}, nil
	}
	if dev, ok := strings.CutPrefix(s, "serial:"); ok && dev != "" {
		return OutputSpec{Device: dev}, nil
	}
	return OutputSpec{}, fmt.Errorf("bad -out %q: want midi or serial:<device>", s)
}

// -------------------- host MIDI port --------------------

type portEmitter struct {
	w *MIDIOutWatcher
}

func (p portEmitter) Emit(msg midi.Message) { p.w.Send(msg) }
func (p portEmitter) Flush() error          { return nil }
func (p portEmitter) Close() error {
	p.w.Close()
	return nil
}

// -------------------- DIN MIDI UART --------------------

// uartEmitter batches messages into a TxBuffer and writes them to a serial
// line in one go per tick.
type uartEmitter struct {
	buf    *midiout.TxBuffer
	out    midiout.Sender
	closer func() error
}

func newUARTEmitter(out midiout.Sender, runningStatus bool, closer func() error) *uartEmitter {
	return &uartEmitter{
		buf:    midiout.NewTxBuffer(txBufferSize, runningStatus),
		out:    out,
		closer: closer,
	}
}

func (u *uartEmitter) Emit(msg midi.Message) {
	if u.buf.WriteMessage(msg) {
		return
	}
	// Full: push what we have and retry once.
	if err := u.Flush(); err != nil {
		logger.Error("uart: flush failed, message dropped", "msg", msg.String(), "err", err)
		return
	}
	if !u.buf.WriteMessage(msg) {
		logger.Warn("uart: message larger than tx buffer, dropped", "bytes", len(msg))
	}
}

func (u *uartEmitter) Flush() error {
	n := u.buf.Len()
	if err := u.buf.FlushTo(u.out); err != nil {
		return err
	}
	if n > 0 {
		logger.Debug("uart: flushed", "bytes", n)
	}
	return nil
}

func (u *uartEmitter) Close() error {
	err := u.Flush()
	if u.closer != nil {
		if cerr := u.closer(); err == nil {
			err = cerr
		}
	}
	return err
}
