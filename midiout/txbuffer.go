package midiout

import (
	"fmt"
	"io"
)

const sysExStart = 0xF0

// Sender is anything that can put a block of MIDI bytes on the wire.
// gomidi's drivers.Out satisfies it.
type Sender interface {
	Send(data []byte) error
}

// WriterSender adapts an io.Writer, e.g. a serial port running at 31250 baud.
type WriterSender struct {
	W io.Writer
}

func (s WriterSender) Send(data []byte) error {
	_, err := s.W.Write(data)
	return err
}

// TxBuffer accumulates outgoing messages up to a fixed size. With running
// status enabled, a channel message repeating the previous status byte is
// stored without it.
type TxBuffer struct {
	buf           []byte
	lastStatus    byte
	runningStatus bool
}

func NewTxBuffer(size int, runningStatus bool) *TxBuffer {
	return &TxBuffer{
		buf:           make([]byte, 0, size),
		runningStatus: runningStatus,
	}
}

// IsWriteable reports whether n more bytes fit. One byte of capacity is always
// kept free.
func (b *TxBuffer) IsWriteable(n int) bool { return len(b.buf)+n < cap(b.buf) }

func (b *TxBuffer) IsEmpty() bool { return len(b.buf) == 0 }

func (b *TxBuffer) Len() int { return len(b.buf) }

// Bytes returns the buffered data. It is only valid until the next write or
// Consume.
func (b *TxBuffer) Bytes() []byte { return b.buf }

// WriteMessage appends msg, which must start with its status byte. It returns
// false (and writes nothing) if the full message does not fit.
func (b *TxBuffer) WriteMessage(msg []byte) bool {
	if len(msg) == 0 {
		return true
	}
	if !b.IsWriteable(len(msg)) {
		return false
	}

	rs := b.runningStatus && len(msg) > 1 && msg[0] != sysExStart
	if rs && msg[0] == b.lastStatus {
		b.buf = append(b.buf, msg[1:]...)
		return true
	}
	b.buf = append(b.buf, msg...)
	if rs {
		b.lastStatus = msg[0]
	} else {
		b.lastStatus = 0
	}
	return true
}

// Consume empties the buffer and forgets the running status.
func (b *TxBuffer) Consume() {
	b.buf = b.buf[:0]
	b.lastStatus = 0
}

// FlushTo sends the buffered bytes and empties the buffer. On error the data
// is kept so the caller may retry.
func (b *TxBuffer) FlushTo(s Sender) error {
	if b.IsEmpty() {
		return nil
	}
	if err := s.Send(b.buf); err != nil {
		return fmt.Errorf("midiout: flush %d bytes: %w", len(b.buf), err)
	}
	b.Consume()
	return nil
}
