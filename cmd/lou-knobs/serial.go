package main

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds how long a Read blocks, so the reader notices ctx.
const readTimeout = 100 * time.Millisecond

// SerialPort wraps a go.bug.st/serial port.
type SerialPort struct {
	name string
	port serial.Port
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int) (*SerialPort, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s at %d: %w", name, baud, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("serial: set read timeout on %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return &SerialPort{name: name, port: p}, nil
}

// ReadFrames decodes control frames from the port and delivers them on out
// until ctx is done or the port fails. out is closed on return.
func (s *SerialPort) ReadFrames(ctx context.Context, out chan<- ControlFrame) error {
	defer close(out)
	var dec FrameDecoder
	buf := make([]byte, 256)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, err := s.port.Read(buf)
		if err != nil {
			return fmt.Errorf("serial: read %s: %w", s.name, err)
		}
		for _, b := range buf[:n] {
			f, ok := dec.Feed(b)
			if !ok {
				continue
			}
			select {
			case out <- f:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Send writes raw bytes; it makes the port a midiout.Sender.
func (s *SerialPort) Send(data []byte) error {
	n, err := s.port.Write(data)
	if err != nil {
		return fmt.Errorf("serial: write %s: %w", s.name, err)
	}
	if n != len(data) {
		return fmt.Errorf("serial: short write on %s: %d of %d bytes", s.name, n, len(data))
	}
	return nil
}

// Close closes the underlying serial port.
func (s *SerialPort) Close() error {
	logger.Info("serial: closing port", "device", s.name)
	return s.port.Close()
}
