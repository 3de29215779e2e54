// Package logging picks where the bridge's slog output goes. The knob board
// has no console of its own, so logs can also be sent down a spare UART.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.bug.st/serial"
)

// Kind is a log transport.
type Kind int

const (
	None Kind = iota
	Stderr
	Stdout
	Serial
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Stderr:
		return "stderr"
	case Stdout:
		return "stdout"
	case Serial:
		return "serial"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

var ErrBadDestination = errors.New("logging: bad destination")

// Destination is a transport plus, for Serial, the device path.
type Destination struct {
	Kind   Kind
	Device string
}

func (d Destination) String() string {
	if d.Kind == Serial {
		return "serial:" + d.Device
	}
	return d.Kind.String()
}

// ParseDestination accepts "none", "stderr", "stdout" or "serial:<device>".
func ParseDestination(s string) (Destination, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "none", "off":
		return Destination{Kind: None}, nil
	case "", "stderr":
		return Destination{Kind: Stderr}, nil
	case "stdout":
		return Destination{Kind: Stdout}, nil
	}
	if dev, ok := strings.CutPrefix(s, "serial:"); ok && dev != "" {
		return Destination{Kind: Serial, Device: dev}, nil
	}
	return Destination{}, fmt.Errorf("%w: %q", ErrBadDestination, s)
}

// Options tunes the handler.
type Options struct {
	Debug bool // debug level and file:line in records
	Baud  int  // serial baud rate, 115200 if zero
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds a text slog.Logger writing to dest. The returned closer releases
// the transport (a no-op for the standard streams).
func Open(dest Destination, opts Options) (*slog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch dest.Kind {
	case None:
		w = io.Discard
	case Stderr:
		w = os.Stderr
	case Stdout:
		w = os.Stdout
	case Serial:
		baud := opts.Baud
		if baud <= 0 {
			baud = 115200
		}
		p, err := serial.Open(dest.Device, &serial.Mode{BaudRate: baud})
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %s: %w", dest.Device, err)
		}
		w, closer = p, p
	default:
		return nil, nil, fmt.Errorf("%w: %v", ErrBadDestination, dest.Kind)
	}
	return New(w, opts.Debug), closer, nil
}

// New wraps w in the bridge's text handler.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug, // include file:line in debug mode
	}))
}
