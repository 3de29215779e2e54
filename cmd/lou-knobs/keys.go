package main

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// KeyHost puts the terminal in raw mode and forwards single key presses, so
// the shift layer can be driven from the keyboard when the board has no
// shift button wired.
type KeyHost struct {
	fd       int
	oldState *term.State
	keys     chan byte
}

// StartKeyHost returns nil, nil when stdin is not a terminal.
func StartKeyHost() (*KeyHost, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, nil
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("keys: raw mode: %w", err)
	}
	h := &KeyHost{fd: fd, oldState: oldState, keys: make(chan byte, 16)}
	go h.read()
	return h, nil
}

// read runs until stdin fails; it is abandoned, not joined, on Stop since a
// blocking terminal read cannot be interrupted.
func (h *KeyHost) read() {
	buf := make([]byte, 1)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			close(h.keys)
			return
		}
		if n == 1 {
			select {
			case h.keys <- buf[0]:
			default: // main loop is behind; drop the key
			}
		}
	}
}

// Keys delivers key presses. A nil host yields a nil channel, which blocks
// forever in a select.
func (h *KeyHost) Keys() <-chan byte {
	if h == nil {
		return nil
	}
	return h.keys
}

// Stop restores the terminal.
func (h *KeyHost) Stop() {
	if h == nil || h.oldState == nil {
		return
	}
	_ = term.Restore(h.fd, h.oldState)
	h.oldState = nil
}
