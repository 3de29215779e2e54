package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/chase3718/lou-knobs/internal/stopwatch"
)

// -------------------- Hot-swap config --------------------

// PREFERRED_PATTERNS: output ports matching any of these are picked first.
var PREFERRED_PATTERNS = []string{"IAC", "loopMIDI", "VirMIDI"}

// EXCLUDED_PATTERNS: ports that are never auto-connected.
var EXCLUDED_PATTERNS = []string{"Midi Through", "Through Port", "Dummy"}

const midiRescanInterval = 1000 * time.Millisecond

// -------------------- MIDIOutWatcher --------------------

// MIDIOutWatcher keeps a connection to the preferred MIDI output port. It
// handles hot-plug (a port appears) and hot-unplug (the port disappears or a
// send fails).
//
// onConnect is called after every successful connect, from the goroutine that
// called Tick; callers use it to resend the full parameter state.
type MIDIOutWatcher struct {
	mu           sync.Mutex
	drv          *rtmididrv.Driver
	outPort      drivers.Out
	send         func(midi.Message) error
	connected    bool
	selectedName string
	rescan       *stopwatch.Stopwatch
	forceRescan  bool
	preferred    []string

	onConnect func()
}

// NewMIDIOutWatcher initialises the rtmidi driver. extraPreferred patterns are
// tried before the built-in ones. Call Close() when done.
func NewMIDIOutWatcher(extraPreferred []string, onConnect func()) (*MIDIOutWatcher, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &MIDIOutWatcher{
		drv:         drv,
		rescan:      stopwatch.New(nil),
		forceRescan: true,
		preferred:   append(append([]string{}, extraPreferred...), PREFERRED_PATTERNS...),
		onConnect:   onConnect,
	}, nil
}

// Close shuts down the active MIDI connection and the rtmidi driver.
func (m *MIDIOutWatcher) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeConn()
	m.drv.Close()
}

// Connected reports whether an output port is open.
func (m *MIDIOutWatcher) Connected() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected, m.selectedName
}

// Send writes msg to the connected port. Messages are dropped while no port
// is connected; a failed send drops the connection and forces a rescan.
func (m *MIDIOutWatcher) Send(msg midi.Message) {
	if len(msg) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}
	if err := m.send(msg); err != nil {
		logger.Warn("midi: send failed, dropping port", "device", m.selectedName, "msg", msg.String(), "err", err)
		m.closeConn()
		m.forceRescan = true
	}
}

// Tick should be called on a regular interval from the main loop. It scans
// for ports at most once per midiRescanInterval, auto-connects to a preferred
// one, and detects disappearances.
func (m *MIDIOutWatcher) Tick() {
	connected := m.tick()
	if connected && m.onConnect != nil {
		m.onConnect()
	}
}

func (m *MIDIOutWatcher) tick() (newlyConnected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.forceRescan && !m.rescan.HasPassed(midiRescanInterval) {
		return false
	}
	m.forceRescan = false
	m.rescan.Restart()

	outputs := m.listOutputs()

	if m.connected {
		for _, n := range outputs {
			if n == m.selectedName {
				return false // still there, nothing to do
			}
		}
		logger.Warn("midi: device disappeared", "device", m.selectedName)
		m.closeConn()
		m.forceRescan = true // rescan immediately next tick
		return false
	}

	if len(outputs) == 0 {
		return false
	}
	cand, ok := m.pickPreferred(outputs)
	if !ok {
		logger.Debug("midi: no preferred output", "available", strings.Join(outputs, ", "))
		return false
	}
	if err := m.openByName(cand); err != nil {
		logger.Error("midi: connect failed", "device", cand, "err", err)
		return false
	}
	return true
}

// -------------------- internal --------------------

func (m *MIDIOutWatcher) listOutputs() []string {
	outs, err := m.drv.Outs()
	if err != nil {
		logger.Error("midi: list outputs failed", "err", err)
		return nil
	}
	var names []string
	for _, out := range outs {
		name := out.String()
		if matchesAny(name, EXCLUDED_PATTERNS) {
			logger.Debug("midi: output excluded", "device", name)
			continue
		}
		names = append(names, name)
	}
	logger.Debug("midi: outputs found", "count", len(names), "devices", strings.Join(names, ", "))
	return names
}

func (m *MIDIOutWatcher) pickPreferred(outputs []string) (string, bool) {
	return pickPreferred(outputs, m.preferred)
}

func (m *MIDIOutWatcher) closeConn() {
	if m.outPort != nil {
		_ = m.outPort.Close()
		m.outPort = nil
	}
	m.send = nil
	m.connected = false
	m.selectedName = ""
}

func (m *MIDIOutWatcher) openByName(name string) error {
	outs, err := m.drv.Outs()
	if err != nil {
		return err
	}
	var found drivers.Out
	for _, out := range outs {
		if out.String() == name {
			found = out
			break
		}
	}
	if found == nil {
		return fmt.Errorf("output %q not found", name)
	}
	if err := found.Open(); err != nil {
		return fmt.Errorf("open %q: %w", name, err)
	}
	send, err := midi.SendTo(found)
	if err != nil {
		_ = found.Close()
		return fmt.Errorf("send to %q: %w", name, err)
	}

	m.outPort = found
	m.send = send
	m.connected = true
	m.selectedName = name
	logger.Info("midi: connected", "device", name)
	return nil
}

// -------------------- utility --------------------

// pickPreferred returns the first port matching a pattern, in pattern order,
// or the only port if there is exactly one.
func pickPreferred(ports, patterns []string) (string, bool) {
	for _, pat := range patterns {
		for _, name := range ports {
			if containsCI(name, pat) {
				return name, true
			}
		}
	}
	if len(ports) == 1 {
		return ports[0], true
	}
	return "", false
}

func matchesAny(name string, patterns []string) bool {
	for _, pat := range patterns {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
