package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chase3718/lou-knobs/control"
	"github.com/chase3718/lou-knobs/internal/logging"
	"github.com/chase3718/lou-knobs/internal/stopwatch"
	"github.com/chase3718/lou-knobs/param"
)

// -------------------- Logger --------------------

// logger is the package-wide structured logger. Safe to use before initLogger
// is called; defaults to slog.Default().
var logger = slog.Default()

// initLogger configures the shared slog logger on the chosen transport and
// calls slog.SetDefault so library packages log through the same handler.
func initLogger(dest string, baud int, debug bool) (io.Closer, error) {
	d, err := logging.ParseDestination(dest)
	if err != nil {
		return nil, err
	}
	l, closer, err := logging.Open(d, logging.Options{Debug: debug, Baud: baud})
	if err != nil {
		return nil, err
	}
	logger = l
	slog.SetDefault(logger)
	return closer, nil
}

// -------------------- Tunables --------------------

const STATUS_INTERVAL = 10 * time.Second
const WATCH_INTERVAL = 250 * time.Millisecond
const DEFAULT_SLEW_SECONDS = 0.002

// -------------------- Flags --------------------

type paramFlags []ParamSpec

func (p *paramFlags) String() string {
	names := make([]string, len(*p))
	for i, s := range *p {
		names[i] = s.Name
	}
	return strings.Join(names, ";")
}

func (p *paramFlags) Set(v string) error {
	spec, err := ParseParamSpec(v)
	if err != nil {
		return err
	}
	*p = append(*p, spec)
	return nil
}

type options struct {
	debug         bool
	logDest       string
	logBaud       int
	serialDev     string
	baud          int
	sim           bool
	knobs         int
	scanRate      float64
	slew          float64
	out           string
	runningStatus bool
	prefer        string
	params        paramFlags
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := flag.NewFlagSet("lou-knobs", flag.ContinueOnError)
	fs.BoolVar(&o.debug, "debug", false, "enable debug logging (adds source location)")
	fs.StringVar(&o.logDest, "log", "stderr", "log destination: stderr, stdout, none or serial:<device>")
	fs.IntVar(&o.logBaud, "log-baud", 115200, "baud rate for a serial log destination")
	fs.StringVar(&o.serialDev, "serial", "/dev/ttyACM0", "knob board serial device")
	fs.IntVar(&o.baud, "baud", 500000, "knob board baud rate")
	fs.BoolVar(&o.sim, "sim", false, "simulate the knob board instead of opening -serial")
	fs.IntVar(&o.knobs, "knobs", 4, "number of knobs for -sim and the default bank")
	fs.Float64Var(&o.scanRate, "rate", 1000, "knob board scan rate in Hz")
	fs.Float64Var(&o.slew, "slew", DEFAULT_SLEW_SECONDS, "knob smoothing time in seconds (0 disables)")
	fs.StringVar(&o.out, "out", "midi", "MIDI output: midi (host port) or serial:<device> (DIN at 31250 baud)")
	fs.BoolVar(&o.runningStatus, "running-status", true, "use running status on a DIN output")
	fs.StringVar(&o.prefer, "prefer", "", "comma-separated port name patterns to prefer for -out midi")
	fs.Var(&o.params, "param", "virtual parameter, repeatable: knob=0,layer=shift,cc=74,min=20,max=20000,curve=log,behavior=pickup")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.knobs < 1 || o.knobs > MaxKnobs {
		return nil, fmt.Errorf("-knobs %d out of range 1-%d", o.knobs, MaxKnobs)
	}
	if o.scanRate <= 0 {
		return nil, fmt.Errorf("-rate must be positive")
	}
	return o, nil
}

func splitPatterns(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// -------------------- Wiring --------------------

func openOutput(o *options, onConnect func()) (Emitter, *MIDIOutWatcher, error) {
	spec, err := ParseOutput(o.out)
	if err != nil {
		return nil, nil, err
	}
	if spec.Port {
		w, err := NewMIDIOutWatcher(splitPatterns(o.prefer), onConnect)
		if err != nil {
			return nil, nil, err
		}
		return portEmitter{w: w}, w, nil
	}
	sp, err := OpenSerial(spec.Device, dinBaud)
	if err != nil {
		return nil, nil, err
	}
	return newUARTEmitter(sp, o.runningStatus, sp.Close), nil, nil
}

func startInput(ctx context.Context, o *options) (<-chan ControlFrame, error) {
	frames := make(chan ControlFrame, 64)
	if o.sim {
		rate := time.Duration(float64(time.Second) / o.scanRate)
		logger.Info("sim: simulating knob board", "knobs", o.knobs, "rate_hz", o.scanRate)
		go runSim(ctx, o.knobs, rate, frames)
		return frames, nil
	}
	sp, err := OpenSerial(o.serialDev, o.baud)
	if err != nil {
		return nil, err
	}
	go func() {
		defer sp.Close()
		if err := sp.ReadFrames(ctx, frames); err != nil {
			logger.Error("serial: reader stopped", "err", err)
		}
	}()
	return frames, nil
}

// -------------------- Main loop --------------------

// bridge owns the bank and drives it from the main goroutine only.
type bridge struct {
	bank     *Bank
	out      Emitter
	watcher  *MIDIOutWatcher
	keyShift bool
	resync   bool

	frames int
}

func (br *bridge) onFrame(f ControlFrame) {
	br.frames++
	if br.resync {
		br.resync = false
		br.bank.Resync()
	}
	br.bank.Apply(f)
	layer := LayerBase
	if f.Shift() || br.keyShift {
		layer = LayerShift
	}
	br.bank.SetLayer(layer)
	br.bank.Tick(br.out.Emit)
	if err := br.out.Flush(); err != nil {
		logger.Error("output: flush failed", "err", err)
	}
}

// onKey handles a key press and reports whether to quit.
func (br *bridge) onKey(k byte) bool {
	switch k {
	case 's', 'S':
		br.keyShift = !br.keyShift
		logger.Info("keys: shift toggled", "shift", br.keyShift)
	case 'r', 'R':
		br.resync = true
		logger.Info("keys: resync requested")
	case 'q', 'Q', 0x03: // Ctrl-C arrives as a byte in raw mode
		return true
	}
	return false
}

func (br *bridge) logStatus() {
	attrs := []any{"frames", br.frames, "layer", br.bank.Layer()}
	if br.watcher != nil {
		ok, name := br.watcher.Connected()
		attrs = append(attrs, "midi_connected", ok, "midi_device", name)
	}
	for _, v := range br.bank.Params() {
		if v.Enabled() {
			attrs = append(attrs, v.Spec.Name, fmt.Sprintf("%.3f/%s", v.Value(), v.State()))
		}
	}
	logger.Info("status", attrs...)
	br.frames = 0
}

func run(ctx context.Context, o *options) error {
	specs := []ParamSpec(o.params)
	if len(specs) == 0 {
		specs = DefaultSpecs(o.knobs)
	}
	bank, err := NewBank(specs, control.AnalogConfig{
		SampleRate:  float32(o.scanRate),
		SlewSeconds: float32(o.slew),
	})
	if err != nil {
		return err
	}
	for _, v := range bank.Params() {
		logger.Info("bank: param",
			"name", v.Spec.Name,
			"knob", v.Spec.Knob,
			"layer", v.Spec.Layer,
			"ch", v.Spec.Channel+1,
			"cc", v.Spec.CC,
			"pitch_bend", v.Spec.Target == TargetPitchBend,
			"min", v.Spec.Min,
			"max", v.Spec.Max,
			"curve", v.Spec.Curve,
			"behavior", v.Spec.Behavior,
		)
		if v.Spec.Curve == param.Logarithmic && v.Spec.Max <= 0 {
			logger.Warn("bank: log curve needs max > 0", "name", v.Spec.Name, "max", v.Spec.Max)
		}
	}

	br := &bridge{bank: bank}
	out, watcher, err := openOutput(o, func() { br.resync = true })
	if err != nil {
		return err
	}
	defer out.Close()
	br.out, br.watcher = out, watcher

	frames, err := startInput(ctx, o)
	if err != nil {
		return err
	}

	keys, err := StartKeyHost()
	if err != nil {
		logger.Warn("keys: keyboard shift unavailable", "err", err)
	}
	defer keys.Stop()
	keyCh := keys.Keys()
	if keys != nil {
		logger.Info("keys: s = toggle shift, r = resend all, q = quit")
	}

	ticker := time.NewTicker(WATCH_INTERVAL)
	defer ticker.Stop()
	status := stopwatch.New(nil)
	if watcher != nil {
		watcher.Tick()
	}

	logger.Info("running", "params", len(bank.Params()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case f, ok := <-frames:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return errors.New("input closed")
			}
			br.onFrame(f)
		case k, ok := <-keyCh:
			if !ok {
				keyCh = nil
				continue
			}
			if br.onKey(k) {
				return nil
			}
		case <-ticker.C:
			if watcher != nil {
				watcher.Tick()
			}
			if status.Lap(STATUS_INTERVAL) {
				br.logStatus()
			}
		}
	}
}

// -------------------- Main --------------------

func main() {
	o, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	closer, err := initLogger(o.logDest, o.logBaud, o.debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer closer.Close()

	logger.Info("lou-knobs starting",
		"serial", o.serialDev,
		"baud", o.baud,
		"sim", o.sim,
		"out", o.out,
		"rate_hz", o.scanRate,
		"slew_s", o.slew,
		"debug", o.debug,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o); err != nil {
		logger.Error("lou-knobs stopped", "err", err)
		stop()
		closer.Close()
		os.Exit(1)
	}
	logger.Info("lou-knobs stopped")
}
