package alazar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
)

// ErrNotConfigured is generated when a read skips configuration but the board was never configured
var ErrNotConfigured = errors.New("digitizer has not been configured")

// Info describes the board
type Info struct {
	Kind          int    `json:"kind"`
	Name          string `json:"name"`
	MemorySamples uint32 `json:"memorySamples"`
	BitsPerSample int    `json:"bitsPerSample"`
}

// ReadOptions controls one call to ReadTraces
type ReadOptions struct {
	// Configure programs the board and sizes the buffers.  When false the
	// last configuration is reused and the cfg argument is ignored.
	Configure bool

	// Arm posts the buffers and starts the capture.  When false the board
	// must already be armed by an earlier call with Measure false.
	Arm bool

	// Measure runs the fill loop.  When false ReadTraces returns as soon as
	// the board is armed, with no traces.
	Measure bool

	Stop     func() bool
	Progress func(float64)

	// Timeout bounds every buffer wait; zero is the digitizer's Timeout
	Timeout time.Duration

	// FirstTimeout bounds the first buffer wait; zero is Timeout
	FirstTimeout time.Duration
}

// DefaultReadOptions configures, arms and measures
func DefaultReadOptions() ReadOptions {
	return ReadOptions{Configure: true, Arm: true, Measure: true}
}

// Digitizer is a board and its engine.  Reads are serialized; Cancel and
// the accessors may be called from any goroutine.
type Digitizer struct {
	// Timeout is used by reads that give none
	Timeout time.Duration

	hw   Hardware
	eng  *Engine
	log  *slog.Logger
	info Info

	mu sync.Mutex

	cancelMu sync.Mutex
	cancel   context.CancelFunc

	lastMu sync.RWMutex
	last   []oscilloscope.Trace
	cfg    CaptureConfig

	progress Progress
}

// Open wraps hw in a Digitizer.  opts are passed to the engine.
func Open(hw Hardware, opts ...Option) (*Digitizer, error) {
	eng, err := NewEngine(hw, opts...)
	if err != nil {
		return nil, err
	}
	kind := hw.BoardKind()
	return &Digitizer{
		Timeout: DefaultTimeout,
		hw:      hw,
		eng:     eng,
		log:     eng.log,
		info: Info{
			Kind:          kind,
			Name:          BoardName(kind),
			MemorySamples: eng.MemorySamples(),
			BitsPerSample: eng.BitsPerSample(),
		},
	}, nil
}

// Info returns the identity of the board
func (d *Digitizer) Info() Info {
	return d.info
}

// Engine returns the transfer engine
func (d *Digitizer) Engine() *Engine {
	return d.eng
}

// State returns the state of the engine
func (d *Digitizer) State() EngineState {
	return d.eng.State()
}

// Busy is true while the board is acquiring
func (d *Digitizer) Busy() bool {
	return d.hw.Busy()
}

// Progress is the fraction of the current or last acquisition completed
func (d *Digitizer) Progress() float64 {
	return d.progress.Fraction()
}

// Cancel stops a running read at the next buffer boundary.  It does nothing
// when no read is running.
func (d *Digitizer) Cancel() {
	d.cancelMu.Lock()
	defer d.cancelMu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// Abort cancels any read, stops the board and releases the buffers
func (d *Digitizer) Abort() {
	d.Cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.eng.Abort()
}

// Close aborts and releases the board's buffers
func (d *Digitizer) Close() error {
	d.Cancel()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eng.Close()
}

// ReadTraces acquires, averages and scales one trace per channel described
// by cfg.  A disabled channel yields a trace with no samples.  With no
// channel enabled nothing reaches the board.
//
// Any error leaves the board aborted and the buffers released.
func (d *Digitizer) ReadTraces(ctx context.Context, cfg CaptureConfig, ro ReadOptions) ([]oscilloscope.Trace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	traces, err := d.read(ctx, cfg, ro)
	if err != nil {
		d.eng.Abort()
	}
	return traces, err
}

// ReadTracesRetry is ReadTraces that re-arms, following b, whenever the
// first buffer times out.  Any other error ends the attempt immediately.
func (d *Digitizer) ReadTracesRetry(ctx context.Context, cfg CaptureConfig, ro ReadOptions, b backoff.BackOff) ([]oscilloscope.Trace, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var traces []oscilloscope.Trace
	attempt := ro
	op := func() error {
		var err error
		traces, err = d.read(ctx, cfg, attempt)
		attempt.Configure = false
		attempt.Arm = true
		if err == nil {
			return nil
		}
		if IsFirstTimeout(err) {
			d.log.Info("no trigger before the first timeout, re-arming", "err", err)
			return err
		}
		return backoff.Permanent(err)
	}
	err := backoff.Retry(op, backoff.WithContext(b, ctx))
	if err != nil {
		d.eng.Abort()
		return nil, err
	}
	return traces, nil
}

func (d *Digitizer) read(ctx context.Context, cfg CaptureConfig, ro ReadOptions) ([]oscilloscope.Trace, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	d.cancelMu.Lock()
	d.cancel = cancel
	d.cancelMu.Unlock()
	defer func() {
		d.cancelMu.Lock()
		d.cancel = nil
		d.cancelMu.Unlock()
	}()

	if ro.Configure {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if cfg.Mask() == 0 {
			return d.store(cfg, emptyTraces(cfg)), nil
		}
		if err := d.eng.Configure(cfg); err != nil {
			return nil, err
		}
	} else {
		var ok bool
		cfg, ok = d.eng.Config()
		if !ok {
			return nil, ErrNotConfigured
		}
	}
	if ro.Arm {
		if err := d.eng.Arm(); err != nil {
			return nil, err
		}
	}
	if !ro.Measure {
		return nil, nil
	}

	timeout := ro.Timeout
	if timeout <= 0 {
		timeout = d.Timeout
	}
	d.progress.Report(0)
	progress := func(f float64) {
		d.progress.Report(f)
		if ro.Progress != nil {
			ro.Progress(f)
		}
	}
	acq, err := d.eng.Run(ctx, RunOptions{
		Stop:              ro.Stop,
		Progress:          progress,
		TimeoutFirst:      ro.FirstTimeout,
		TimeoutSubsequent: timeout,
	})
	if err != nil {
		return nil, err
	}
	g, _ := d.eng.Geometry()
	traces := make([]oscilloscope.Trace, len(cfg.Channels))
	for i, ch := range cfg.Channels {
		n := i + 1
		if !ch.Enabled {
			traces[i] = emptyTrace(cfg)
			continue
		}
		tr, err := ToTrace(acq.Samples[n], n, cfg, g, cfg.Calibration)
		if err != nil {
			return nil, err
		}
		traces[i] = tr
	}
	return d.store(cfg, traces), nil
}

// emptyTrace is the trace of a disabled channel: the time axis of cfg and no samples
func emptyTrace(cfg CaptureConfig) oscilloscope.Trace {
	hz, _ := cfg.SampleRate.Hz()
	return oscilloscope.Trace{XZero: -float64(cfg.PreTriggerSamples) / hz, XIncrement: 1 / hz, Y: []float64{}}
}

func emptyTraces(cfg CaptureConfig) []oscilloscope.Trace {
	out := make([]oscilloscope.Trace, len(cfg.Channels))
	for i := range out {
		out[i] = emptyTrace(cfg)
	}
	return out
}

func (d *Digitizer) store(cfg CaptureConfig, traces []oscilloscope.Trace) []oscilloscope.Trace {
	d.lastMu.Lock()
	defer d.lastMu.Unlock()
	d.last = traces
	d.cfg = cfg
	return traces
}

// LastTraces returns the traces of the last successful read
func (d *Digitizer) LastTraces() []oscilloscope.Trace {
	d.lastMu.RLock()
	defer d.lastMu.RUnlock()
	return d.last
}

// Waveform returns the last traces as a waveform keyed "CH1", "CH2", ...
func (d *Digitizer) Waveform() oscilloscope.Waveform {
	traces := d.LastTraces()
	wav := oscilloscope.Waveform{Traces: make(map[string]oscilloscope.Trace, len(traces))}
	for i, tr := range traces {
		wav.Traces[ChannelLabel(i+1)] = tr
	}
	return wav
}
