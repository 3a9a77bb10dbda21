package alazar

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nasa-jpl/golaborate-ats/util"
)

// EngineState is the position of an Engine in its lifecycle
type EngineState int32

const (
	StateIdle EngineState = iota
	StateConfigured
	StateArmed
	StateStreaming
	StateCompleted
	StateAborted
	StateFailed
)

var engineStates = []EngineState{StateIdle, StateConfigured, StateArmed, StateStreaming, StateCompleted, StateAborted, StateFailed}

func (s EngineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfigured:
		return "configured"
	case StateArmed:
		return "armed"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// InFlight is true while the board may be writing into the buffers
func (s EngineState) InFlight() bool {
	return s == StateArmed || s == StateStreaming
}

// DefaultTimeout is the buffer wait timeout used when none is given
const DefaultTimeout = 10 * time.Second

// RunOptions controls one fill loop
type RunOptions struct {
	// Stop is polled once per completed buffer; returning true ends the
	// capture as aborted
	Stop func() bool

	// Progress receives buffersCompleted / buffersPerAcquisition after every buffer
	Progress func(float64)

	// TimeoutFirst bounds the wait for the first buffer, which includes
	// waiting for the first trigger.  Zero means TimeoutSubsequent.
	TimeoutFirst time.Duration

	// TimeoutSubsequent bounds every later wait.  Zero means DefaultTimeout.
	TimeoutSubsequent time.Duration
}

// AcquisitionState is the outcome of one fill loop
type AcquisitionState struct {
	BuffersCompleted      int
	BuffersPerAcquisition int
	BytesTransferred      int64
	Outcome               EngineState

	// Samples holds the averaged transport words of every enabled channel,
	// keyed by channel number
	Samples map[int][]float64
}

// Engine drives the asynchronous DMA protocol of one board.
//
// An Engine is not safe for concurrent use, save State, Config and Geometry
// which may be read from any goroutine.  Run blocks; callers that need to stay responsive run
// it in their own goroutine and cancel it through its context or Stop.
type Engine struct {
	hw      Hardware
	log     *slog.Logger
	metrics *Metrics
	board   string
	bits    int
	memory  uint32

	alloc allocFunc
	free  freeFunc

	state atomic.Int32
	pool  *BufferPool
	acc   *Accumulator

	cfgMu  sync.RWMutex
	cfg    CaptureConfig
	geom   Geometry
	hasCfg bool
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger; the default is slog.Default()
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithMetrics records the engine's activity in m
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func withAllocator(alloc allocFunc, free freeFunc) Option {
	return func(e *Engine) {
		e.alloc = alloc
		e.free = free
	}
}

// NewEngine queries the board's sample width and returns an idle engine
func NewEngine(hw Hardware, opts ...Option) (*Engine, error) {
	e := &Engine{
		hw:    hw,
		log:   slog.Default(),
		alloc: allocPages,
		free:  freePages,
	}
	for _, opt := range opts {
		opt(e)
	}
	mem, bits, status := hw.ChannelInfo()
	if err := enrich(status, "AlazarGetChannelInfo"); err != nil {
		return nil, err
	}
	e.memory = mem
	e.bits = int(bits)
	e.board = BoardName(hw.BoardKind())
	if e.board == "" {
		e.board = "unknown"
	}
	e.log = e.log.With("board", e.board)
	e.setState(StateIdle)
	return e, nil
}

// State returns the current state
func (e *Engine) State() EngineState {
	return EngineState(e.state.Load())
}

func (e *Engine) setState(s EngineState) {
	e.state.Store(int32(s))
	e.metrics.recordState(e.board, s)
}

// BitsPerSample is the sample width of the board
func (e *Engine) BitsPerSample() int {
	return e.bits
}

// MemorySamples is the on-board memory per channel, in samples
func (e *Engine) MemorySamples() uint32 {
	return e.memory
}

// Geometry returns the layout of the current configuration and false if there is none
func (e *Engine) Geometry() (Geometry, bool) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.geom, e.hasCfg
}

// Config returns the current configuration and false if there is none
func (e *Engine) Config() (CaptureConfig, bool) {
	e.cfgMu.RLock()
	defer e.cfgMu.RUnlock()
	return e.cfg, e.hasCfg
}

// setConfig records c and g as current, or clears the configuration if ok is false
func (e *Engine) setConfig(c CaptureConfig, g Geometry, ok bool) {
	e.cfgMu.Lock()
	defer e.cfgMu.Unlock()
	if !ok {
		c, g = CaptureConfig{}, Geometry{}
	}
	e.cfg, e.geom, e.hasCfg = c, g, ok
}

// Pool returns the buffer pool, which may be nil or released
func (e *Engine) Pool() *BufferPool {
	return e.pool
}

// Configure validates c, sizes the buffer pool and programs the board.  The
// pool is reallocated only if the buffer size or count changed.  Nothing
// reaches the board if c is invalid.
func (e *Engine) Configure(c CaptureConfig) error {
	if s := e.State(); s.InFlight() {
		return StateError{Op: "Configure", State: s}
	}
	if err := c.Validate(); err != nil {
		return err
	}
	g, err := ComputeGeometry(c, e.bits)
	if err != nil {
		return err
	}
	if err := e.ensurePool(g); err != nil {
		e.setConfig(CaptureConfig{}, Geometry{}, false)
		e.setState(StateFailed)
		return err
	}
	e.log.Info("capture geometry",
		"buffersNeeded", g.BuffersPerAcquisition,
		"bufferCount", g.BufferCount,
		"bufferSize", g.BytesPerBuffer,
		"bufferSizeMemory", g.BufferSize,
		"recordsPerBuffer", g.RecordsPerBuffer)

	if err := e.program(c, g); err != nil {
		e.metrics.recordError(e.board, err)
		e.setConfig(CaptureConfig{}, Geometry{}, false)
		e.setState(StateFailed)
		return err
	}
	e.setConfig(c, g, true)
	e.acc = NewAccumulator(g)
	e.setState(StateConfigured)
	return nil
}

func (e *Engine) ensurePool(g Geometry) error {
	if e.pool.Matches(g.BufferSize, g.BufferCount) {
		return nil
	}
	if err := e.pool.Release(); err != nil {
		e.log.Warn("releasing buffer pool", "err", err)
	}
	pool, err := newBufferPool(g.BufferSize, g.BufferCount, e.alloc, e.free)
	e.pool = pool
	e.metrics.recordPool(e.board, pool)
	return err
}

// program issues the configuration calls in the order the board expects
func (e *Engine) program(c CaptureConfig, g Geometry) error {
	hw := e.hw
	if err := enrich(hw.SetCaptureClock(c.ClockSource, c.SampleRate, c.ClockEdge, c.Decimation), "AlazarSetCaptureClock"); err != nil {
		return err
	}
	for i, ch := range c.Channels {
		if !ch.Enabled {
			continue
		}
		if err := enrich(hw.SetInputControl(i+1, ch.Coupling, ch.Range, ch.Impedance), "AlazarInputControl"); err != nil {
			return err
		}
		if err := enrich(hw.SetBandwidthLimit(i+1, ch.BandwidthLimit), "AlazarSetBWLimit"); err != nil {
			return err
		}
	}
	t := c.Trigger
	if err := enrich(hw.SetTriggerOperation(t.Source, t.Slope, t.Level), "AlazarSetTriggerOperation"); err != nil {
		return err
	}
	if err := enrich(hw.SetExternalTrigger(t.ExternalCoupling, t.ExternalRange), "AlazarSetExternalTrigger"); err != nil {
		return err
	}
	if err := enrich(hw.SetTriggerDelay(t.DelaySamples), "AlazarSetTriggerDelay"); err != nil {
		return err
	}
	if err := enrich(hw.SetTriggerTimeout(util.DurationToTicks(t.Timeout)), "AlazarSetTriggerTimeOut"); err != nil {
		return err
	}
	if err := enrich(hw.SetRecordSize(uint32(g.PreTriggerSamples), uint32(g.PostTriggerSamples)), "AlazarSetRecordSize"); err != nil {
		return err
	}
	return enrich(hw.SetRecordCount(uint32(g.RecordsPerAcquisition)), "AlazarSetRecordCount")
}

// Arm prepares the asynchronous read, posts every buffer of the pool and
// starts the capture.  It may be called again after a capture ended without
// reconfiguring.  On failure the board is aborted and the pool released.
func (e *Engine) Arm() error {
	s := e.State()
	g, ok := e.Geometry()
	if !ok || s == StateIdle || s.InFlight() {
		return StateError{Op: "Arm", State: s}
	}
	if err := e.ensurePool(g); err != nil {
		e.setState(StateFailed)
		return err
	}
	e.acc.Reset()
	start := time.Now()
	err := enrich(e.hw.BeforeAsyncRead(g.Mask, g.TransferOffset, uint32(g.SamplesPerRecord),
		uint32(g.RecordsPerBuffer), uint32(g.RecordsPerAcquisition), g.Flags), "AlazarBeforeAsyncRead")
	for i := 0; err == nil && i < e.pool.Count(); i++ {
		err = enrich(e.hw.PostAsyncBuffer(e.pool.Buffer(i).Bytes()), "AlazarPostAsyncBuffer")
	}
	if err == nil {
		e.log.Debug("buffers posted", "count", e.pool.Count(), "elapsed", time.Since(start))
		err = enrich(e.hw.StartCapture(), "AlazarStartCapture")
	}
	if err != nil {
		e.metrics.recordError(e.board, err)
		e.teardown()
		e.setState(StateFailed)
		return err
	}
	e.setState(StateArmed)
	return nil
}

// Run is the blocking fill loop.  It waits on buffer completed % BufferCount,
// folds it into the accumulator and posts it again while more buffers are
// needed.  The loop ends Completed when every buffer arrived, Aborted when
// Stop returns true or ctx is done, and Failed on any hardware error.
//
// The asynchronous read is always aborted when Run returns, but the pool is
// kept, so the engine may be re-armed after a first-wait timeout.  Abort
// releases it.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*AcquisitionState, error) {
	if s := e.State(); s != StateArmed {
		return nil, StateError{Op: "Run", State: s}
	}
	e.setState(StateStreaming)
	g, _ := e.Geometry()
	next := opts.TimeoutSubsequent
	if next <= 0 {
		next = DefaultTimeout
	}
	timeout := opts.TimeoutFirst
	if timeout <= 0 {
		timeout = next
	}
	acq := &AcquisitionState{BuffersPerAcquisition: g.BuffersPerAcquisition}
	start := time.Now()
	defer func() {
		if err := enrich(e.hw.AbortAsyncRead(), "AlazarAbortAsyncRead"); err != nil {
			e.log.Debug("abort async read", "err", err)
		}
		e.metrics.recordOutcome(e.board, acq.Outcome)
		e.log.Info("capture finished",
			"outcome", acq.Outcome.String(),
			"buffers", acq.BuffersCompleted,
			"bytes", acq.BytesTransferred,
			"elapsed", time.Since(start))
	}()

	for acq.BuffersCompleted < g.BuffersPerAcquisition {
		buf := e.pool.Buffer(acq.BuffersCompleted % e.pool.Count())
		t0 := time.Now()
		status := e.hw.WaitAsyncBufferComplete(buf.Bytes(), util.DurationToMillis(timeout))
		if err := enrichWait(status, buf.Index(), acq.BuffersCompleted == 0, timeout); err != nil {
			return e.fail(acq, err)
		}
		timeout = next
		acq.BuffersCompleted++
		acq.BytesTransferred += int64(buf.Len())
		e.metrics.recordBuffer(e.board, g.BytesPerBuffer, time.Since(t0))
		e.log.Debug("buffer complete", "index", buf.Index(), "completed", acq.BuffersCompleted)
		if opts.Progress != nil {
			opts.Progress(float64(acq.BuffersCompleted) / float64(g.BuffersPerAcquisition))
		}
		if err := e.acc.Accumulate(buf.Bytes()); err != nil {
			return e.fail(acq, err)
		}
		if acq.BuffersCompleted == g.BuffersPerAcquisition {
			break
		}
		if ctx.Err() != nil || (opts.Stop != nil && opts.Stop()) {
			acq.Outcome = StateAborted
			acq.Samples = e.acc.Result()
			e.setState(StateAborted)
			return acq, nil
		}
		if acq.BuffersCompleted+e.pool.Count() <= g.BuffersPerAcquisition {
			if err := enrich(e.hw.PostAsyncBuffer(buf.Bytes()), "AlazarPostAsyncBuffer"); err != nil {
				return e.fail(acq, err)
			}
		}
	}
	acq.Outcome = StateCompleted
	acq.Samples = e.acc.Result()
	e.setState(StateCompleted)
	return acq, nil
}

func (e *Engine) fail(acq *AcquisitionState, err error) (*AcquisitionState, error) {
	e.metrics.recordError(e.board, err)
	acq.Outcome = StateFailed
	e.setState(StateFailed)
	return acq, err
}

// Abort stops any transfer and releases the buffer pool.  It is safe to
// call from any state and more than once.  Errors from the board are
// ignored, there may be nothing to abort.
func (e *Engine) Abort() {
	e.teardown()
	switch s := e.State(); s {
	case StateIdle, StateCompleted, StateAborted, StateFailed:
	default:
		e.setState(StateAborted)
	}
}

func (e *Engine) teardown() {
	if err := enrich(e.hw.AbortAsyncRead(), "AlazarAbortAsyncRead"); err != nil {
		e.log.Debug("abort async read", "err", err)
	}
	if e.hw.Busy() {
		if err := enrich(e.hw.AbortCapture(), "AlazarAbortCapture"); err != nil {
			e.log.Debug("abort capture", "err", err)
		}
	}
	if err := e.pool.Release(); err != nil {
		e.log.Warn("releasing buffer pool", "err", err)
	}
	e.metrics.recordPool(e.board, e.pool)
}

// Close aborts and releases everything held by the engine
func (e *Engine) Close() error {
	e.Abort()
	return nil
}
