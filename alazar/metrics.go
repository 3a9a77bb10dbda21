package alazar

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of one or more engines.  A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	buffersTotal  *prometheus.CounterVec
	bytesTotal    *prometheus.CounterVec
	captures      *prometheus.CounterVec
	timeouts      *prometheus.CounterVec
	hwErrors      *prometheus.CounterVec
	waitDuration  *prometheus.HistogramVec
	pinnedBytes   *prometheus.GaugeVec
	bufferCount   *prometheus.GaugeVec
	engineStateUp *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with registry
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		buffersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alazar_buffers_completed_total",
			Help: "Total number of DMA buffers filled by the board and consumed",
		}, []string{"board"}),
		bytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alazar_bytes_transferred_total",
			Help: "Total payload bytes transferred by DMA",
		}, []string{"board"}),
		captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alazar_captures_total",
			Help: "Total number of captures by outcome",
		}, []string{"board", "outcome"}), // outcome: completed, aborted, failed
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alazar_wait_timeouts_total",
			Help: "Total number of buffer wait timeouts by phase",
		}, []string{"board", "phase"}),
		hwErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "alazar_hardware_errors_total",
			Help: "Total number of errors returned by the board, by procedure",
		}, []string{"board", "procedure"}),
		waitDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "alazar_buffer_wait_duration_seconds",
			Help:    "Time spent waiting for a buffer to complete",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 100us to ~26s
		}, []string{"board"}),
		pinnedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alazar_pinned_bytes",
			Help: "Bytes currently held by the DMA buffer pool",
		}, []string{"board"}),
		bufferCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alazar_buffer_pool_size",
			Help: "Number of buffers currently in the DMA buffer pool",
		}, []string{"board"}),
		engineStateUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "alazar_engine_state",
			Help: "1 for the state the engine is in, 0 for the others",
		}, []string{"board", "state"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.buffersTotal.Describe(ch)
	m.bytesTotal.Describe(ch)
	m.captures.Describe(ch)
	m.timeouts.Describe(ch)
	m.hwErrors.Describe(ch)
	m.waitDuration.Describe(ch)
	m.pinnedBytes.Describe(ch)
	m.bufferCount.Describe(ch)
	m.engineStateUp.Describe(ch)
}

// Collect implements prometheus.Collector
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.buffersTotal.Collect(ch)
	m.bytesTotal.Collect(ch)
	m.captures.Collect(ch)
	m.timeouts.Collect(ch)
	m.hwErrors.Collect(ch)
	m.waitDuration.Collect(ch)
	m.pinnedBytes.Collect(ch)
	m.bufferCount.Collect(ch)
	m.engineStateUp.Collect(ch)
}

func (m *Metrics) recordBuffer(board string, bytes int, wait time.Duration) {
	if m == nil {
		return
	}
	m.buffersTotal.WithLabelValues(board).Inc()
	m.bytesTotal.WithLabelValues(board).Add(float64(bytes))
	m.waitDuration.WithLabelValues(board).Observe(wait.Seconds())
}

func (m *Metrics) recordOutcome(board string, s EngineState) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(board, s.String()).Inc()
}

func (m *Metrics) recordError(board string, err error) {
	if m == nil || err == nil {
		return
	}
	var (
		te TimeoutError
		he HardwareStatusError
		ue UnknownHardwareError
		oe OverflowError
	)
	switch {
	case errors.As(err, &te):
		m.timeouts.WithLabelValues(board, string(te.Phase)).Inc()
	case errors.As(err, &he):
		m.hwErrors.WithLabelValues(board, he.Procedure).Inc()
	case errors.As(err, &ue):
		m.hwErrors.WithLabelValues(board, ue.Procedure).Inc()
	case errors.As(err, &oe):
		m.hwErrors.WithLabelValues(board, oe.Procedure).Inc()
	}
}

func (m *Metrics) recordPool(board string, p *BufferPool) {
	if m == nil {
		return
	}
	if p == nil || p.Released() {
		m.pinnedBytes.WithLabelValues(board).Set(0)
		m.bufferCount.WithLabelValues(board).Set(0)
		return
	}
	m.pinnedBytes.WithLabelValues(board).Set(float64(p.Bytes()))
	m.bufferCount.WithLabelValues(board).Set(float64(p.Count()))
}

func (m *Metrics) recordState(board string, s EngineState) {
	if m == nil {
		return
	}
	for _, st := range engineStates {
		v := 0.
		if st == s {
			v = 1
		}
		m.engineStateUp.WithLabelValues(board, st.String()).Set(v)
	}
}
