package alazar

import (
	"fmt"
	"time"

	"github.com/nasa-jpl/golaborate-ats/mathx"
	"github.com/nasa-jpl/golaborate-ats/util"
)

// ChannelConfig describes one input channel
type ChannelConfig struct {
	Enabled        bool
	Range          InputRange
	Coupling       Coupling
	Impedance      Impedance
	BandwidthLimit bool

	// Offset is added to every scaled sample, in volts
	Offset float64
}

// TriggerConfig describes trigger engine J.  Engine K is always disabled.
type TriggerConfig struct {
	Source TriggerSource
	Slope  TriggerSlope

	// Level is the raw 8-bit trigger level code, 128 is mid-scale.
	// No conversion from volts is attempted.
	Level uint32

	ExternalCoupling Coupling
	ExternalRange    ExternalTriggerRange

	// DelaySamples delays the trigger by a number of sample clocks
	DelaySamples uint32

	// Timeout makes the board trigger itself when no event arrived in this
	// long.  Zero waits forever.
	Timeout time.Duration
}

// CaptureConfig is the complete description of one acquisition.  It is not
// modified by anything in this package.
type CaptureConfig struct {
	ClockSource ClockSource
	ClockEdge   ClockEdge
	Decimation  uint32
	SampleRate  SampleRate

	// Channels is indexed by channel - 1, i.e. Channels[0] is channel A
	Channels []ChannelConfig

	Trigger TriggerConfig

	PreTriggerSamples  int
	PostTriggerSamples int

	// RecordCount is the number of distinct records per trace
	RecordCount int

	// AveragingFactor is the number of raw records averaged into each output record
	AveragingFactor int

	// RecordsPerBuffer is a hint used only when RecordCount is 1; the largest
	// divisor of AveragingFactor not above it is used.  Zero means DefaultRecordsPerBuffer.
	RecordsPerBuffer int

	// BufferCount overrides the sizing policy when positive
	BufferCount int

	// MemoryBudget bounds 2*BufferCount*BufferSize, in bytes.  Zero means DefaultMemoryBudget.
	MemoryBudget int

	// MaxBuffers caps the buffer count.  Zero means DefaultMaxBuffers.
	MaxBuffers int

	// Calibration replaces the nominal code to volts conversion for the
	// ranges it contains
	Calibration CalibrationTable
}

// Mask returns the bitmask of enabled channels
func (c CaptureConfig) Mask() ChannelMask {
	var m ChannelMask
	for i, ch := range c.Channels {
		if ch.Enabled {
			m |= 1 << uint(i)
		}
	}
	return m
}

// Channel returns the configuration of channel n (1-based) and false if it is absent
func (c CaptureConfig) Channel(n int) (ChannelConfig, bool) {
	if n < 1 || n > len(c.Channels) {
		return ChannelConfig{}, false
	}
	return c.Channels[n-1], true
}

// Validate checks the configuration without talking to the board.  A config
// with no enabled channel is valid; it describes an empty acquisition.
func (c CaptureConfig) Validate() error {
	if _, ok := c.SampleRate.Hz(); !ok {
		return ConfigurationError{Field: "SampleRate", Reason: fmt.Sprintf("unknown sample rate code 0x%02X", uint32(c.SampleRate))}
	}
	if c.ClockSource == 0 {
		return ConfigurationError{Field: "ClockSource", Reason: "no clock source given"}
	}
	if len(c.Channels) == 0 {
		return ConfigurationError{Field: "Channels", Reason: "at least one channel must be described"}
	}
	if len(c.Channels) > MaxChannels {
		return ConfigurationError{Field: "Channels", Reason: fmt.Sprintf("at most %d channels are supported", MaxChannels)}
	}
	for i, ch := range c.Channels {
		if !ch.Enabled {
			continue
		}
		field := fmt.Sprintf("Channels[%d]", i)
		if _, ok := ch.Range.Volts(); !ok {
			if _, cal := c.Calibration[ch.Range]; !cal {
				return ConfigurationError{Field: field + ".Range", Reason: fmt.Sprintf("unknown input range code %d", uint32(ch.Range))}
			}
		}
		if ch.Coupling != CouplingAC && ch.Coupling != CouplingDC {
			return ConfigurationError{Field: field + ".Coupling", Reason: "coupling must be AC or DC"}
		}
		if ch.Impedance != Impedance1MOhm && ch.Impedance != Impedance50Ohm {
			return ConfigurationError{Field: field + ".Impedance", Reason: "impedance must be 1M or 50 Ohm"}
		}
	}
	if c.PreTriggerSamples < 0 {
		return ConfigurationError{Field: "PreTriggerSamples", Reason: "must not be negative"}
	}
	if c.PostTriggerSamples <= 0 {
		return ConfigurationError{Field: "PostTriggerSamples", Reason: "must be positive"}
	}
	if c.RecordCount < 1 {
		return ConfigurationError{Field: "RecordCount", Reason: "must be at least 1"}
	}
	if c.AveragingFactor < 1 {
		return ConfigurationError{Field: "AveragingFactor", Reason: "must be at least 1"}
	}
	if c.RecordsPerBuffer < 0 || c.BufferCount < 0 || c.MemoryBudget < 0 || c.MaxBuffers < 0 {
		return ConfigurationError{Field: "buffer sizing", Reason: "hints must not be negative"}
	}
	t := c.Trigger
	if t.Source > TriggerDisable {
		return ConfigurationError{Field: "Trigger.Source", Reason: "unknown trigger source"}
	}
	if t.Slope != SlopePositive && t.Slope != SlopeNegative {
		return ConfigurationError{Field: "Trigger.Slope", Reason: "slope must be positive or negative"}
	}
	if t.Level > 255 {
		return ConfigurationError{Field: "Trigger.Level", Reason: "trigger level is an 8-bit code in [0, 255]"}
	}
	if t.ExternalCoupling != CouplingAC && t.ExternalCoupling != CouplingDC {
		return ConfigurationError{Field: "Trigger.ExternalCoupling", Reason: "coupling must be AC or DC"}
	}
	if t.ExternalRange > ExtTrigger2V5 {
		return ConfigurationError{Field: "Trigger.ExternalRange", Reason: "unknown external trigger range"}
	}
	if t.Timeout < 0 {
		return ConfigurationError{Field: "Trigger.Timeout", Reason: "must not be negative"}
	}
	if t.Timeout > 0 && util.DurationToTicks(t.Timeout) == 0 {
		return ConfigurationError{Field: "Trigger.Timeout", Reason: fmt.Sprintf("shorter than one %v tick", util.TickPeriod)}
	}
	return nil
}

// Geometry is the DMA layout derived from a CaptureConfig and the board's sample width
type Geometry struct {
	// PreTriggerSamples and PostTriggerSamples are aligned to RecordAlignment
	PreTriggerSamples  int `json:"preTriggerSamples"`
	PostTriggerSamples int `json:"postTriggerSamples"`

	// SamplesPerRecord is the aligned record length the board transfers
	SamplesPerRecord int `json:"samplesPerRecord"`

	// SamplesPerRecordValue is the record length the caller asked for
	SamplesPerRecordValue int `json:"samplesPerRecordValue"`

	// OutputOffset is the first sample of a transferred record that is returned
	OutputOffset int `json:"outputOffset"`

	Channels       int         `json:"channels"`
	Mask           ChannelMask `json:"mask"`
	BitsPerSample  int         `json:"bitsPerSample"`
	BytesPerSample int         `json:"bytesPerSample"`

	RecordCount           int `json:"recordCount"`
	AveragingFactor       int `json:"averagingFactor"`
	RecordsPerBuffer      int `json:"recordsPerBuffer"`
	BuffersPerAcquisition int `json:"buffersPerAcquisition"`
	RecordsPerAcquisition int `json:"recordsPerAcquisition"`

	// BytesPerBuffer is the payload of one buffer, BufferSize the allocation
	// padded to DMAAlignment
	BytesPerBuffer int `json:"bytesPerBuffer"`
	BufferSize     int `json:"bufferSize"`
	BufferCount    int `json:"bufferCount"`

	Flags          uint32 `json:"flags"`
	TransferOffset int32  `json:"transferOffset"`
}

// AveragesPerBuffer is the number of repeats of every output record held in one buffer
func (g Geometry) AveragesPerBuffer() int {
	return g.RecordsPerBuffer / g.RecordCount
}

// OutputLength is the number of samples per channel returned to the caller
func (g Geometry) OutputLength() int {
	return g.SamplesPerRecordValue * g.RecordCount
}

// ComputeGeometry derives the DMA layout for c on a board with bitsPerSample
// wide samples.  c must be valid and have at least one channel enabled.
func ComputeGeometry(c CaptureConfig, bitsPerSample int) (Geometry, error) {
	if bitsPerSample < 1 || bitsPerSample > 16 {
		return Geometry{}, ConfigurationError{Field: "bitsPerSample", Reason: fmt.Sprintf("%d bit samples are not supported", bitsPerSample)}
	}
	mask := c.Mask()
	nch := mathx.PopCount(uint32(mask))
	if nch == 0 {
		return Geometry{}, ConfigurationError{Field: "Channels", Reason: "no channel is enabled"}
	}
	g := Geometry{
		Mask:                  mask,
		Channels:              nch,
		BitsPerSample:         bitsPerSample,
		BytesPerSample:        (bitsPerSample + 7) / 8,
		RecordCount:           c.RecordCount,
		AveragingFactor:       c.AveragingFactor,
		PreTriggerSamples:     mathx.CeilMultiple(c.PreTriggerSamples, RecordAlignment),
		PostTriggerSamples:    mathx.CeilMultiple(c.PostTriggerSamples, RecordAlignment),
		SamplesPerRecordValue: c.PreTriggerSamples + c.PostTriggerSamples,
	}
	g.SamplesPerRecord = g.PreTriggerSamples + g.PostTriggerSamples
	g.OutputOffset = g.PreTriggerSamples - c.PreTriggerSamples

	if c.RecordCount > 1 {
		g.RecordsPerBuffer = c.RecordCount
		g.BuffersPerAcquisition = c.AveragingFactor
	} else {
		hint := c.RecordsPerBuffer
		if hint == 0 {
			hint = DefaultRecordsPerBuffer
		}
		g.RecordsPerBuffer = mathx.LargestDivisorAtMost(c.AveragingFactor, hint)
		g.BuffersPerAcquisition = c.AveragingFactor / g.RecordsPerBuffer
	}
	g.RecordsPerAcquisition = g.RecordsPerBuffer * g.BuffersPerAcquisition

	g.BytesPerBuffer = g.BytesPerSample * g.SamplesPerRecord * g.RecordsPerBuffer * nch
	g.BufferSize = mathx.CeilMultiple(g.BytesPerBuffer, DMAAlignment)

	budget := c.MemoryBudget
	if budget == 0 {
		budget = DefaultMemoryBudget
	}
	maxBufs := c.MaxBuffers
	if maxBufs == 0 {
		maxBufs = DefaultMaxBuffers
	}
	if c.BufferCount > 0 {
		g.BufferCount = c.BufferCount
	} else {
		g.BufferCount = bufferCount(g.BufferSize, budget)
	}
	g.BufferCount = min(g.BufferCount, g.BuffersPerAcquisition, maxBufs)

	g.Flags = ADMAExternalStartCapture | ADMANPT
	if g.PreTriggerSamples > 0 {
		g.Flags = ADMAExternalStartCapture | ADMATraditionalMode
	}
	g.TransferOffset = -int32(g.PreTriggerSamples)
	return g, nil
}

// bufferCount is the largest even n with 2*n*size <= budget, at least one
func bufferCount(size, budget int) int {
	n := budget / (2 * size)
	n -= n % 2
	if n < 1 {
		n = 1
	}
	return n
}
