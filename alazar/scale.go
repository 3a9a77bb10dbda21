package alazar

import (
	"fmt"
	"math"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
)

// Calibration converts transport words of one input range to volts.
// volts = (word - CodeZero) * VoltsPerCode
type Calibration struct {
	VoltsPerCode float64 `json:"voltsPerCode" yaml:"VoltsPerCode"`
	CodeZero     float64 `json:"codeZero" yaml:"CodeZero"`
}

// CalibrationTable maps an input range to its conversion
type CalibrationTable map[InputRange]Calibration

// NominalCalibration returns the conversion for a range of the given half
// scale, for bitsPerSample samples left-justified in bytesPerSample words.
//
// codeZero = codeRange = 2^(bits-1) - 0.5, and the word is shifted down by
// 8*bytes - bits before scaling.
func NominalCalibration(volts float64, bitsPerSample, bytesPerSample int) Calibration {
	div := math.Exp2(float64(8*bytesPerSample - bitsPerSample))
	codeRange := math.Exp2(float64(bitsPerSample-1)) - 0.5
	return Calibration{
		VoltsPerCode: volts / codeRange / div,
		CodeZero:     codeRange * div,
	}
}

// NominalCalibrationTable returns the nominal conversion for every known input range
func NominalCalibrationTable(bitsPerSample, bytesPerSample int) CalibrationTable {
	out := make(CalibrationTable, len(inputRangeVolts))
	for k, v := range inputRangeVolts {
		out[k] = NominalCalibration(v, bitsPerSample, bytesPerSample)
	}
	return out
}

// Scaler turns averaged transport words of one channel into a trace
type Scaler struct {
	Calibration
	// Offset is added after scaling, in volts
	Offset     float64
	XZero      float64
	XIncrement float64
}

// NewScaler builds the scaler for channel n (1-based).  cal takes precedence
// over the nominal conversion of the channel's range.
func NewScaler(c CaptureConfig, g Geometry, n int, cal CalibrationTable) (Scaler, error) {
	ch, ok := c.Channel(n)
	if !ok {
		return Scaler{}, ConfigurationError{Field: "channel", Reason: fmt.Sprintf("channel %d is not configured", n)}
	}
	hz, ok := c.SampleRate.Hz()
	if !ok {
		return Scaler{}, ConfigurationError{Field: "SampleRate", Reason: "unknown sample rate"}
	}
	s := Scaler{
		Offset:     ch.Offset,
		XZero:      -float64(c.PreTriggerSamples) / hz,
		XIncrement: 1 / hz,
	}
	if k, ok := cal[ch.Range]; ok {
		s.Calibration = k
		return s, nil
	}
	volts, ok := ch.Range.Volts()
	if !ok {
		return Scaler{}, ConfigurationError{Field: "Range", Reason: fmt.Sprintf("no calibration for input range %d", uint32(ch.Range))}
	}
	s.Calibration = NominalCalibration(volts, g.BitsPerSample, g.BytesPerSample)
	return s, nil
}

// Volts converts one transport word
func (s Scaler) Volts(word float64) float64 {
	return (word-s.CodeZero)*s.VoltsPerCode + s.Offset
}

// Code is the inverse of Volts
func (s Scaler) Code(volts float64) float64 {
	return (volts-s.Offset)/s.VoltsPerCode + s.CodeZero
}

// ToTrace scales words into a new trace; words is not modified.  An empty
// input produces a trace with an empty, non-nil Y.
func (s Scaler) ToTrace(words []float64) oscilloscope.Trace {
	y := make([]float64, len(words))
	for i, w := range words {
		y[i] = s.Volts(w)
	}
	return oscilloscope.Trace{XZero: s.XZero, XIncrement: s.XIncrement, Y: y}
}

// ToTrace scales the averaged words of channel n
func ToTrace(words []float64, n int, c CaptureConfig, g Geometry, cal CalibrationTable) (oscilloscope.Trace, error) {
	s, err := NewScaler(c, g, n, cal)
	if err != nil {
		return oscilloscope.Trace{}, err
	}
	return s.ToTrace(words), nil
}
