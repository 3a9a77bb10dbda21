// Package oscilloscope provides the trace and waveform types produced by digitizers
package oscilloscope

import (
	"bufio"
	"encoding/csv"
	"errors"
	"io"
	"sort"
	"strconv"
)

// ErrLengthMismatch is generated when traces of unequal length are encoded together
var ErrLengthMismatch = errors.New("traces in a waveform must have equal length to be encoded together")

// Trace is one channel's calibrated recording.  The time of sample i is
// XZero + i*XIncrement.
//
// A Trace is not modified after it is returned by a digitizer.
type Trace struct {
	// XZero is the time of the first sample in seconds, relative to the trigger
	XZero float64 `json:"xZero"`

	// XIncrement is the temporal sample spacing in seconds
	XIncrement float64 `json:"xIncrement"`

	// Y holds the samples in volts.  A disabled channel has a non-nil, empty Y.
	Y []float64 `json:"y"`
}

// Len returns the number of samples in the trace
func (t Trace) Len() int {
	return len(t.Y)
}

// Empty is true when the trace holds no samples, e.g. a disabled channel
func (t Trace) Empty() bool {
	return len(t.Y) == 0
}

// Time computes the time axis of the trace
func (t Trace) Time() []float64 {
	out := make([]float64, len(t.Y))
	for i := range out {
		out[i] = t.XZero + float64(i)*t.XIncrement
	}
	return out
}

// XY returns the (time, voltage) pair.  Voltage is a copy.
func (t Trace) XY() ([]float64, []float64) {
	y := make([]float64, len(t.Y))
	copy(y, t.Y)
	return t.Time(), y
}

// Waveform is a set of named traces recorded together
type Waveform struct {
	// Traces holds named data streams, e.g. "CH1"
	Traces map[string]Trace `json:"traces"`
}

// Labels returns the names of the non-empty traces in channel order, so
// CH2 comes before CH10
func (wav Waveform) Labels() []string {
	labels := make([]string, 0, len(wav.Traces))
	for k, v := range wav.Traces {
		if v.Empty() {
			continue
		}
		labels = append(labels, k)
	}
	sort.Slice(labels, func(i, j int) bool { return labelLess(labels[i], labels[j]) })
	return labels
}

// splitLabel splits a label into its prefix and trailing number, e.g.
// "CH12" => "CH", 12.  ok is false if there is no trailing number.
func splitLabel(l string) (prefix string, n int, ok bool) {
	i := len(l)
	for i > 0 && l[i-1] >= '0' && l[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(l[i:])
	if err != nil {
		return l, 0, false
	}
	return l[:i], n, true
}

func labelLess(a, b string) bool {
	pa, na, oka := splitLabel(a)
	pb, nb, okb := splitLabel(b)
	if oka && okb && pa == pb && na != nb {
		return na < nb
	}
	return a < b
}

// EncodeCSV writes the non-empty traces to a CSV in streaming fashion.  The first
// column is time, taken from the first trace.
func (wav Waveform) EncodeCSV(w io.Writer) error {
	labels := wav.Labels()
	if len(labels) == 0 {
		return nil
	}
	first := wav.Traces[labels[0]]
	n := first.Len()
	for _, l := range labels {
		if wav.Traces[l].Len() != n {
			return ErrLengthMismatch
		}
	}
	timestamps := first.Time()

	buf := bufio.NewWriter(w)
	writer := csv.NewWriter(buf)
	row := append([]string{"time"}, labels...)
	err := writer.Write(row)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		row[0] = strconv.FormatFloat(timestamps[i], 'G', -1, 64)
		for j, l := range labels {
			row[j+1] = strconv.FormatFloat(wav.Traces[l].Y[i], 'G', -1, 64)
		}
		err = writer.Write(row)
		if err != nil {
			return err
		}
	}
	writer.Flush()
	if err = writer.Error(); err != nil {
		return err
	}
	return buf.Flush()
}
