package oscilloscope_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceTime(t *testing.T) {
	tr := oscilloscope.Trace{XZero: -1e-6, XIncrement: 1e-6, Y: []float64{0, 1, 2}}
	x := tr.Time()
	require.Len(t, x, 3)
	assert.InDelta(t, -1e-6, x[0], 1e-18)
	assert.InDelta(t, 0, x[1], 1e-18)
	assert.InDelta(t, 1e-6, x[2], 1e-18)
}

func TestXYCopiesVoltage(t *testing.T) {
	tr := oscilloscope.Trace{XIncrement: 1, Y: []float64{1, 2}}
	_, y := tr.XY()
	y[0] = 99
	assert.Equal(t, 1., tr.Y[0])
}

func TestEncodeCSVSkipsEmpty(t *testing.T) {
	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{
		"CH1": {XIncrement: 0.5, Y: []float64{}},
		"CH2": {XIncrement: 0.5, Y: []float64{1, 2}},
	}}
	var buf bytes.Buffer
	require.NoError(t, wav.EncodeCSV(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"time,CH2", "0,1", "0.5,2"}, lines)
}

func TestEncodeCSVLengthMismatch(t *testing.T) {
	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{
		"CH1": {Y: []float64{1}},
		"CH2": {Y: []float64{1, 2}},
	}}
	var buf bytes.Buffer
	assert.ErrorIs(t, wav.EncodeCSV(&buf), oscilloscope.ErrLengthMismatch)
}

func TestLabelsInChannelOrder(t *testing.T) {
	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{}}
	for _, l := range []string{"CH10", "CH2", "CH1", "CH16", "CH9", "AUX"} {
		wav.Traces[l] = oscilloscope.Trace{Y: []float64{1}}
	}
	assert.Equal(t, []string{"AUX", "CH1", "CH2", "CH9", "CH10", "CH16"}, wav.Labels())

	var buf bytes.Buffer
	require.NoError(t, wav.EncodeCSV(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "time,AUX,CH1,CH2,CH9,CH10,CH16\n"))
}
