package alazar

import (
	"bytes"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
)

func TestWriteFITS(t *testing.T) {
	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{
		"CH1": {XZero: -1e-6, XIncrement: 5e-8, Y: []float64{1, 2, 3}},
		"CH2": {XZero: -1e-6, XIncrement: 5e-8, Y: []float64{4, 5, 6}},
		"CH3": {Y: []float64{}},
	}}
	info := Info{Kind: 16, Name: "ATS9440", BitsPerSample: 14}
	var buf bytes.Buffer
	require.NoError(t, WriteFITS(&buf, wav, MetadataCards(info, testConfig())))

	f, err := fitsio.Open(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	img := f.HDU(0).(fitsio.Image)
	hdr := img.Header()
	assert.Equal(t, -64, hdr.Bitpix())
	assert.Equal(t, []int{3, 2}, hdr.Axes())
	assert.Equal(t, "CH2", hdr.Get("TRACE2").Value)
	assert.Equal(t, "ATS9440", hdr.Get("BOARD").Value)
	assert.NotNil(t, hdr.Get("CH1RNG"))
	assert.Equal(t, "1,2", hdr.Get("CHANNELS").Value)

	var data []float64
	require.NoError(t, img.Read(&data))
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, data)
}

func TestWriteFITSErrors(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFITS(&buf, oscilloscope.Waveform{}, nil)
	assert.ErrorIs(t, err, ErrEmptyWaveform)

	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{
		"CH1": {Y: []float64{1, 2}},
		"CH2": {Y: []float64{1}},
	}}
	assert.ErrorIs(t, WriteFITS(&buf, wav, nil), oscilloscope.ErrLengthMismatch)
}

func TestMetadataCardsSkipDisabled(t *testing.T) {
	c := testConfig()
	c.Channels[0].Enabled = false
	names := map[string]bool{}
	for _, card := range MetadataCards(Info{Name: "ATS9440"}, c) {
		names[card.Name] = true
	}
	assert.False(t, names["CH1RNG"])
	assert.True(t, names["CH2RNG"])
	assert.True(t, names["SRATE"])
	assert.True(t, names["CHANNELS"])
}
