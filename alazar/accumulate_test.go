package alazar

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillBuffer writes f(channel index, buffer record, sample) into a buffer laid
// out for g, returning it padded to BufferSize
func fillBuffer(g Geometry, f func(c, rec, s int) uint16) []byte {
	buf := make([]byte, g.BufferSize)
	pos := 0
	for rec := 0; rec < g.RecordsPerBuffer; rec++ {
		for s := 0; s < g.SamplesPerRecord; s++ {
			for c := 0; c < g.Channels; c++ {
				binary.LittleEndian.PutUint16(buf[pos:], f(c, rec, s))
				pos += 2
			}
		}
	}
	for ; pos < len(buf); pos++ {
		buf[pos] = 0xFF
	}
	return buf
}

func TestAccumulateIdentity(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 14)
	require.NoError(t, err)
	a := NewAccumulator(g)
	for i := 0; i < g.BuffersPerAcquisition; i++ {
		buf := fillBuffer(g, func(c, rec, s int) uint16 { return uint16(1000*(c+1) + s) })
		require.NoError(t, a.Accumulate(buf))
	}
	assert.Equal(t, 3, a.Buffers())
	out := a.Result()
	require.Len(t, out, 2)
	for s, v := range out[1] {
		require.Equal(t, float64(1000+s), v)
	}
	for s, v := range out[2] {
		require.Equal(t, float64(2000+s), v)
	}
}

func TestAccumulateAverages(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 14)
	require.NoError(t, err)
	a := NewAccumulator(g)
	// record r of buffer b holds b*4 + r, the mean over 12 records is 5.5
	for b := 0; b < 3; b++ {
		buf := fillBuffer(g, func(c, rec, s int) uint16 { return uint16(b*4 + rec) })
		require.NoError(t, a.Accumulate(buf))
	}
	out := a.Result()
	assert.Equal(t, 5.5, out[1][0])
	assert.Equal(t, 5.5, out[2][255])
}

func TestAccumulateSegmented(t *testing.T) {
	c := testConfig()
	c.RecordCount = 3
	c.AveragingFactor = 2
	c.PreTriggerSamples = 10
	c.PostTriggerSamples = 20
	g, err := ComputeGeometry(c, 14)
	require.NoError(t, err)
	require.Equal(t, 3, g.RecordsPerBuffer)
	a := NewAccumulator(g)
	for b := 0; b < g.BuffersPerAcquisition; b++ {
		buf := fillBuffer(g, func(ch, rec, s int) uint16 { return uint16(100*rec + s) })
		require.NoError(t, a.Accumulate(buf))
	}
	out := a.Result()
	y := out[1]
	// each record is cut to pre+post samples, starting at the first requested pre-trigger sample
	require.Len(t, y, 3*30)
	assert.Equal(t, float64(g.OutputOffset), y[0])
	assert.Equal(t, float64(100+g.OutputOffset), y[30])
	assert.Equal(t, float64(200+g.OutputOffset+29), y[89])
}

func TestAccumulateIgnoresPadding(t *testing.T) {
	c := testConfig()
	c.PostTriggerSamples = 100
	c.Channels = c.Channels[:1]
	g, err := ComputeGeometry(c, 14)
	require.NoError(t, err)
	require.Greater(t, g.BufferSize, g.BytesPerBuffer)
	a := NewAccumulator(g)
	for b := 0; b < g.BuffersPerAcquisition; b++ {
		require.NoError(t, a.Accumulate(fillBuffer(g, func(c, rec, s int) uint16 { return 7 })))
	}
	y := a.Result()[1]
	assert.Len(t, y, 100)
	for _, v := range y {
		require.Equal(t, 7., v)
	}
}

func TestAccumulateShortBuffer(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 14)
	require.NoError(t, err)
	a := NewAccumulator(g)
	assert.Error(t, a.Accumulate(make([]byte, 10)))
	assert.Equal(t, 0, a.Buffers())
}

func TestAccumulateEmptyAndReset(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 14)
	require.NoError(t, err)
	a := NewAccumulator(g)
	out := a.Result()
	require.NotNil(t, out[1])
	assert.Empty(t, out[1])

	require.NoError(t, a.Accumulate(fillBuffer(g, func(c, rec, s int) uint16 { return 9 })))
	a.Reset()
	assert.Equal(t, 0, a.Buffers())
	require.NoError(t, a.Accumulate(fillBuffer(g, func(c, rec, s int) uint16 { return 3 })))
	assert.Equal(t, 3., a.Result()[2][17])
}

func TestAccumulateEightBit(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 8)
	require.NoError(t, err)
	a := NewAccumulator(g)
	buf := make([]byte, g.BufferSize)
	for i := 0; i < g.BytesPerBuffer; i += 2 {
		buf[i] = 10
		buf[i+1] = 20
	}
	for b := 0; b < g.BuffersPerAcquisition; b++ {
		require.NoError(t, a.Accumulate(buf))
	}
	out := a.Result()
	assert.Equal(t, 10., out[1][0])
	assert.Equal(t, 20., out[2][0])
}
