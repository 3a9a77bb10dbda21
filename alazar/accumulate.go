package alazar

import (
	"encoding/binary"
	"fmt"
)

// Accumulator folds completed buffers into running per-channel sums.
//
// A buffer holds RecordsPerBuffer contiguous records; within a record the
// samples of the enabled channels are interleaved in hardware order.  Record
// i of a buffer is a repeat of output record i % RecordCount.  Sums are kept
// in transport words; a float64 holds them exactly for any realistic
// averaging factor.
type Accumulator struct {
	g        Geometry
	channels []int
	sums     [][]float64
	buffers  int
}

// NewAccumulator returns an empty accumulator for g
func NewAccumulator(g Geometry) *Accumulator {
	a := &Accumulator{g: g, channels: g.Mask.Channels()}
	a.sums = make([][]float64, len(a.channels))
	for i := range a.sums {
		a.sums[i] = make([]float64, g.RecordCount*g.SamplesPerRecord)
	}
	return a
}

// Reset clears the sums for a new capture
func (a *Accumulator) Reset() {
	for _, s := range a.sums {
		clear(s)
	}
	a.buffers = 0
}

// Buffers is the number of buffers folded in since the last reset
func (a *Accumulator) Buffers() int {
	return a.buffers
}

// Accumulate adds one completed buffer.  Bytes past BytesPerBuffer are DMA
// padding and are ignored.  raw is only read.
func (a *Accumulator) Accumulate(raw []byte) error {
	g := a.g
	if len(raw) < g.BytesPerBuffer {
		return fmt.Errorf("buffer holds %d bytes, need %d", len(raw), g.BytesPerBuffer)
	}
	raw = raw[:g.BytesPerBuffer]
	nch := len(a.channels)
	spr := g.SamplesPerRecord
	bps := g.BytesPerSample
	pos := 0
	for rec := 0; rec < g.RecordsPerBuffer; rec++ {
		base := (rec % g.RecordCount) * spr
		for s := 0; s < spr; s++ {
			for c := 0; c < nch; c++ {
				var w uint16
				if bps == 2 {
					w = binary.LittleEndian.Uint16(raw[pos:])
				} else {
					w = uint16(raw[pos])
				}
				a.sums[c][base+s] += float64(w)
				pos += bps
			}
		}
	}
	a.buffers++
	return nil
}

// Result returns the averaged transport words of every enabled channel, keyed
// by channel number.  Each slice holds RecordCount records of
// SamplesPerRecordValue samples, the alignment padding cut away.  The sums
// are normalized by the buffers that actually contributed, so an early stop
// yields the mean of what was acquired.  With no buffer folded in every
// slice is empty.
func (a *Accumulator) Result() map[int][]float64 {
	g := a.g
	out := make(map[int][]float64, len(a.channels))
	if a.buffers == 0 {
		for _, ch := range a.channels {
			out[ch] = []float64{}
		}
		return out
	}
	div := float64(a.buffers * g.AveragesPerBuffer())
	for i, ch := range a.channels {
		y := make([]float64, 0, g.OutputLength())
		for rec := 0; rec < g.RecordCount; rec++ {
			start := rec*g.SamplesPerRecord + g.OutputOffset
			for _, v := range a.sums[i][start : start+g.SamplesPerRecordValue] {
				y = append(y, v/div)
			}
		}
		out[ch] = y
	}
	return out
}
