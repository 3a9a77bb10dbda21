package alazar

import (
	"errors"
	"strconv"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
)

// ErrNoTrace is generated when a channel has not been read yet
var ErrNoTrace = errors.New("no trace has been acquired on this channel")

// ChannelLabel is the name of channel n in waveforms and files, e.g. "CH1"
func ChannelLabel(n int) string {
	return "CH" + strconv.Itoa(n)
}

// Channel is one input of a Digitizer
type Channel struct {
	d *Digitizer
	n int
}

// Channel returns input n, 1-based
func (d *Digitizer) Channel(n int) Channel {
	return Channel{d: d, n: n}
}

// Number is the 1-based channel number
func (c Channel) Number() int {
	return c.n
}

// Config returns the channel's part of the last read's configuration
func (c Channel) Config() (ChannelConfig, bool) {
	c.d.lastMu.RLock()
	defer c.d.lastMu.RUnlock()
	return c.d.cfg.Channel(c.n)
}

// Trace returns the channel's trace from the last read
func (c Channel) Trace() (oscilloscope.Trace, error) {
	traces := c.d.LastTraces()
	if c.n < 1 || c.n > len(traces) {
		return oscilloscope.Trace{}, ErrNoTrace
	}
	return traces[c.n-1], nil
}

// Waveform returns time and voltage of the last trace
func (c Channel) Waveform() ([]float64, []float64, error) {
	tr, err := c.Trace()
	if err != nil {
		return nil, nil, err
	}
	x, y := tr.XY()
	return x, y, nil
}
