package alazar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*CaptureConfig)
		field string
	}{
		{"sample rate", func(c *CaptureConfig) { c.SampleRate = 0x7F }, "SampleRate"},
		{"clock", func(c *CaptureConfig) { c.ClockSource = 0 }, "ClockSource"},
		{"no channels", func(c *CaptureConfig) { c.Channels = nil }, "Channels"},
		{"too many channels", func(c *CaptureConfig) { c.Channels = make([]ChannelConfig, MaxChannels+1) }, "Channels"},
		{"range", func(c *CaptureConfig) { c.Channels[1].Range = 99 }, "Channels[1].Range"},
		{"coupling", func(c *CaptureConfig) { c.Channels[0].Coupling = 0 }, "Channels[0].Coupling"},
		{"impedance", func(c *CaptureConfig) { c.Channels[0].Impedance = 7 }, "Channels[0].Impedance"},
		{"pre", func(c *CaptureConfig) { c.PreTriggerSamples = -1 }, "PreTriggerSamples"},
		{"post", func(c *CaptureConfig) { c.PostTriggerSamples = 0 }, "PostTriggerSamples"},
		{"records", func(c *CaptureConfig) { c.RecordCount = 0 }, "RecordCount"},
		{"averages", func(c *CaptureConfig) { c.AveragingFactor = 0 }, "AveragingFactor"},
		{"hints", func(c *CaptureConfig) { c.BufferCount = -2 }, "buffer sizing"},
		{"trigger source", func(c *CaptureConfig) { c.Trigger.Source = 9 }, "Trigger.Source"},
		{"trigger slope", func(c *CaptureConfig) { c.Trigger.Slope = 0 }, "Trigger.Slope"},
		{"trigger level", func(c *CaptureConfig) { c.Trigger.Level = 256 }, "Trigger.Level"},
		{"trigger coupling", func(c *CaptureConfig) { c.Trigger.ExternalCoupling = 3 }, "Trigger.ExternalCoupling"},
		{"trigger range", func(c *CaptureConfig) { c.Trigger.ExternalRange = 4 }, "Trigger.ExternalRange"},
		{"negative timeout", func(c *CaptureConfig) { c.Trigger.Timeout = -time.Second }, "Trigger.Timeout"},
		{"sub-tick timeout", func(c *CaptureConfig) { c.Trigger.Timeout = time.Microsecond }, "Trigger.Timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mod(&c)
			var cerr ConfigurationError
			require.ErrorAs(t, c.Validate(), &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestValidateAcceptsDisabledChannelsAndCalibratedRanges(t *testing.T) {
	c := testConfig()
	c.Channels[0] = ChannelConfig{}
	c.Channels[1].Enabled = false
	assert.NoError(t, c.Validate())
	assert.Equal(t, ChannelMask(0), c.Mask())

	c = testConfig()
	c.Channels[0].Range = 42
	c.Calibration = CalibrationTable{42: {VoltsPerCode: 1e-4, CodeZero: 32768}}
	assert.NoError(t, c.Validate())
}

func TestChannelLookup(t *testing.T) {
	c := testConfig()
	_, ok := c.Channel(0)
	assert.False(t, ok)
	_, ok = c.Channel(3)
	assert.False(t, ok)
	ch, ok := c.Channel(2)
	assert.True(t, ok)
	assert.Equal(t, Range5V, ch.Range)
}

func TestGeometryTestConfig(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 14)
	require.NoError(t, err)
	assert.Equal(t, 4, g.RecordsPerBuffer)
	assert.Equal(t, 3, g.BuffersPerAcquisition)
	assert.Equal(t, 12, g.RecordsPerAcquisition)
	assert.Equal(t, 2, g.BufferCount)
	assert.Equal(t, 2, g.BytesPerSample)
	assert.Equal(t, 4096, g.BytesPerBuffer)
	assert.Equal(t, 4096, g.BufferSize)
	assert.Equal(t, 4, g.AveragesPerBuffer())
	assert.Equal(t, 256, g.OutputLength())
}

func TestGeometryInvariants(t *testing.T) {
	for _, rc := range []int{1, 2, 7} {
		for _, avg := range []int{1, 3, 12, 100, 1000, 997} {
			for _, post := range []int{1, 100, 128, 4000} {
				for _, nch := range []int{1, 2, 4} {
					c := testConfig()
					c.Channels = make([]ChannelConfig, nch)
					for i := range c.Channels {
						c.Channels[i] = testConfig().Channels[0]
					}
					c.RecordCount = rc
					c.AveragingFactor = avg
					c.PostTriggerSamples = post
					c.RecordsPerBuffer = 0
					c.BufferCount = 0
					g, err := ComputeGeometry(c, 14)
					require.NoError(t, err)

					assert.Equal(t, rc*avg, g.RecordsPerBuffer*g.BuffersPerAcquisition, "rc=%d avg=%d", rc, avg)
					assert.Zero(t, g.RecordsPerBuffer%rc)
					assert.Zero(t, g.SamplesPerRecord%RecordAlignment)
					assert.Zero(t, g.BufferSize%DMAAlignment)
					assert.GreaterOrEqual(t, g.BufferSize, g.BytesPerBuffer)
					assert.LessOrEqual(t, g.BufferCount, g.BuffersPerAcquisition)
					assert.GreaterOrEqual(t, g.BufferCount, 1)
					assert.LessOrEqual(t, g.BufferCount, DefaultMaxBuffers)
					assert.Equal(t, post, g.SamplesPerRecordValue)
					assert.Equal(t, rc*post, g.OutputLength())
				}
			}
		}
	}
}

func TestGeometrySegmented(t *testing.T) {
	c := testConfig()
	c.RecordCount = 5
	c.AveragingFactor = 7
	g, err := ComputeGeometry(c, 14)
	require.NoError(t, err)
	assert.Equal(t, 5, g.RecordsPerBuffer)
	assert.Equal(t, 7, g.BuffersPerAcquisition)
	assert.Equal(t, 1, g.AveragesPerBuffer())
}

func TestGeometryBufferCountFromBudget(t *testing.T) {
	c := testConfig()
	c.BufferCount = 0
	c.AveragingFactor = 4000
	c.RecordsPerBuffer = 4
	c.MemoryBudget = 10 * 4096
	g, err := ComputeGeometry(c, 14)
	require.NoError(t, err)
	// largest even n with 2*n*4096 <= 40960
	assert.Equal(t, 4, g.BufferCount)

	c.MemoryBudget = 4096
	g, err = ComputeGeometry(c, 14)
	require.NoError(t, err)
	assert.Equal(t, 1, g.BufferCount)

	c.MemoryBudget = 0
	c.MaxBuffers = 6
	g, err = ComputeGeometry(c, 14)
	require.NoError(t, err)
	assert.Equal(t, 6, g.BufferCount)
}

func TestGeometryPreTrigger(t *testing.T) {
	c := testConfig()
	c.PreTriggerSamples = 100
	c.PostTriggerSamples = 200
	g, err := ComputeGeometry(c, 14)
	require.NoError(t, err)
	assert.Equal(t, 128, g.PreTriggerSamples)
	assert.Equal(t, 256, g.PostTriggerSamples)
	assert.Equal(t, 384, g.SamplesPerRecord)
	assert.Equal(t, 300, g.SamplesPerRecordValue)
	assert.Equal(t, 28, g.OutputOffset)
	assert.Equal(t, int32(-128), g.TransferOffset)
	assert.Equal(t, ADMAExternalStartCapture|ADMATraditionalMode, g.Flags)
}

func TestGeometryEightBit(t *testing.T) {
	g, err := ComputeGeometry(testConfig(), 8)
	require.NoError(t, err)
	assert.Equal(t, 1, g.BytesPerSample)
	assert.Equal(t, 2048, g.BytesPerBuffer)
	assert.Equal(t, 4096, g.BufferSize)
}

func TestGeometryErrors(t *testing.T) {
	_, err := ComputeGeometry(testConfig(), 0)
	assert.Error(t, err)
	_, err = ComputeGeometry(testConfig(), 17)
	assert.Error(t, err)

	c := testConfig()
	for i := range c.Channels {
		c.Channels[i].Enabled = false
	}
	_, err = ComputeGeometry(c, 14)
	assert.Error(t, err)
}

func TestBufferCount(t *testing.T) {
	assert.Equal(t, 1, bufferCount(4096, 0))
	assert.Equal(t, 1, bufferCount(4096, 3*4096))
	assert.Equal(t, 2, bufferCount(4096, 4*4096))
	assert.Equal(t, 2, bufferCount(4096, 7*4096))
	assert.Equal(t, 4, bufferCount(4096, 8*4096))
}
