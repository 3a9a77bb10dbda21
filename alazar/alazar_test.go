package alazar

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSampleRate(t *testing.T) {
	r, err := ValidateSampleRate("20 MS/s")
	require.NoError(t, err)
	assert.Equal(t, SampleRate20MSPS, r)
	r, err = ValidateSampleRate("125ms/s")
	require.NoError(t, err)
	assert.Equal(t, SampleRate125MSPS, r)
	hz, ok := r.Hz()
	assert.True(t, ok)
	assert.Equal(t, 125e6, hz)

	_, err = ValidateSampleRate("3 MS/s")
	var cerr ConfigurationError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "20 MS/s")
}

func TestSampleRateNamesSorted(t *testing.T) {
	names := SampleRateNames()
	require.Len(t, names, 15)
	assert.Equal(t, "1 kS/s", names[0])
	assert.Equal(t, "125 MS/s", names[len(names)-1])
}

func TestValidateInputRange(t *testing.T) {
	r, err := ValidateInputRange("400 mV")
	require.NoError(t, err)
	assert.Equal(t, Range400mV, r)
	v, _ := r.Volts()
	assert.Equal(t, 0.4, v)
	assert.Equal(t, "400 mV", r.String())
	_, err = ValidateInputRange("3 V")
	assert.Error(t, err)
	assert.Equal(t, "InputRange(99)", InputRange(99).String())
}

func TestEnumParsers(t *testing.T) {
	c, err := ValidateCoupling("ac")
	require.NoError(t, err)
	assert.Equal(t, CouplingAC, c)
	assert.Equal(t, "AC", FormatCoupling(c))
	_, err = ValidateCoupling("gnd")
	assert.Error(t, err)

	imp, err := ValidateImpedance("50 Ohm")
	require.NoError(t, err)
	assert.Equal(t, Impedance50Ohm, imp)

	clk, err := ValidateClockSource("10MHz-ref")
	require.NoError(t, err)
	assert.Equal(t, ClockExternal10MHzRef, clk)
	_, err = ValidateClockSource("atomic")
	assert.Error(t, err)

	src, err := ValidateTriggerSource("Channel A")
	require.NoError(t, err)
	assert.Equal(t, TriggerChannelA, src)
	assert.Equal(t, "A", FormatTriggerSource(src))

	sl, err := ValidateTriggerSlope("falling")
	require.NoError(t, err)
	assert.Equal(t, SlopeNegative, sl)

	er, err := ValidateExternalTriggerRange("2.5 V")
	require.NoError(t, err)
	assert.Equal(t, ExtTrigger2V5, er)
	_, err = ValidateExternalTriggerRange("12V")
	assert.Error(t, err)
}

func TestChannelMask(t *testing.T) {
	m := ChannelMask(0b1010)
	assert.Equal(t, []int{2, 4}, m.Channels())
	assert.True(t, m.Has(2))
	assert.False(t, m.Has(1))
	assert.False(t, m.Has(0))
	assert.False(t, m.Has(MaxChannels+1))
	assert.Empty(t, ChannelMask(0).Channels())
}

func TestBoardName(t *testing.T) {
	assert.Equal(t, "ATS9440", BoardName(16))
	assert.Equal(t, "", BoardName(999))
}
