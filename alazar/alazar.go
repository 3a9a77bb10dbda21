/*Package alazar streams waveforms from AlazarTech digitizer boards over
asynchronous DMA and turns the raw records into calibrated voltage traces.

The package is layered the way the board is driven:
 - Hardware is the narrow boundary to the vendor library (see package atsapi
   for the cgo binding, MockBoard for a simulated board)
 - BufferPool owns the page-aligned memory the board writes into
 - Engine runs the post / wait / recycle loop
 - Accumulator demultiplexes and averages completed buffers
 - Scaler converts averaged codes to volts

Digitizer ties them together.  Basic usage:
 dig, err := alazar.Open(hw)
 if err != nil {
 	log.Fatal(err)
 }
 defer dig.Close()
 cfg := alazar.CaptureConfig{
 	SampleRate: alazar.SampleRate20MSPS,
 	Channels: []alazar.ChannelConfig{
 		{Enabled: true, Range: alazar.Range10V, Coupling: alazar.CouplingDC, Impedance: alazar.Impedance1MOhm},
 		{Enabled: true, Range: alazar.Range10V, Coupling: alazar.CouplingDC, Impedance: alazar.Impedance1MOhm},
 	},
 	Trigger:            alazar.TriggerConfig{Source: alazar.TriggerExternal, Slope: alazar.SlopePositive, Level: 180},
 	PostTriggerSamples: 4000,
 	RecordCount:        1,
 	AveragingFactor:    100,
 }
 traces, err := dig.ReadTraces(ctx, cfg, alazar.DefaultReadOptions())

Nothing in this package retries a failed hardware call.  Re-arming after a
first-wait timeout is left to the caller, see Digitizer.ReadTracesRetry.
*/
package alazar

import (
	"fmt"
	"sort"
	"strings"
)

// SampleRate is the board's sample rate selector
type SampleRate uint32

// InputRange is the input range selector of a channel
type InputRange uint32

// Coupling is the AC/DC coupling of an input or the external trigger
type Coupling uint32

// Impedance is the input impedance of a channel
type Impedance uint32

// ClockSource selects where the sample clock comes from
type ClockSource uint32

// ClockEdge is the edge of the sample clock samples are taken on
type ClockEdge uint32

// TriggerSource is the signal a trigger engine watches
type TriggerSource uint32

// TriggerSlope is the direction a trigger signal must cross the level in
type TriggerSlope uint32

// ExternalTriggerRange is the range of the external trigger input
type ExternalTriggerRange uint32

// ChannelMask is a bitmask of enabled channels, channel n is bit n-1
type ChannelMask uint32

const (
	SampleRate1KSPS   SampleRate = 0x01
	SampleRate10KSPS  SampleRate = 0x08
	SampleRate20KSPS  SampleRate = 0x0A
	SampleRate50KSPS  SampleRate = 0x0C
	SampleRate100KSPS SampleRate = 0x0E
	SampleRate200KSPS SampleRate = 0x10
	SampleRate500KSPS SampleRate = 0x12
	SampleRate1MSPS   SampleRate = 0x14
	SampleRate2MSPS   SampleRate = 0x18
	SampleRate5MSPS   SampleRate = 0x1A
	SampleRate10MSPS  SampleRate = 0x1C
	SampleRate20MSPS  SampleRate = 0x1E
	SampleRate50MSPS  SampleRate = 0x22
	SampleRate100MSPS SampleRate = 0x24
	SampleRate125MSPS SampleRate = 0x25
)

const (
	Range20mV  InputRange = 1
	Range40mV  InputRange = 2
	Range50mV  InputRange = 3
	Range80mV  InputRange = 4
	Range100mV InputRange = 5
	Range200mV InputRange = 6
	Range400mV InputRange = 7
	Range500mV InputRange = 8
	Range800mV InputRange = 9
	Range1V    InputRange = 10
	Range2V    InputRange = 11
	Range4V    InputRange = 12
	Range5V    InputRange = 13
	Range8V    InputRange = 14
	Range10V   InputRange = 15
)

const (
	// CouplingAC is AC coupling
	CouplingAC Coupling = 1
	// CouplingDC is DC coupling
	CouplingDC Coupling = 2

	// Impedance1MOhm is a 1 MOhm input
	Impedance1MOhm Impedance = 1
	// Impedance50Ohm is a 50 Ohm input
	Impedance50Ohm Impedance = 2

	// ClockInternal uses the on-board oscillator
	ClockInternal ClockSource = 1
	// ClockFastExternal is an external clock above 60 MHz
	ClockFastExternal ClockSource = 2
	// ClockMediumExternal is an external clock between 1 and 60 MHz
	ClockMediumExternal ClockSource = 3
	// ClockSlowExternal is an external clock below 1 MHz
	ClockSlowExternal ClockSource = 4
	// ClockExternal10MHzRef locks the internal clock to a 10 MHz reference
	ClockExternal10MHzRef ClockSource = 7

	// EdgeRising samples on the rising edge of the clock
	EdgeRising ClockEdge = 0
	// EdgeFalling samples on the falling edge of the clock
	EdgeFalling ClockEdge = 1

	// TriggerChannelA triggers on the first input
	TriggerChannelA TriggerSource = 0
	// TriggerChannelB triggers on the second input
	TriggerChannelB TriggerSource = 1
	// TriggerExternal triggers on the TRIG IN connector
	TriggerExternal TriggerSource = 2
	// TriggerDisable disables the trigger engine
	TriggerDisable TriggerSource = 3

	// SlopePositive triggers on a rising crossing
	SlopePositive TriggerSlope = 1
	// SlopeNegative triggers on a falling crossing
	SlopeNegative TriggerSlope = 2

	// ExtTrigger5V is a +/-5V external trigger range
	ExtTrigger5V ExternalTriggerRange = 0
	// ExtTrigger1V is a +/-1V external trigger range
	ExtTrigger1V ExternalTriggerRange = 1
	// ExtTriggerTTL is a TTL external trigger
	ExtTriggerTTL ExternalTriggerRange = 2
	// ExtTrigger2V5 is a +/-2.5V external trigger range
	ExtTrigger2V5 ExternalTriggerRange = 3
)

const (
	// ADMAExternalStartCapture makes the acquisition wait for StartCapture
	ADMAExternalStartCapture uint32 = 0x1
	// ADMATraditionalMode allows pre-trigger samples
	ADMATraditionalMode uint32 = 0x0
	// ADMANPT is "no pre-trigger" AutoDMA, the board streams post-trigger records
	ADMANPT uint32 = 0x200

	// DMAAlignment is the byte alignment required of a DMA buffer's length
	DMAAlignment = 4096

	// RecordAlignment is the sample alignment of pre- and post-trigger counts
	RecordAlignment = 128

	// MaxChannels is the largest number of channels a mask can describe
	MaxChannels = 16

	// DefaultMemoryBudget bounds the memory pinned for DMA, 512 MiB
	DefaultMemoryBudget = 512 * 1024 * 1024

	// DefaultMaxBuffers is the hard cap on the number of DMA buffers
	DefaultMaxBuffers = 1024

	// DefaultRecordsPerBuffer is the records per buffer used when a single
	// record is averaged many times
	DefaultRecordsPerBuffer = 100
)

var (
	// sampleRateHz maps a sample rate selector to samples per second
	sampleRateHz = map[SampleRate]float64{
		SampleRate1KSPS:   1e3,
		SampleRate10KSPS:  10e3,
		SampleRate20KSPS:  20e3,
		SampleRate50KSPS:  50e3,
		SampleRate100KSPS: 100e3,
		SampleRate200KSPS: 200e3,
		SampleRate500KSPS: 500e3,
		SampleRate1MSPS:   1e6,
		SampleRate2MSPS:   2e6,
		SampleRate5MSPS:   5e6,
		SampleRate10MSPS:  10e6,
		SampleRate20MSPS:  20e6,
		SampleRate50MSPS:  50e6,
		SampleRate100MSPS: 100e6,
		SampleRate125MSPS: 125e6,
	}

	sampleRateNames = map[SampleRate]string{
		SampleRate1KSPS:   "1 kS/s",
		SampleRate10KSPS:  "10 kS/s",
		SampleRate20KSPS:  "20 kS/s",
		SampleRate50KSPS:  "50 kS/s",
		SampleRate100KSPS: "100 kS/s",
		SampleRate200KSPS: "200 kS/s",
		SampleRate500KSPS: "500 kS/s",
		SampleRate1MSPS:   "1 MS/s",
		SampleRate2MSPS:   "2 MS/s",
		SampleRate5MSPS:   "5 MS/s",
		SampleRate10MSPS:  "10 MS/s",
		SampleRate20MSPS:  "20 MS/s",
		SampleRate50MSPS:  "50 MS/s",
		SampleRate100MSPS: "100 MS/s",
		SampleRate125MSPS: "125 MS/s",
	}

	// inputRangeVolts maps an input range selector to its half-scale in volts
	inputRangeVolts = map[InputRange]float64{
		Range20mV:  0.02,
		Range40mV:  0.04,
		Range50mV:  0.05,
		Range80mV:  0.08,
		Range100mV: 0.1,
		Range200mV: 0.2,
		Range400mV: 0.4,
		Range500mV: 0.5,
		Range800mV: 0.8,
		Range1V:    1,
		Range2V:    2,
		Range4V:    4,
		Range5V:    5,
		Range8V:    8,
		Range10V:   10,
	}

	inputRangeNames = map[InputRange]string{
		Range20mV:  "20 mV",
		Range40mV:  "40 mV",
		Range50mV:  "50 mV",
		Range80mV:  "80 mV",
		Range100mV: "100 mV",
		Range200mV: "200 mV",
		Range400mV: "400 mV",
		Range500mV: "500 mV",
		Range800mV: "800 mV",
		Range1V:    "1 V",
		Range2V:    "2 V",
		Range4V:    "4 V",
		Range5V:    "5 V",
		Range8V:    "8 V",
		Range10V:   "10 V",
	}

	// boardNames is the vendor's board kind table
	boardNames = map[int]string{
		1:  "ATS850",
		2:  "ATS310",
		3:  "ATS330",
		4:  "ATS855",
		5:  "ATS315",
		6:  "ATS335",
		7:  "ATS460",
		8:  "ATS860",
		9:  "ATS660",
		10: "ATS665",
		11: "ATS9462",
		12: "ATS9434",
		13: "ATS9870",
		14: "ATS9350",
		15: "ATS9325",
		16: "ATS9440",
		17: "ATS9410",
		18: "ATS9351",
		19: "ATS9310",
		20: "ATS9461",
		21: "ATS9850",
		22: "ATS9625",
		23: "ATG6500",
		24: "ATS9626",
		25: "ATS9360",
		26: "AXI9870",
		27: "ATS9370",
		28: "ATU7825",
		29: "ATS9373",
		30: "ATS9416",
	}
)

// Hz returns the sample rate in samples per second, and false if the selector is unknown
func (s SampleRate) Hz() (float64, bool) {
	hz, ok := sampleRateHz[s]
	return hz, ok
}

// String satisfies fmt.Stringer
func (s SampleRate) String() string {
	if n, ok := sampleRateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("SampleRate(0x%02X)", uint32(s))
}

// Volts returns the half-scale of the input range in volts, and false if the selector is unknown
func (r InputRange) Volts() (float64, bool) {
	v, ok := inputRangeVolts[r]
	return v, ok
}

// String satisfies fmt.Stringer
func (r InputRange) String() string {
	if n, ok := inputRangeNames[r]; ok {
		return n
	}
	return fmt.Sprintf("InputRange(%d)", uint32(r))
}

// Has is true if channel (1-based) is in the mask
func (m ChannelMask) Has(channel int) bool {
	if channel < 1 || channel > MaxChannels {
		return false
	}
	return m&(1<<uint(channel-1)) != 0
}

// Channels lists the channels in the mask in hardware order, 1-based
func (m ChannelMask) Channels() []int {
	out := []int{}
	for ch := 1; ch <= MaxChannels; ch++ {
		if m.Has(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// BoardName returns the model name for a board kind, or "" if unknown
func BoardName(kind int) string {
	return boardNames[kind]
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}

// ValidateSampleRate parses a sample rate such as "20 MS/s"
func ValidateSampleRate(s string) (SampleRate, error) {
	want := normalize(s)
	for k, v := range sampleRateNames {
		if normalize(v) == want {
			return k, nil
		}
	}
	return 0, ConfigurationError{Field: "SampleRate", Reason: fmt.Sprintf("%q is not one of %s", s, strings.Join(SampleRateNames(), ", "))}
}

// SampleRateNames lists the known sample rates, slowest first
func SampleRateNames() []string {
	keys := make([]SampleRate, 0, len(sampleRateNames))
	for k := range sampleRateNames {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = sampleRateNames[k]
	}
	return out
}

// ValidateInputRange parses an input range such as "10 V" or "400 mV"
func ValidateInputRange(s string) (InputRange, error) {
	want := normalize(s)
	for k, v := range inputRangeNames {
		if normalize(v) == want {
			return k, nil
		}
	}
	return 0, ConfigurationError{Field: "Range", Reason: fmt.Sprintf("%q is not a known input range", s)}
}

// ValidateCoupling parses a coupling, a member of {AC, DC}
func ValidateCoupling(s string) (Coupling, error) {
	switch normalize(s) {
	case "ac":
		return CouplingAC, nil
	case "dc", "":
		return CouplingDC, nil
	default:
		return 0, ConfigurationError{Field: "Coupling", Reason: "coupling must be a member of {AC, DC}"}
	}
}

// FormatCoupling converts a coupling to its string representation
func FormatCoupling(c Coupling) string {
	switch c {
	case CouplingAC:
		return "AC"
	case CouplingDC:
		return "DC"
	default:
		return ""
	}
}

// ValidateImpedance parses an impedance, a member of {1M, 50}
func ValidateImpedance(s string) (Impedance, error) {
	switch normalize(s) {
	case "1m", "1mohm", "":
		return Impedance1MOhm, nil
	case "50", "50ohm":
		return Impedance50Ohm, nil
	default:
		return 0, ConfigurationError{Field: "Impedance", Reason: "impedance must be a member of {1M, 50}"}
	}
}

// ValidateClockSource parses a clock source, a member of
// {internal, fast-external, medium-external, slow-external, 10mhz-ref}
func ValidateClockSource(s string) (ClockSource, error) {
	switch normalize(s) {
	case "internal", "":
		return ClockInternal, nil
	case "fast-external":
		return ClockFastExternal, nil
	case "medium-external":
		return ClockMediumExternal, nil
	case "slow-external":
		return ClockSlowExternal, nil
	case "10mhz-ref":
		return ClockExternal10MHzRef, nil
	default:
		return 0, ConfigurationError{Field: "ClockSource", Reason: "clock source must be a member of {internal, fast-external, medium-external, slow-external, 10mhz-ref}"}
	}
}

// ValidateTriggerSource parses a trigger source, a member of {A, B, external, disable}
func ValidateTriggerSource(s string) (TriggerSource, error) {
	switch normalize(s) {
	case "a", "cha", "channela":
		return TriggerChannelA, nil
	case "b", "chb", "channelb":
		return TriggerChannelB, nil
	case "external", "ext", "":
		return TriggerExternal, nil
	case "disable", "none":
		return TriggerDisable, nil
	default:
		return 0, ConfigurationError{Field: "TriggerSource", Reason: "trigger source must be a member of {A, B, external, disable}"}
	}
}

// FormatTriggerSource converts a trigger source to a string representation
func FormatTriggerSource(t TriggerSource) string {
	switch t {
	case TriggerChannelA:
		return "A"
	case TriggerChannelB:
		return "B"
	case TriggerExternal:
		return "external"
	case TriggerDisable:
		return "disable"
	default:
		return ""
	}
}

// ValidateTriggerSlope parses a slope, a member of {positive, negative}
func ValidateTriggerSlope(s string) (TriggerSlope, error) {
	switch normalize(s) {
	case "positive", "rising", "+", "":
		return SlopePositive, nil
	case "negative", "falling", "-":
		return SlopeNegative, nil
	default:
		return 0, ConfigurationError{Field: "TriggerSlope", Reason: "slope must be a member of {positive, negative}"}
	}
}

// ValidateExternalTriggerRange parses an external trigger range, a member of {5V, 1V, TTL, 2.5V}
func ValidateExternalTriggerRange(s string) (ExternalTriggerRange, error) {
	switch normalize(s) {
	case "5v", "":
		return ExtTrigger5V, nil
	case "1v":
		return ExtTrigger1V, nil
	case "ttl":
		return ExtTriggerTTL, nil
	case "2.5v":
		return ExtTrigger2V5, nil
	default:
		return 0, ConfigurationError{Field: "ExternalRange", Reason: "external trigger range must be a member of {5V, 1V, TTL, 2.5V}"}
	}
}
