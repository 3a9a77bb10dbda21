package alazar

import "github.com/nasa-jpl/golaborate-ats/util"

// ChannelSettings is the human-readable form of a ChannelConfig
type ChannelSettings struct {
	Enabled        bool    `yaml:"Enabled" json:"enabled"`
	Range          string  `yaml:"Range" json:"range"`
	Coupling       string  `yaml:"Coupling" json:"coupling"`
	Impedance      string  `yaml:"Impedance" json:"impedance"`
	BandwidthLimit bool    `yaml:"BandwidthLimit" json:"bandwidthLimit"`
	Offset         float64 `yaml:"Offset" json:"offset"`
}

// TriggerSettings is the human-readable form of a TriggerConfig
type TriggerSettings struct {
	Source           string `yaml:"Source" json:"source"`
	Slope            string `yaml:"Slope" json:"slope"`
	Level            uint32 `yaml:"Level" json:"level"`
	ExternalCoupling string `yaml:"ExternalCoupling" json:"externalCoupling"`
	ExternalRange    string `yaml:"ExternalRange" json:"externalRange"`
	DelaySamples     uint32 `yaml:"DelaySamples" json:"delaySamples"`

	// Timeout is in seconds, 0 waits forever
	Timeout float64 `yaml:"Timeout" json:"timeout"`
}

// Settings is the human-readable form of a CaptureConfig, as found in
// configuration files and HTTP requests, e.g. SampleRate "20 MS/s"
type Settings struct {
	ClockSource        string            `yaml:"ClockSource" json:"clockSource"`
	ClockEdge          string            `yaml:"ClockEdge" json:"clockEdge"`
	Decimation         uint32            `yaml:"Decimation" json:"decimation"`
	SampleRate         string            `yaml:"SampleRate" json:"sampleRate"`
	Channels           []ChannelSettings `yaml:"Channels" json:"channels"`
	Trigger            TriggerSettings   `yaml:"Trigger" json:"trigger"`
	PreTriggerSamples  int               `yaml:"PreTriggerSamples" json:"preTriggerSamples"`
	PostTriggerSamples int               `yaml:"PostTriggerSamples" json:"postTriggerSamples"`
	RecordCount        int               `yaml:"RecordCount" json:"recordCount"`
	AveragingFactor    int               `yaml:"AveragingFactor" json:"averagingFactor"`
	RecordsPerBuffer   int               `yaml:"RecordsPerBuffer" json:"recordsPerBuffer"`
	BufferCount        int               `yaml:"BufferCount" json:"bufferCount"`
	MemoryBudgetMiB    int               `yaml:"MemoryBudgetMiB" json:"memoryBudgetMiB"`
	MaxBuffers         int               `yaml:"MaxBuffers" json:"maxBuffers"`
}

// DefaultSettings is a two channel, externally triggered capture of 4000
// samples averaged 100 times
func DefaultSettings() Settings {
	ch := ChannelSettings{Enabled: true, Range: "10 V", Coupling: "DC", Impedance: "1M"}
	return Settings{
		ClockSource: "internal",
		ClockEdge:   "rising",
		SampleRate:  "20 MS/s",
		Channels:    []ChannelSettings{ch, ch},
		Trigger: TriggerSettings{
			Source:           "external",
			Slope:            "positive",
			Level:            150,
			ExternalCoupling: "DC",
			ExternalRange:    "5V",
		},
		PostTriggerSamples: 4000,
		RecordCount:        1,
		AveragingFactor:    100,
		RecordsPerBuffer:   DefaultRecordsPerBuffer,
		MemoryBudgetMiB:    DefaultMemoryBudget >> 20,
		MaxBuffers:         DefaultMaxBuffers,
	}
}

// CaptureConfig parses s.  The result is checked with Validate.
func (s Settings) CaptureConfig() (CaptureConfig, error) {
	var (
		c   CaptureConfig
		err error
	)
	if c.ClockSource, err = ValidateClockSource(s.ClockSource); err != nil {
		return c, err
	}
	switch normalize(s.ClockEdge) {
	case "rising", "":
		c.ClockEdge = EdgeRising
	case "falling":
		c.ClockEdge = EdgeFalling
	default:
		return c, ConfigurationError{Field: "ClockEdge", Reason: "clock edge must be a member of {rising, falling}"}
	}
	c.Decimation = s.Decimation
	if c.SampleRate, err = ValidateSampleRate(s.SampleRate); err != nil {
		return c, err
	}
	for _, cs := range s.Channels {
		ch := ChannelConfig{Enabled: cs.Enabled, BandwidthLimit: cs.BandwidthLimit, Offset: cs.Offset}
		if cs.Enabled {
			if ch.Range, err = ValidateInputRange(cs.Range); err != nil {
				return c, err
			}
		}
		if ch.Coupling, err = ValidateCoupling(cs.Coupling); err != nil {
			return c, err
		}
		if ch.Impedance, err = ValidateImpedance(cs.Impedance); err != nil {
			return c, err
		}
		c.Channels = append(c.Channels, ch)
	}
	t := s.Trigger
	if c.Trigger.Source, err = ValidateTriggerSource(t.Source); err != nil {
		return c, err
	}
	if c.Trigger.Slope, err = ValidateTriggerSlope(t.Slope); err != nil {
		return c, err
	}
	if c.Trigger.ExternalCoupling, err = ValidateCoupling(t.ExternalCoupling); err != nil {
		return c, err
	}
	if c.Trigger.ExternalRange, err = ValidateExternalTriggerRange(t.ExternalRange); err != nil {
		return c, err
	}
	c.Trigger.Level = t.Level
	c.Trigger.DelaySamples = t.DelaySamples
	c.Trigger.Timeout = util.SecsToDuration(t.Timeout)

	c.PreTriggerSamples = s.PreTriggerSamples
	c.PostTriggerSamples = s.PostTriggerSamples
	c.RecordCount = s.RecordCount
	c.AveragingFactor = s.AveragingFactor
	c.RecordsPerBuffer = s.RecordsPerBuffer
	c.BufferCount = s.BufferCount
	c.MemoryBudget = s.MemoryBudgetMiB << 20
	c.MaxBuffers = s.MaxBuffers
	return c, c.Validate()
}

// SettingsOf is the inverse of Settings.CaptureConfig
func SettingsOf(c CaptureConfig) Settings {
	s := Settings{
		ClockSource:        formatClockSource(c.ClockSource),
		ClockEdge:          "rising",
		Decimation:         c.Decimation,
		SampleRate:         c.SampleRate.String(),
		PreTriggerSamples:  c.PreTriggerSamples,
		PostTriggerSamples: c.PostTriggerSamples,
		RecordCount:        c.RecordCount,
		AveragingFactor:    c.AveragingFactor,
		RecordsPerBuffer:   c.RecordsPerBuffer,
		BufferCount:        c.BufferCount,
		MemoryBudgetMiB:    c.MemoryBudget >> 20,
		MaxBuffers:         c.MaxBuffers,
	}
	if c.ClockEdge == EdgeFalling {
		s.ClockEdge = "falling"
	}
	for _, ch := range c.Channels {
		cs := ChannelSettings{
			Enabled:        ch.Enabled,
			Coupling:       FormatCoupling(ch.Coupling),
			Impedance:      "1M",
			BandwidthLimit: ch.BandwidthLimit,
			Offset:         ch.Offset,
		}
		if ch.Enabled {
			cs.Range = ch.Range.String()
		}
		if ch.Impedance == Impedance50Ohm {
			cs.Impedance = "50"
		}
		s.Channels = append(s.Channels, cs)
	}
	t := c.Trigger
	s.Trigger = TriggerSettings{
		Source:           FormatTriggerSource(t.Source),
		Slope:            "positive",
		Level:            t.Level,
		ExternalCoupling: FormatCoupling(t.ExternalCoupling),
		ExternalRange:    formatExternalRange(t.ExternalRange),
		DelaySamples:     t.DelaySamples,
		Timeout:          t.Timeout.Seconds(),
	}
	if t.Slope == SlopeNegative {
		s.Trigger.Slope = "negative"
	}
	return s
}

func formatClockSource(c ClockSource) string {
	switch c {
	case ClockFastExternal:
		return "fast-external"
	case ClockMediumExternal:
		return "medium-external"
	case ClockSlowExternal:
		return "slow-external"
	case ClockExternal10MHzRef:
		return "10mhz-ref"
	default:
		return "internal"
	}
}

func formatExternalRange(r ExternalTriggerRange) string {
	switch r {
	case ExtTrigger1V:
		return "1V"
	case ExtTriggerTTL:
		return "TTL"
	case ExtTrigger2V5:
		return "2.5V"
	default:
		return "5V"
	}
}
