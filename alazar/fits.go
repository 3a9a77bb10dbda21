package alazar

import (
	"errors"
	"io"
	"strconv"

	"github.com/astrogo/fitsio"

	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
	"github.com/nasa-jpl/golaborate-ats/util"
)

// ErrEmptyWaveform is generated when a waveform with no samples is written
var ErrEmptyWaveform = errors.New("waveform holds no samples")

// MetadataCards describes a capture for a FITS header
func MetadataCards(info Info, cfg CaptureConfig) []fitsio.Card {
	hz, _ := cfg.SampleRate.Hz()
	cards := []fitsio.Card{
		{Name: "BOARD", Value: info.Name, Comment: "digitizer model"},
		{Name: "BITS", Value: info.BitsPerSample, Comment: "ADC resolution"},
		{Name: "SRATE", Value: hz, Comment: "sample rate, Hz"},
		{Name: "PRETRIG", Value: cfg.PreTriggerSamples, Comment: "pre-trigger samples"},
		{Name: "POSTTRIG", Value: cfg.PostTriggerSamples, Comment: "post-trigger samples"},
		{Name: "RECORDS", Value: cfg.RecordCount, Comment: "records per trace"},
		{Name: "NAVG", Value: cfg.AveragingFactor, Comment: "records averaged"},
		{Name: "TRIGSRC", Value: FormatTriggerSource(cfg.Trigger.Source), Comment: "trigger source"},
		{Name: "TRIGLVL", Value: int(cfg.Trigger.Level), Comment: "trigger level code"},
		{Name: "CHANNELS", Value: util.IntSliceToCSV(cfg.Mask().Channels()), Comment: "enabled inputs"},
	}
	for i, ch := range cfg.Channels {
		if !ch.Enabled {
			continue
		}
		cards = append(cards,
			fitsio.Card{Name: ChannelLabel(i+1) + "RNG", Value: ch.Range.String(), Comment: "input range"},
			fitsio.Card{Name: ChannelLabel(i+1) + "CPL", Value: FormatCoupling(ch.Coupling), Comment: "coupling"})
	}
	return cards
}

// WriteFITS streams the non-empty traces of wav to w as a 2D float64 image,
// one row per trace in label order.  The time axis is in the XZERO and
// XINCR cards, the label of row i in TRACEi.
func WriteFITS(w io.Writer, wav oscilloscope.Waveform, metadata []fitsio.Card) error {
	labels := wav.Labels()
	if len(labels) == 0 {
		return ErrEmptyWaveform
	}
	first := wav.Traces[labels[0]]
	n := first.Len()
	data := make([]float64, 0, n*len(labels))
	for _, l := range labels {
		tr := wav.Traces[l]
		if tr.Len() != n {
			return oscilloscope.ErrLengthMismatch
		}
		data = append(data, tr.Y...)
	}

	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(-64, []int{n, len(labels)})
	defer im.Close()
	cards := []fitsio.Card{
		{Name: "XZERO", Value: first.XZero, Comment: "time of the first sample, s"},
		{Name: "XINCR", Value: first.XIncrement, Comment: "sample spacing, s"},
		{Name: "BUNIT", Value: "V"},
	}
	for i, l := range labels {
		cards = append(cards, fitsio.Card{Name: "TRACE" + strconv.Itoa(i+1), Value: l})
	}
	cards = append(cards, metadata...)
	err = im.Header().Append(cards...)
	if err != nil {
		return err
	}
	err = im.Write(data)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
