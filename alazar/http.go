package alazar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi"

	"github.com/nasa-jpl/golaborate-ats/generichttp"
	"github.com/nasa-jpl/golaborate-ats/generichttp/daq"
	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
	"github.com/nasa-jpl/golaborate-ats/util"
)

// HTTPWrapper serves a Digitizer over HTTP.  Acquisitions use the settings
// last posted to /configure.
type HTTPWrapper struct {
	d *Digitizer

	mu       sync.Mutex
	settings Settings
	cfg      CaptureConfig
	timeout  time.Duration

	// ProgressInterval throttles progress logging during acquisitions
	ProgressInterval time.Duration

	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns a wrapper around d which will acquire with s until
// new settings are posted.  s must parse.
func NewHTTPWrapper(d *Digitizer, s Settings) (*HTTPWrapper, error) {
	cfg, err := s.CaptureConfig()
	if err != nil {
		return nil, err
	}
	w := &HTTPWrapper{d: d, settings: s, cfg: cfg, timeout: d.Timeout, ProgressInterval: time.Second}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/configure"}:       w.GetSettings,
		{Method: http.MethodPost, Path: "/configure"}:      w.SetSettings,
		{Method: http.MethodGet, Path: "/state"}:           generichttp.GetString(func() (string, error) { return d.State().String(), nil }),
		{Method: http.MethodGet, Path: "/geometry"}:        w.Geometry,
		{Method: http.MethodGet, Path: "/info"}:            w.Info,
		{Method: http.MethodGet, Path: "/traces.fits"}:     w.TracesFITS,
		{Method: http.MethodGet, Path: "/channel/{n}"}:     w.ChannelTrace,
		{Method: http.MethodGet, Path: "/sample-rates"}:    w.SampleRates,
		{Method: http.MethodGet, Path: "/channel/{n}/csv"}: w.ChannelCSV,
	}
	daq.HTTPADC(w, rt)
	daq.HTTPTimeout(w, rt)
	w.RouteTable = rt
	return w, nil
}

// RT satisfies generichttp.HTTPer
func (h *HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

func (h *HTTPWrapper) config() (CaptureConfig, time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg, h.timeout
}

// Acquire configures the board with the current settings and reads one
// set of traces
func (h *HTTPWrapper) Acquire(ctx context.Context) error {
	cfg, timeout := h.config()
	ro := DefaultReadOptions()
	ro.Timeout = timeout
	ro.Progress = ThrottleProgress(h.ProgressInterval, func(f float64) {
		h.d.log.Debug("acquisition progress", "fraction", f)
	})
	_, err := h.d.ReadTraces(ctx, cfg, ro)
	if err != nil {
		return daq.StatusError{Code: statusOf(err), Err: err}
	}
	return nil
}

// Abort stops the board and releases its buffers
func (h *HTTPWrapper) Abort() {
	h.d.Abort()
}

// Busy is true while the board is acquiring
func (h *HTTPWrapper) Busy() bool {
	return h.d.Busy()
}

// Progress is the completed fraction of the current or last acquisition
func (h *HTTPWrapper) Progress() float64 {
	return h.d.Progress()
}

// Waveform returns the traces of the last acquisition
func (h *HTTPWrapper) Waveform() oscilloscope.Waveform {
	return h.d.Waveform()
}

// GetTimeout returns the buffer wait timeout in seconds
func (h *HTTPWrapper) GetTimeout() (float64, error) {
	_, timeout := h.config()
	return timeout.Seconds(), nil
}

// SetTimeout sets the buffer wait timeout in seconds
func (h *HTTPWrapper) SetTimeout(secs float64) error {
	if secs <= 0 {
		return ConfigurationError{Field: "Timeout", Reason: "timeout must be positive"}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.timeout = util.SecsToDuration(secs)
	return nil
}

// GetSettings sends the current settings as JSON
func (h *HTTPWrapper) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	s := h.settings
	h.mu.Unlock()
	generichttp.WriteJSON(w, s)
}

// SetSettings parses settings from the request body, programs the board with
// them and keeps them for later acquisitions
func (h *HTTPWrapper) SetSettings(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	var s Settings
	err := json.NewDecoder(r.Body).Decode(&s)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cfg, err := s.CaptureConfig()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err = h.d.ReadTraces(r.Context(), cfg, ReadOptions{Configure: true})
	if err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}
	h.mu.Lock()
	h.settings = s
	h.cfg = cfg
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// Geometry sends the buffer geometry of the current configuration
func (h *HTTPWrapper) Geometry(w http.ResponseWriter, r *http.Request) {
	g, ok := h.d.Engine().Geometry()
	if !ok {
		http.Error(w, ErrNotConfigured.Error(), http.StatusNotFound)
		return
	}
	generichttp.WriteJSON(w, g)
}

// Info sends the identity of the board
func (h *HTTPWrapper) Info(w http.ResponseWriter, r *http.Request) {
	generichttp.WriteJSON(w, h.d.Info())
}

// SampleRates sends the names of the sample rates the board understands
func (h *HTTPWrapper) SampleRates(w http.ResponseWriter, r *http.Request) {
	generichttp.WriteJSON(w, SampleRateNames())
}

// TracesFITS sends the last traces as a FITS image
func (h *HTTPWrapper) TracesFITS(w http.ResponseWriter, r *http.Request) {
	wav := h.d.Waveform()
	if len(wav.Labels()) == 0 {
		http.Error(w, ErrEmptyWaveform.Error(), http.StatusNotFound)
		return
	}
	h.d.lastMu.RLock()
	cfg := h.d.cfg
	h.d.lastMu.RUnlock()
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", `attachment; filename="traces.fits"`)
	err := WriteFITS(w, wav, MetadataCards(h.d.Info(), cfg))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *HTTPWrapper) channel(w http.ResponseWriter, r *http.Request) (Channel, oscilloscope.Trace, bool) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return Channel{}, oscilloscope.Trace{}, false
	}
	ch := h.d.Channel(n)
	tr, err := ch.Trace()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return ch, oscilloscope.Trace{}, false
	}
	return ch, tr, true
}

// ChannelTrace sends the last trace of the channel in the URL as JSON
func (h *HTTPWrapper) ChannelTrace(w http.ResponseWriter, r *http.Request) {
	_, tr, ok := h.channel(w, r)
	if !ok {
		return
	}
	generichttp.WriteJSON(w, tr)
}

// ChannelCSV sends the last trace of the channel in the URL as CSV
func (h *HTTPWrapper) ChannelCSV(w http.ResponseWriter, r *http.Request) {
	ch, tr, ok := h.channel(w, r)
	if !ok {
		return
	}
	wav := oscilloscope.Waveform{Traces: map[string]oscilloscope.Trace{ChannelLabel(ch.Number()): tr}}
	w.Header().Set("Content-Type", "text/csv")
	err := wav.EncodeCSV(w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// statusOf maps an error to the HTTP status that best describes it
func statusOf(err error) int {
	var (
		cerr ConfigurationError
		serr StateError
	)
	switch {
	case errors.As(err, &cerr):
		return http.StatusBadRequest
	case errors.As(err, &serr):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
