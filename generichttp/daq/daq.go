// Package daq provides a generic HTTP interface to triggered ADC devices
//
// This is not the last word in speed, due to HTTP having reasonable latency in
// most client languages, but it is the last word in ease of use.
package daq

import (
	"context"
	"errors"
	"net/http"

	"github.com/nasa-jpl/golaborate-ats/generichttp"
	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
)

// ADC is a model for a triggered, multi channel waveform digitizer
type ADC interface {
	// Acquire runs one acquisition and blocks until it is done or ctx is.
	// A StatusError sets the HTTP status of a failure.
	Acquire(ctx context.Context) error

	// Abort stops any acquisition and releases its resources
	Abort()

	// Busy is true while the board is acquiring
	Busy() bool

	// Progress is the completed fraction of the current or last acquisition
	Progress() float64

	// Waveform returns the traces of the last acquisition
	Waveform() oscilloscope.Waveform
}

// StatusError attaches the HTTP status an ADC error is reported with
type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	return e.Err.Error()
}

func (e StatusError) Unwrap() error {
	return e.Err
}

// StatusOf returns the code of the StatusError in err's chain, or 500
func StatusOf(err error) int {
	var se StatusError
	if errors.As(err, &se) && se.Code != 0 {
		return se.Code
	}
	return http.StatusInternalServerError
}

// HTTPADC adds routes for basic ADC operation to a table
func HTTPADC(iface ADC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/acquire"}] = Acquire(iface)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/abort"}] = Abort(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/busy"}] = generichttp.GetBool(func() (bool, error) { return iface.Busy(), nil })
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/progress"}] = generichttp.GetFloat(func() (float64, error) { return iface.Progress(), nil })
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/traces"}] = Traces(iface)
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/traces.csv"}] = TracesCSV(iface)
}

// Acquire returns an HTTP handlerfunc that runs one acquisition.  The
// request's context cancels it.
func Acquire(d ADC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := d.Acquire(r.Context())
		if err != nil {
			http.Error(w, err.Error(), StatusOf(err))
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// Abort returns an HTTP handlerfunc that aborts the acquisition
func Abort(d ADC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d.Abort()
		w.WriteHeader(http.StatusOK)
	}
}

// Traces returns an HTTP handlerfunc that sends the last waveform as JSON
func Traces(d ADC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.WriteJSON(w, d.Waveform())
	}
}

// TracesCSV returns an HTTP handlerfunc that sends the last waveform as CSV,
// a time column followed by one column per channel
func TracesCSV(d ADC) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wav := d.Waveform()
		if len(wav.Labels()) == 0 {
			http.Error(w, "no traces have been acquired", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="traces.csv"`)
		err := wav.EncodeCSV(w)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// TimeoutADC has a configurable buffer wait timeout
type TimeoutADC interface {
	// SetTimeout sets the timeout in seconds
	SetTimeout(float64) error

	// GetTimeout returns the timeout in seconds
	GetTimeout() (float64, error)
}

// HTTPTimeout adds routes for the timeout to a table
func HTTPTimeout(iface TimeoutADC, table generichttp.RouteTable) {
	table[generichttp.MethodPath{Method: http.MethodGet, Path: "/timeout"}] = generichttp.GetFloat(iface.GetTimeout)
	table[generichttp.MethodPath{Method: http.MethodPost, Path: "/timeout"}] = generichttp.SetFloat(iface.SetTimeout)
}
