package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nasa-jpl/golaborate-ats/alazar"
	"github.com/nasa-jpl/golaborate-ats/generichttp"
	"github.com/nasa-jpl/golaborate-ats/server/middleware/locker"
	"github.com/nasa-jpl/golaborate-ats/util"
)

// Board holds the address of one digitizer in an ATSApi board system
type Board struct {
	SystemID int `yaml:"SystemID"`
	BoardID  int `yaml:"BoardID"`
}

// Config is the configuration of the server and the acquisitions it runs
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	// Endpoint is the URL stem the digitizer is served on, e.g. "ats"
	Endpoint string `yaml:"Endpoint"`

	// Mock replaces the board with a simulated ATS9440
	Mock bool `yaml:"Mock"`

	// Metrics is the path prometheus metrics are served on, empty for none
	Metrics string `yaml:"Metrics"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `yaml:"LogLevel"`

	Board Board `yaml:"Board"`

	// Timeout is the buffer wait timeout in seconds
	Timeout float64 `yaml:"Timeout"`

	// FirstTimeout is the wait for the first buffer in seconds, 0 is Timeout
	FirstTimeout float64 `yaml:"FirstTimeout"`

	// Retries is how many times a read is re-armed when no trigger arrives
	Retries int `yaml:"Retries"`

	Settings alazar.Settings `yaml:"Settings"`
}

// DefaultConfig serves a mock on :8000 with the default settings
func DefaultConfig() Config {
	return Config{
		Addr:     ":8000",
		Endpoint: "ats",
		Mock:     true,
		Metrics:  "/metrics",
		LogLevel: "info",
		Board:    Board{SystemID: 1, BoardID: 1},
		Timeout:  alazar.DefaultTimeout.Seconds(),
		Settings: alazar.DefaultSettings(),
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(logOutput, &slog.HandlerOptions{Level: lvl}))
}

// openHardware returns the board named in c, or a mock
func openHardware(c Config) (alazar.Hardware, error) {
	if c.Mock {
		m := alazar.NewMockBoard()
		m.FillDelay = time.Millisecond
		return m, nil
	}
	return openBoard(c.Board)
}

// openDigitizer opens the board and wires its logging and metrics
func openDigitizer(c Config, log *slog.Logger, reg prometheus.Registerer) (*alazar.Digitizer, error) {
	hw, err := openHardware(c)
	if err != nil {
		return nil, err
	}
	opts := []alazar.Option{alazar.WithLogger(log)}
	if reg != nil {
		m, err := alazar.NewMetrics(reg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, alazar.WithMetrics(m))
	}
	d, err := alazar.Open(hw, opts...)
	if err != nil {
		return nil, err
	}
	if c.Timeout > 0 {
		d.Timeout = util.SecsToDuration(c.Timeout)
	}
	return d, nil
}

// BuildMux serves the digitizer under c.Endpoint with a lock, the metrics
// under c.Metrics, and a list of every route at /endpoints
func BuildMux(c Config, d *alazar.Digitizer, reg *prometheus.Registry) (chi.Router, error) {
	root := chi.NewRouter()
	root.Use(middleware.Logger)

	httper, err := alazar.NewHTTPWrapper(d, c.Settings)
	if err != nil {
		return nil, err
	}
	lock := locker.New()
	locker.Inject(httper, lock)

	stem := generichttp.SubMuxSanitize(c.Endpoint)
	supergraph := map[string][]string{stem: httper.RT().Endpoints()}

	r := chi.NewRouter()
	r.Use(lock.Check)
	httper.RT().Bind(r)
	root.Mount(stem, r)

	if c.Metrics != "" && reg != nil {
		root.Handle(c.Metrics, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		supergraph[c.Metrics] = []string{http.MethodGet + " " + c.Metrics}
	}
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, nil
}

// newRegistry returns a registry with the process and Go collectors
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}
