package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/theckman/yacspin"

	yml "gopkg.in/yaml.v2"

	"github.com/nasa-jpl/golaborate-ats/alazar"
	"github.com/nasa-jpl/golaborate-ats/oscilloscope"
	"github.com/nasa-jpl/golaborate-ats/util"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "atsdaq.yml"
	k              = koanf.New(".")

	logOutput io.Writer = os.Stderr
)

func setupconfig() {
	k.Load(structs.Provider(DefaultConfig(), "yaml"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func loadconfig() Config {
	c := Config{}
	err := k.UnmarshalWithConf("", &c, koanf.UnmarshalConf{Tag: "yaml"})
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func root() {
	str := `atsdaq streams averaged waveforms from AlazarTech digitizers and exposes
an HTTP interface to them.

Usage:
	atsdaq <command>

Commands:
	run
	acquire <file.csv|file.fits>
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `atsdaq is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

mkconf writes the defaults to atsdaq.yml.  The defaults use a simulated ATS9440
(Mock: true); set Mock: false and Board to the system and board IDs shown by
AlazarDSO to use real hardware.  Real hardware requires a build with the atsapi
tag and the AlazarTech SDK installed.

Settings is the capture:
	SampleRate        e.g. "20 MS/s", see GET /ats/sample-rates
	Channels          one entry per input, Range e.g. "10 V", "400 mV"
	Trigger           Source in {A, B, external, disable}, Level 0-255, 128 is zero
	PreTriggerSamples samples before the trigger in each record
	PostTriggerSamples
	RecordCount       records per trace, > 1 for a segmented acquisition
	AveragingFactor   acquisitions averaged into each trace
	MemoryBudgetMiB   pinned memory the DMA buffers may use

run serves the digitizer at /<Endpoint>.  POST /configure takes Settings as JSON,
POST /acquire blocks until the traces are ready, GET /traces returns them.
A GET of /endpoints lists every route.

acquire takes one set of traces with the configured settings and writes them
to a CSV or FITS file, chosen by extension.`
	fmt.Println(str)
}

func mkconf() {
	c := loadconfig()
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := loadconfig()
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("atsdaq version %v\n", Version)
}

func run() {
	c := loadconfig()
	logger := newLogger(c.LogLevel)
	reg := newRegistry()
	d, err := openDigitizer(c, logger, reg)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()
	mux, err := BuildMux(c, d, reg)
	if err != nil {
		log.Fatal(err)
	}
	logger.Info("now listening for requests", "addr", c.Addr, "board", d.Info().Name)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func acquire(path string) {
	c := loadconfig()
	logger := newLogger(c.LogLevel)
	d, err := openDigitizer(c, logger, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()
	cfg, err := c.Settings.CaptureConfig()
	if err != nil {
		log.Fatal(err)
	}

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		Writer:            os.Stderr,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " acquiring",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ro := alazar.DefaultReadOptions()
	ro.FirstTimeout = util.SecsToDuration(c.FirstTimeout)
	ro.Progress = alazar.ThrottleProgress(100*time.Millisecond, func(f float64) {
		spinner.Message(fmt.Sprintf("%.0f%%", 100*f))
	})

	spinner.Start()
	var traces []oscilloscope.Trace
	if c.Retries > 0 {
		b := backoff.WithMaxRetries(backoff.NewConstantBackOff(0), uint64(c.Retries))
		traces, err = d.ReadTracesRetry(ctx, cfg, ro, b)
	} else {
		traces, err = d.ReadTraces(ctx, cfg, ro)
	}
	if err != nil {
		spinner.StopFailMessage(err.Error())
		spinner.StopFail()
		os.Exit(1)
	}
	spinner.StopMessage(fmt.Sprintf("%d traces", len(traces)))
	spinner.Stop()

	err = writeTraces(path, d, cfg)
	if err != nil {
		log.Fatal(err)
	}
}

// writeTraces saves the last traces of d as CSV or FITS, by extension
func writeTraces(path string, d *alazar.Digitizer, cfg alazar.CaptureConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	wav := d.Waveform()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fits", ".fit", ".fts":
		err = alazar.WriteFITS(f, wav, alazar.MetadataCards(d.Info(), cfg))
	default:
		err = wav.EncodeCSV(f)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

func main() {
	var cmd string
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd = args[1]
	cmd = strings.ToLower(cmd)
	switch cmd {
	case "help":
		help()
		return
	case "mkconf":
		mkconf()
		return
	case "conf":
		printconf()
		return
	case "run":
		run()
		return
	case "acquire":
		if len(args) < 3 {
			log.Fatal("acquire requires an output file, e.g. atsdaq acquire traces.csv")
		}
		acquire(args[2])
		return
	case "version":
		pversion()
		return
	default:
		log.Fatal("unknown command")
	}
}
