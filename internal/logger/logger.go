// Package logger configures the process-wide zerolog logger: a rotating log
// file, console output on stderr, and an optional Axiom forwarder for long
// corpus runs. Console output goes to stderr because stdout is reserved for
// command output (the inspect commands print JSON there).
package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	Axiom AxiomOptions
}

// AxiomOptions configures the optional batching forwarder.
type AxiomOptions struct {
	Enabled bool
	APIKey  string
	OrgID   string
	Dataset string
	Flush   time.Duration
}

var (
	global    zerolog.Logger
	forwarder *axiomForwarder
)

// Init builds the sink set from opts and installs the global logger. A
// failing Axiom setup disables forwarding with a notice instead of failing
// the run; the file and console sinks always work.
func Init(opts Options) error {
	sinks := make([]io.Writer, 0, 3)

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		sinks = append(sinks, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	if opts.Pretty {
		sinks = append(sinks, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		sinks = append(sinks, os.Stderr)
	}

	if opts.Axiom.Enabled {
		fw, err := newAxiomForwarder(opts.Axiom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom forwarding disabled: %v\n", err)
		} else {
			forwarder = fw
			sinks = append(sinks, fw)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	global = zerolog.New(io.MultiWriter(sinks...)).Level(parseLevel(opts.Level)).With().Timestamp().Logger()
	log.Logger = global
	return nil
}

// Close flushes and stops the Axiom forwarder, if one is running.
func Close() {
	if forwarder != nil {
		forwarder.Close()
		forwarder = nil
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

func parseLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

const (
	eventBuffer = 1000
	batchSize   = 200
)

// axiomForwarder is an io.Writer sink that batches zerolog lines into Axiom
// ingest requests on a background goroutine. Writes never block the logger: a
// full buffer drops the event.
type axiomForwarder struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	done    chan struct{}
	wg      sync.WaitGroup
}

func newAxiomForwarder(opts AxiomOptions) (*axiomForwarder, error) {
	if opts.APIKey == "" {
		return nil, errors.New("no API key configured")
	}
	copts := []axiom.Option{axiom.SetToken(opts.APIKey)}
	if opts.OrgID != "" {
		copts = append(copts, axiom.SetOrganizationID(opts.OrgID))
	}
	client, err := axiom.NewClient(copts...)
	if err != nil {
		return nil, err
	}

	dataset := opts.Dataset
	if dataset == "" {
		dataset = "dev_bookpipe"
	}
	f := &axiomForwarder{
		client:  client,
		dataset: dataset,
		events:  make(chan axiom.Event, eventBuffer),
		done:    make(chan struct{}),
	}

	flush := opts.Flush
	if flush <= 0 {
		flush = 10 * time.Second
	}
	f.wg.Add(1)
	go f.run(flush)
	return f, nil
}

func (f *axiomForwarder) Write(p []byte) (int, error) {
	ev, ok := eventFromLine(p)
	if !ok {
		return len(p), nil
	}
	select {
	case f.events <- ev:
	default:
	}
	return len(p), nil
}

// eventFromLine shapes one zerolog JSON line into an Axiom event. Debug lines
// stay local (false); lines that are not JSON are wrapped as plain messages.
func eventFromLine(p []byte) (axiom.Event, bool) {
	var ev axiom.Event
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = axiom.Event{"message": string(p), "level": "info"}
	}
	if lvl, ok := ev["level"].(string); ok && lvl == zerolog.LevelDebugValue {
		return nil, false
	}
	ev["service"] = "bookpipe"
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return ev, true
}

func (f *axiomForwarder) run(flushEvery time.Duration) {
	defer f.wg.Done()
	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = f.client.IngestEvents(ctx, f.dataset, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-f.done:
			flush()
			return
		case <-ticker.C:
			flush()
		case ev := <-f.events:
			batch = append(batch, ev)
			if len(batch) >= batchSize {
				flush()
			}
		}
	}
}

func (f *axiomForwarder) Close() {
	close(f.done)
	f.wg.Wait()
}
