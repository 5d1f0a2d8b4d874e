package pipeplot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pipeplot/dashboard"
	"github.com/jpalmerr/pipeplot/internal/extract"
	"github.com/jpalmerr/pipeplot/internal/metrics"
	"github.com/jpalmerr/pipeplot/internal/palette"
	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/server"
	"github.com/jpalmerr/pipeplot/internal/sink"
	"github.com/jpalmerr/pipeplot/internal/store"
)

const (
	defaultWindow    = series.DefaultWindow
	defaultPort      = 8080
	defaultChunkSize = extract.DefaultChunkSize
	defaultMaxBuffer = extract.DefaultMaxBuffer

	// inputCloseTimeout bounds how long Start waits for the extractor to
	// flush its sinks after cancellation.
	inputCloseTimeout = 5 * time.Second

	// eventBuffer decouples reads from store updates.
	eventBuffer = 16
)

// Plotter reads a byte stream, extracts numeric readings per channel and
// serves them to a live dashboard.
//
// Plotter is created using [New] with functional options and started with
// [Plotter.Start]. The typical lifecycle is:
//
//	p, err := pipeplot.New(pipeplot.WithMatchers(set))
//	if err != nil {
//	    slog.Error("failed to create plotter", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	p.Start(ctx) // blocks until context cancelled
type Plotter struct {
	input            io.Reader
	matchers         MatcherSet
	window           time.Duration
	port             int
	output           string
	archive          string
	chunkSize        int
	maxBuffer        int
	title            string
	exitOnClose      bool
	headless         bool
	logger           *slog.Logger
	readingCallbacks []func(Reading)
}

// New creates a new [Plotter] instance with the given options.
//
// Defaults:
//   - Input: os.Stdin
//   - Matchers: [DefaultMatcherSet]
//   - Window: 5 seconds
//   - Port: 8080
//   - Chunk size: 128 bytes
//   - Max buffer: 1 MiB
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Plotter, error) {
	cfg := &ppConfig{
		input:     os.Stdin,
		matchers:  DefaultMatcherSet(),
		window:    defaultWindow,
		port:      defaultPort,
		chunkSize: defaultChunkSize,
		maxBuffer: defaultMaxBuffer,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Plotter{
		input:            cfg.input,
		matchers:         cfg.matchers,
		window:           cfg.window,
		port:             cfg.port,
		output:           cfg.output,
		archive:          cfg.archive,
		chunkSize:        cfg.chunkSize,
		maxBuffer:        cfg.maxBuffer,
		title:            cfg.title,
		exitOnClose:      cfg.exitOnClose || cfg.headless,
		headless:         cfg.headless,
		logger:           logger,
		readingCallbacks: cfg.readingCallbacks,
	}, nil
}

// Start extracts readings from the input and serves the dashboard.
//
// Start is a blocking call. During execution:
//
//   - The output file and archive, if configured, are opened
//   - The input is read chunk by chunk and every reading is stored,
//     persisted and passed to reading callbacks
//   - The dashboard is available at http://localhost:<port>
//
// When the input ends the dashboard keeps serving the final window until
// ctx is cancelled, unless [WithExitOnClose] or [WithHeadless] is set. On cancellation the
// input is closed if it implements io.Closer, and Start waits up to five
// seconds for the sinks to be flushed.
//
// Returns nil on graceful shutdown. Returns an error if a sink cannot be
// opened or written, or if the HTTP server fails to start.
func (p *Plotter) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	streamID := uuid.NewString()
	logger := p.logger.With("stream", streamID)

	sinks, err := p.openSinks(streamID)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		if sinks != nil {
			_ = sinks.Close()
		}
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	origin := time.Now().Truncate(time.Millisecond)
	st := store.NewMemoryStore(p.matchers.Len(), p.window, origin)

	exOpts := []extract.Option{
		extract.WithChunkSize(p.chunkSize),
		extract.WithMaxBuffer(p.maxBuffer),
		extract.WithLogger(logger),
		extract.WithMetrics(m),
	}
	if sinks != nil {
		exOpts = append(exOpts, extract.WithSink(sinks))
	}
	ex := extract.New(p.input, p.matchers.regexps(), exOpts...)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if !p.headless {
		srv := server.NewServer(st, p.channelInfo(), p.port, dashboard.Assets, p.title, reg, logger)
		if err := srv.Start(runCtx); err != nil {
			_ = ex.Close()
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", p.port))
	}

	logger.Info("pipeplot starting",
		"channels", p.matchers.Len(),
		"window", p.window.String(),
		"chunk_size", p.chunkSize,
	)

	events := make(chan extract.Event, eventBuffer)
	runDone := make(chan error, 1)
	go func() {
		runDone <- ex.Run(runCtx, events)
	}()

	consumeErr := p.consume(ctx, events, st, m, logger)

	cancel()
	runErr := p.awaitExtractor(runDone, logger)

	if consumeErr != nil {
		return consumeErr
	}
	if runErr != nil {
		return fmt.Errorf("extraction failed: %w", runErr)
	}
	logger.Info("pipeplot stopped")
	return nil
}

// openSinks opens the configured output and archive. Nothing is left open
// on failure.
func (p *Plotter) openSinks(streamID string) (sink.Sink, error) {
	var sinks []sink.Sink

	if p.output != "" {
		csv, err := sink.Open(p.output)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, csv)
	}

	if p.archive != "" {
		a, err := sink.OpenArchive(p.archive, streamID, p.matchers.Patterns())
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, err
		}
		sinks = append(sinks, a)
	}

	return sink.Multi(sinks...), nil
}

// consume applies events until ctx is cancelled, the input ends with
// exit-on-close set, or a sink fails.
func (p *Plotter) consume(ctx context.Context, events <-chan extract.Event, st store.Store, m *metrics.Metrics, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				if p.exitOnClose {
					return nil
				}
				// extractor finished; keep serving the final window
				events = nil
				continue
			}
			if err := p.handleEvent(ev, st, m, logger); err != nil {
				return err
			}
			if ev.Closed && p.exitOnClose {
				return nil
			}
		}
	}
}

func (p *Plotter) handleEvent(ev extract.Event, st store.Store, m *metrics.Metrics, logger *slog.Logger) error {
	if len(ev.Readings) > 0 {
		// store update first (callbacks fire after data is stored)
		if err := st.Push(ev.Readings); err != nil {
			logger.Error("failed to store readings", "error", err)
		}

		touched := make(map[int]struct{}, p.matchers.Len())
		for _, r := range ev.Readings {
			touched[r.Channel] = struct{}{}
		}
		for ch := range touched {
			m.SetRetained(ch, st.Retained(ch))
		}

		if len(p.readingCallbacks) > 0 {
			names := p.matchers.Names()
			for _, r := range ev.Readings {
				pub := toPublicReading(r, names)
				for _, cb := range p.readingCallbacks {
					invokeCallbackSafe(cb, pub, logger)
				}
			}
		}

		logger.Debug("batch stored", "readings", len(ev.Readings), "at", ev.At)
	}

	if ev.Closed {
		st.MarkClosed()
		if ev.Err != nil {
			return fmt.Errorf("extraction failed: %w", ev.Err)
		}
		if !p.exitOnClose && !p.headless {
			logger.Info("input ended, serving final window until interrupted")
		}
	}
	return nil
}

// awaitExtractor closes the input when possible and waits for the
// extractor to flush its sinks.
func (p *Plotter) awaitExtractor(runDone <-chan error, logger *slog.Logger) error {
	select {
	case err := <-runDone:
		return err
	default:
	}

	if c, ok := p.input.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Debug("failed to close input", "error", err)
		}
	}

	select {
	case err := <-runDone:
		return err
	case <-time.After(inputCloseTimeout):
		logger.Warn("extractor did not stop; output may be incomplete", "timeout", inputCloseTimeout)
		return nil
	}
}

func (p *Plotter) channelInfo() []server.Channel {
	colors := palette.HexForChannels(p.matchers.Len())
	out := make([]server.Channel, p.matchers.Len())
	for i, m := range p.matchers.matchers {
		out[i] = server.Channel{
			Index:   i,
			Name:    m.Name(),
			Pattern: m.Pattern(),
			Color:   colors[i],
		}
	}
	return out
}

// Matchers returns the configured channel patterns.
func (p *Plotter) Matchers() MatcherSet {
	return p.matchers
}

// Port returns the configured HTTP port for the dashboard server.
func (p *Plotter) Port() int {
	return p.port
}

// Window returns the initial window length.
func (p *Plotter) Window() time.Duration {
	return p.window
}

// ChunkSize returns the number of bytes requested per read.
func (p *Plotter) ChunkSize() int {
	return p.chunkSize
}

// MaxBuffer returns the carry buffer cap in bytes; zero means unbounded.
func (p *Plotter) MaxBuffer() int {
	return p.maxBuffer
}

// Output returns the CSV output path, or "" when none is configured.
func (p *Plotter) Output() string {
	return p.output
}

// Archive returns the archive directory, or "" when none is configured.
func (p *Plotter) Archive() string {
	return p.archive
}

// invokeCallbackSafe calls a reading callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(Reading), r Reading, logger *slog.Logger) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("reading callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", rec,
				"channel", r.Channel,
			)
		}
	}()
	cb(r)
}
