package pipeplot

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"time"
)

// ppConfig holds mutable state during Plotter construction.
type ppConfig struct {
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

// Option is a function that configures a [Plotter] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*ppConfig) error

// WithInput sets the byte stream to read. Defaults to os.Stdin.
//
// If r also implements io.Closer it is closed when the context passed to
// [Plotter.Start] is cancelled, so that a blocked read returns.
//
// Returns an error if r is nil.
func WithInput(r io.Reader) Option {
	return func(cfg *ppConfig) error {
		if r == nil {
			return errors.New("input cannot be nil")
		}
		cfg.input = r
		return nil
	}
}

// WithMatchers sets the channel patterns. Defaults to [DefaultMatcherSet].
//
// Example:
//
//	set, err := pipeplot.NewMatcherSet(`T=(\d+)`, `H=(\d+)`)
//	if err != nil {
//	    return err
//	}
//	p, err := pipeplot.New(pipeplot.WithMatchers(set.WithNames("temp", "humidity")))
//
// Returns an error if the set has no channels.
func WithMatchers(set MatcherSet) Option {
	return func(cfg *ppConfig) error {
		if set.Len() == 0 {
			return errors.New("matcher set cannot be empty")
		}
		cfg.matchers = set
		return nil
	}
}

// WithWindow sets how much history each channel keeps. Defaults to 5 seconds.
//
// The window can be changed at runtime from the dashboard.
//
// Returns an error if d is not positive or does not fit a 32-bit
// millisecond count.
func WithWindow(d time.Duration) Option {
	return func(cfg *ppConfig) error {
		if d <= 0 || d.Milliseconds() >= math.MaxInt32 {
			return errors.New("window must be positive and below 2147483647ms")
		}
		cfg.window = d
		return nil
	}
}

// WithPort sets the HTTP port for the dashboard server.
//
// The dashboard UI and API will be available at http://localhost:<port>.
// Defaults to 8080 if not specified.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *ppConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithOutput writes every reading to a CSV file at path. A ".gz", ".zst"
// or ".lz4" extension compresses the file.
//
// The file is created when [Plotter.Start] runs; failing to create it
// aborts Start.
//
// Returns an error if path is empty.
func WithOutput(path string) Option {
	return func(cfg *ppConfig) error {
		if path == "" {
			return errors.New("output path cannot be empty")
		}
		cfg.output = path
		return nil
	}
}

// WithArchive records every reading in a BadgerDB directory, keyed by run
// and channel pattern, so several runs can share one archive.
//
// Returns an error if dir is empty.
func WithArchive(dir string) Option {
	return func(cfg *ppConfig) error {
		if dir == "" {
			return errors.New("archive directory cannot be empty")
		}
		cfg.archive = dir
		return nil
	}
}

// WithChunkSize sets how many bytes are requested per read. Defaults to 128.
//
// Returns an error if n is not positive.
func WithChunkSize(n int) Option {
	return func(cfg *ppConfig) error {
		if n <= 0 {
			return errors.New("chunk size must be positive")
		}
		cfg.chunkSize = n
		return nil
	}
}

// WithMaxBuffer caps the bytes kept while waiting for a match to complete.
// Defaults to 1 MiB. Zero disables the cap.
//
// When the cap is exceeded the oldest unmatched bytes are dropped and a
// warning is logged. A token longer than the cap is never recognised.
//
// Returns an error if n is negative.
func WithMaxBuffer(n int) Option {
	return func(cfg *ppConfig) error {
		if n < 0 {
			return errors.New("max buffer cannot be negative")
		}
		cfg.maxBuffer = n
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Plotter instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *ppConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithReadingCallback registers a function called for every reading, in
// arrival order, after the reading has been stored.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// Callbacks are invoked synchronously from the event loop and must not
// block. Panics within callbacks are recovered and logged.
//
// Example:
//
//	p, err := pipeplot.New(
//	    pipeplot.WithReadingCallback(func(r pipeplot.Reading) {
//	        if r.Value > 100 {
//	            log.Printf("%s spiked to %v", r.Name, r.Value)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithReadingCallback(cb func(Reading)) Option {
	return func(cfg *ppConfig) error {
		if cb == nil {
			return nil
		}
		cfg.readingCallbacks = append(cfg.readingCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title displayed in the browser tab and header.
//
// If not specified, defaults to "pipeplot".
func WithTitle(title string) Option {
	return func(cfg *ppConfig) error {
		cfg.title = title
		return nil
	}
}

// WithExitOnClose makes [Plotter.Start] return once the input has ended,
// instead of serving the final window until the context is cancelled.
func WithExitOnClose(exit bool) Option {
	return func(cfg *ppConfig) error {
		cfg.exitOnClose = exit
		return nil
	}
}

// WithHeadless disables the HTTP server. Readings are still extracted,
// written to sinks and passed to callbacks. A headless plotter has nothing
// to serve once the input ends, so it implies [WithExitOnClose].
func WithHeadless(headless bool) Option {
	return func(cfg *ppConfig) error {
		cfg.headless = headless
		return nil
	}
}
