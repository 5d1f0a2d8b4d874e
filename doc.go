// Package pipeplot turns any text stream into a live plot.
//
// A [Plotter] reads bytes from an input (stdin by default), scans them with
// one regular expression per channel and serves every numeric capture to a
// browser dashboard that draws the most recent window of each channel.
// Devices that print lines like "T=21.5 H=40" over a serial port, or any
// program writing "$value$" tokens, can be plotted without changing them.
//
// # Quick Start
//
// Pipe a stream into a plotter and stop on SIGINT/SIGTERM:
//
//	set, _ := pipeplot.NewMatcherSet(`T=(-?\d+\.?\d*)`, `H=(\d+)`)
//	p, _ := pipeplot.New(pipeplot.WithMatchers(set.WithNames("temp", "humidity")))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	p.Start(ctx) // blocks until context is cancelled
//
// # Configuration
//
// pipeplot uses the functional options pattern for configuration:
//
//	p, err := pipeplot.New(
//	    pipeplot.WithInput(port),
//	    pipeplot.WithWindow(10 * time.Second),
//	    pipeplot.WithPort(9090),
//	    pipeplot.WithOutput("run.csv.zst"),
//	    pipeplot.WithArchive("./archive"),
//	)
//
// # Extraction
//
// The input is read in small chunks. Bytes that have not yet produced a
// match are carried over to the next read, so a token split across reads
// is still recognised. Every match's first capture group is parsed as a
// decimal float; a pattern without groups uses the whole match. Values that
// do not parse, or are not finite, are skipped.
//
// All readings found in one scan share a timestamp. The carried bytes are
// capped (see [WithMaxBuffer]) so a stream that never matches cannot grow
// memory without bound.
//
// # Architecture
//
// pipeplot consists of several internal packages (under internal/):
//
//   - internal/extract: chunked reader and per-channel pattern scanner
//   - internal/series: per-channel sliding windows and value bounds
//   - internal/store: in-memory storage with pub/sub for live updates
//   - internal/server: HTTP server with REST API, Server-Sent Events and WebSocket
//   - internal/sink: CSV output and BadgerDB archive of every reading
//   - internal/palette: distinct per-channel colours
//   - internal/metrics: Prometheus instrumentation
//   - dashboard: embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pipeplot
