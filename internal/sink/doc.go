// Package sink persists accepted readings.
//
// This package is internal to pipeplot. A [Sink] receives a header once, one
// row per reading in arrival order, and is flushed and closed exactly once
// when the input stream ends. Rows are keyed by the time elapsed since
// extraction started rather than by wall-clock time.
//
// The implementations are:
//
//   - [CSV]: row-oriented text output, optionally compressed with gzip,
//     zstd or lz4 depending on the file extension
//   - [Archive]: a BadgerDB directory that accumulates many runs, one
//     stream id per run
//   - [Multi]: fan-out to several sinks
//
// Any error opening or writing a sink is fatal to the run. Partial
// telemetry logs are considered worse than a visible failure.
package sink
