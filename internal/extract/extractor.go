package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/jpalmerr/pipeplot/internal/metrics"
	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/sink"
)

const (
	// DefaultChunkSize is the number of bytes requested per read.
	DefaultChunkSize = 128

	// DefaultMaxBuffer caps the carry buffer at 1 MiB.
	DefaultMaxBuffer = 1 << 20
)

// ErrBufferOverflow is wrapped by [Event.Overflow] when unmatched input was
// discarded to keep the carry buffer within its cap.
var ErrBufferOverflow = errors.New("carry buffer overflow")

// State is the lifecycle stage of an [Extractor].
type State int

const (
	Starting State = iota
	Working
	Closed
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Working:
		return "working"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event is the outcome of one activation.
type Event struct {
	// Readings is the batch extracted from the carry buffer, in channel
	// order and then left to right. It may be empty.
	Readings []series.Reading

	// At is the shared timestamp of every reading in the batch.
	At time.Time

	// Closed reports that the input has ended. A closing event may still
	// carry readings from the final flush; none follow it.
	Closed bool

	// Overflow is non-nil when bytes were dropped from the carry buffer.
	// It wraps ErrBufferOverflow.
	Overflow error

	// Err is a fatal sink failure. It is only set together with Closed.
	Err error
}

// Extractor recognises pattern matches in a byte stream read chunk by chunk.
//
// An Extractor is not safe for concurrent use.
type Extractor struct {
	input    io.Reader
	matchers []*regexp.Regexp
	sink     sink.Sink
	chunk    []byte
	carry    *carry
	clock    func() time.Time
	logger   *slog.Logger
	metrics  *metrics.Metrics

	state   State
	started time.Time
	readErr error
}

// Option configures an [Extractor].
type Option func(*Extractor)

// WithSink persists every reading to s. The extractor owns s from then on:
// it writes the header on the first activation and closes s when the input
// ends.
func WithSink(s sink.Sink) Option {
	return func(e *Extractor) {
		e.sink = s
	}
}

// WithChunkSize sets the read size. Non-positive values keep the default.
func WithChunkSize(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.chunk = make([]byte, n)
		}
	}
}

// WithMaxBuffer caps the carry buffer at n bytes. Zero disables the cap.
func WithMaxBuffer(n int) Option {
	return func(e *Extractor) {
		if n >= 0 {
			e.carry.limit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) {
		if now != nil {
			e.clock = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records scan statistics in m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Extractor) {
		e.metrics = m
	}
}

// New returns an Extractor in the Starting state. matchers are indexed by
// channel.
func New(input io.Reader, matchers []*regexp.Regexp, opts ...Option) *Extractor {
	e := &Extractor{
		input:    input,
		matchers: matchers,
		chunk:    make([]byte, DefaultChunkSize),
		carry:    newCarry(DefaultMaxBuffer),
		clock:    time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the current lifecycle stage.
func (e *Extractor) State() State {
	return e.state
}

// Started returns the stream start time, truncated to milliseconds. It is
// zero until the first activation.
func (e *Extractor) Started() time.Time {
	return e.started
}

// Buffered returns the number of bytes held in the carry buffer.
func (e *Extractor) Buffered() int {
	return e.carry.len()
}

// Next performs one activation.
//
// In the Working state it reads one chunk, scans the carry buffer and
// returns the batch. When the read fails (including io.EOF) the sink is
// closed and a closing event is returned; every later call returns a
// closing event again. A read returning data together with an error is
// scanned first and closes on the following call.
//
// The returned error is non-nil only for sink failures, which are fatal.
func (e *Extractor) Next() (Event, error) {
	switch e.state {
	case Closed:
		return Event{Closed: true}, nil
	case Starting:
		if err := e.begin(); err != nil {
			return e.fail(err)
		}
	}

	if e.readErr != nil {
		return e.finish(e.readErr)
	}

	n, err := e.input.Read(e.chunk)
	if n == 0 {
		if err == nil {
			return Event{At: e.now()}, nil
		}
		return e.finish(err)
	}
	if err != nil {
		e.readErr = err
	}
	return e.scan(e.chunk[:n])
}

// Run calls Next until the input closes, a sink fails or ctx is cancelled,
// delivering every event on out. out is closed when Run returns.
//
// On cancellation the sink is flushed and closed; Run returns the sink's
// close error if any. Run does not interrupt a blocked read: callers should
// close the input to unblock it.
func (e *Extractor) Run(ctx context.Context, out chan<- Event) error {
	defer close(out)

	for {
		if ctx.Err() != nil {
			return e.Close()
		}

		ev, err := e.Next()

		select {
		case out <- ev:
		case <-ctx.Done():
			if err != nil {
				return err
			}
			return e.Close()
		}

		if err != nil {
			return err
		}
		if ev.Closed {
			return nil
		}
	}
}

// Close moves the extractor to Closed and closes the sink. It is a no-op
// once closed.
func (e *Extractor) Close() error {
	if e.state == Closed {
		return nil
	}
	e.state = Closed
	return e.closeSink()
}

func (e *Extractor) now() time.Time {
	return e.clock().Truncate(time.Millisecond)
}

func (e *Extractor) begin() error {
	if e.sink != nil {
		if err := e.sink.WriteHeader(); err != nil {
			return fmt.Errorf("failed to write sink header: %w", err)
		}
	}
	e.started = e.now()
	e.state = Working
	e.logger.Debug("extractor started",
		"channels", len(e.matchers),
		"chunk_size", len(e.chunk),
		"max_buffer", e.carry.limit,
	)
	return nil
}

// finish handles the end of input. An incomplete UTF-8 sequence left at the
// end is decoded as U+FFFD and scanned one last time, so its readings
// arrive on the closing event.
func (e *Extractor) finish(readErr error) (Event, error) {
	var ev Event
	if e.carry.flush() {
		var err error
		if ev, err = e.scan(nil); err != nil {
			return ev, err
		}
	}

	if errors.Is(readErr, io.EOF) {
		e.logger.Info("input closed", "buffered", e.carry.len())
	} else {
		e.logger.Info("input closed", "reason", readErr, "buffered", e.carry.len())
	}
	e.state = Closed
	e.metrics.MarkInputClosed()

	ev.Closed = true
	if err := e.closeSink(); err != nil {
		ev.Err = err
		return ev, err
	}
	return ev, nil
}

// fail closes the sink best-effort after a fatal error.
func (e *Extractor) fail(err error) (Event, error) {
	e.logger.Error("extractor failed", "error", err)
	e.state = Closed
	if cerr := e.closeSink(); cerr != nil {
		e.logger.Warn("sink close after failure", "error", cerr)
	}
	return Event{Closed: true, Err: err}, err
}

func (e *Extractor) closeSink() error {
	if e.sink == nil {
		return nil
	}
	s := e.sink
	e.sink = nil
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close sink: %w", err)
	}
	return nil
}

func (e *Extractor) scan(chunk []byte) (Event, error) {
	e.carry.write(chunk)
	at := e.now()
	buf := e.carry.bytes()

	var readings []series.Reading
	furthest := -1
	for ch, re := range e.matchers {
		for _, loc := range re.FindAllSubmatchIndex(buf, -1) {
			if loc[1] > furthest {
				furthest = loc[1]
			}
			start, end := loc[0], loc[1]
			if len(loc) >= 4 {
				start, end = loc[2], loc[3]
			}
			if start < 0 {
				continue
			}
			v, ok := parseValue(buf[start:end])
			if !ok {
				continue
			}
			readings = append(readings, series.Reading{Timestamp: at, Channel: ch, Value: v})
			e.metrics.AddReading(ch)
		}
	}

	if furthest >= 0 {
		e.carry.consume(furthest)
	}

	var overflow error
	if dropped := e.carry.trim(); dropped > 0 {
		overflow = fmt.Errorf("%w: dropped %d bytes", ErrBufferOverflow, dropped)
		e.metrics.AddOverflow(dropped)
		e.logger.Warn("carry buffer overflow", "dropped", dropped, "limit", e.carry.limit)
	}

	if e.sink != nil && len(readings) > 0 {
		elapsed := at.Sub(e.started)
		for _, r := range readings {
			if err := e.sink.WriteRow(elapsed, r); err != nil {
				return e.fail(fmt.Errorf("failed to write reading: %w", err))
			}
		}
		e.metrics.AddSinkRows(len(readings))
	}

	e.metrics.ObserveScan(len(chunk), len(readings), e.carry.len())
	e.logger.Debug("scan",
		"bytes", len(chunk),
		"readings", len(readings),
		"buffered", e.carry.len(),
	)

	return Event{Readings: readings, At: at, Overflow: overflow}, nil
}

// parseValue parses a capture as a finite float64.
func parseValue(b []byte) (float64, bool) {
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
