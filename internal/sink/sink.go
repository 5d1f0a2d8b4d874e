package sink

import (
	"errors"
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
)

// ErrClosed is returned when writing to a sink that has been closed.
var ErrClosed = errors.New("sink closed")

// Sink is row-oriented persistence of accepted readings.
type Sink interface {
	// WriteHeader is called once before any row.
	WriteHeader() error

	// WriteRow records one reading. elapsed is measured from the start of
	// extraction.
	WriteRow(elapsed time.Duration, r series.Reading) error

	// Close flushes buffered rows and releases the underlying resource.
	Close() error
}

// Row is one persisted reading as read back from a sink.
type Row struct {
	Elapsed time.Duration
	Channel int
	Value   float64
	Seq     uint64
}

type multi []Sink

// Multi returns a Sink writing to every non-nil sink in order. It returns
// nil when no sink is given.
func Multi(sinks ...Sink) Sink {
	var m multi
	for _, s := range sinks {
		if s != nil {
			m = append(m, s)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m multi) WriteHeader() error {
	for _, s := range m {
		if err := s.WriteHeader(); err != nil {
			return err
		}
	}
	return nil
}

func (m multi) WriteRow(elapsed time.Duration, r series.Reading) error {
	for _, s := range m {
		if err := s.WriteRow(elapsed, r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink, even after a failure, and returns the first error.
func (m multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
