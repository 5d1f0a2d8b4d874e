package sink

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
)

// Header is the first row of every CSV sink.
var Header = []string{"timestamp", "value", "channel"}

// CSV writes one comma-separated row per reading:
//
//	timestamp,value,channel
//	0,1.5,0
//	12,2.5,0
//
// timestamp is whole milliseconds since extraction started.
type CSV struct {
	w      *csv.Writer
	enc    io.WriteCloser
	file   io.Closer
	path   string
	rec    []string
	closed bool
}

// Open creates (truncating) the file at path and returns a CSV sink that
// compresses according to [CodecForPath].
func Open(path string) (*CSV, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	enc, err := CodecForPath(path).NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	s := newCSV(enc)
	s.file = f
	s.path = path
	return s, nil
}

// NewCSV returns an uncompressed CSV sink writing to w. Close flushes but
// does not close w.
func NewCSV(w io.Writer) *CSV {
	return newCSV(nopWriteCloser{w})
}

func newCSV(enc io.WriteCloser) *CSV {
	return &CSV{
		w:   csv.NewWriter(enc),
		enc: enc,
		rec: make([]string, 3),
	}
}

// Path returns the file path for sinks created by [Open].
func (s *CSV) Path() string {
	return s.path
}

// WriteHeader writes the column names.
func (s *CSV) WriteHeader() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.w.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// WriteRow writes one reading.
func (s *CSV) WriteRow(elapsed time.Duration, r series.Reading) error {
	if s.closed {
		return ErrClosed
	}
	s.rec[0] = strconv.FormatInt(elapsed.Milliseconds(), 10)
	s.rec[1] = strconv.FormatFloat(r.Value, 'g', -1, 64)
	s.rec[2] = strconv.Itoa(r.Channel)
	if err := s.w.Write(s.rec); err != nil {
		return fmt.Errorf("failed to write row: %w", err)
	}
	return nil
}

// Close flushes the CSV writer and the compressor, then closes the file.
// Calling Close more than once returns nil.
func (s *CSV) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := s.w.Error()
	if cerr := s.enc.Close(); err == nil {
		err = cerr
	}
	if s.file != nil {
		if cerr := s.file.Close(); err == nil {
			err = cerr
		}
	}
	if err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}

// ReadCSV reads a CSV sink back, decompressing according to the extension
// of path. Row.Seq is the row's position in the file.
func ReadCSV(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec, err := CodecForPath(path).NewReader(f)
	if err != nil {
		return nil, err
	}
	defer func() { _ = dec.Close() }()

	records, err := csv.NewReader(dec).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) != len(Header) {
			return nil, fmt.Errorf("%s: row %d has %d fields, want %d", path, i+1, len(rec), len(Header))
		}
		ms, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: timestamp: %w", path, i+1, err)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: value: %w", path, i+1, err)
		}
		ch, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("%s: row %d: channel: %w", path, i+1, err)
		}
		rows = append(rows, Row{
			Elapsed: time.Duration(ms) * time.Millisecond,
			Channel: ch,
			Value:   v,
			Seq:     uint64(i),
		})
	}
	return rows, nil
}
