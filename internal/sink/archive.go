package sink

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/jpalmerr/pipeplot/internal/series"
)

const (
	rowPrefix  = "r/"
	metaPrefix = "m/"

	// archive memory limits: 16 MB memtable, small caches
	archiveMemTableSize = 16 << 20
	archiveValueLogSize = 64 << 20
)

// ArchiveMeta describes one stream recorded in an archive.
type ArchiveMeta struct {
	Stream   string    `json:"stream"`
	Started  time.Time `json:"started"`
	Patterns []string  `json:"patterns"`
}

// Archive stores readings in a BadgerDB directory.
//
// Keys are laid out as
//
//	r/<stream>/<pattern fingerprint:8>/<elapsed ms:8>/<seq:8>
//
// with big-endian integers, so one pattern's series within one stream is a
// contiguous, time-ordered key range. The fingerprint is the xxhash of the
// pattern source, which keeps series of the same pattern comparable across
// runs even when channel indices differ. Values hold the float bits and the
// channel index.
type Archive struct {
	db           *badger.DB
	wb           *badger.WriteBatch
	meta         ArchiveMeta
	fingerprints []uint64
	seq          uint64
	closed       bool
}

// OpenArchive opens (creating if needed) the archive at dir for writing one
// stream. patterns are the channel patterns in channel order.
func OpenArchive(dir, stream string, patterns []string) (*Archive, error) {
	if stream == "" {
		return nil, errors.New("archive stream id is required")
	}

	db, err := openDB(dir, false)
	if err != nil {
		return nil, err
	}

	fps := make([]uint64, len(patterns))
	for i, p := range patterns {
		fps[i] = Fingerprint(p)
	}

	return &Archive{
		db:           db,
		wb:           db.NewWriteBatch(),
		meta:         ArchiveMeta{Stream: stream, Patterns: append([]string(nil), patterns...)},
		fingerprints: fps,
	}, nil
}

// openDB opens the archive at dir. A read-only open never creates files, so
// it fails on a directory that holds no archive.
func openDB(dir string, readOnly bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(archiveMemTableSize).
		WithNumMemtables(2).
		WithBlockCacheSize(archiveMemTableSize / 2).
		WithIndexCacheSize(archiveMemTableSize / 4).
		WithNumCompactors(2).
		WithValueLogFileSize(archiveValueLogSize)
	if readOnly {
		opts = opts.WithReadOnly(true).WithNumCompactors(0)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", dir, err)
	}
	return db, nil
}

// Fingerprint returns the key fingerprint of a pattern.
func Fingerprint(pattern string) uint64 {
	return xxhash.Sum64String(pattern)
}

// Stream returns the stream id this archive writes.
func (a *Archive) Stream() string {
	return a.meta.Stream
}

// WriteHeader records the stream metadata with the current time as start.
func (a *Archive) WriteHeader() error {
	if a.closed {
		return ErrClosed
	}
	a.meta.Started = time.Now().UTC()
	val, err := json.Marshal(a.meta)
	if err != nil {
		return fmt.Errorf("failed to encode archive metadata: %w", err)
	}
	if err := a.wb.Set([]byte(metaPrefix+a.meta.Stream), val); err != nil {
		return fmt.Errorf("failed to write archive metadata: %w", err)
	}
	return nil
}

// WriteRow queues one reading in the current write batch.
func (a *Archive) WriteRow(elapsed time.Duration, r series.Reading) error {
	if a.closed {
		return ErrClosed
	}
	if r.Channel < 0 || r.Channel >= len(a.fingerprints) {
		return fmt.Errorf("%w: %d", series.ErrUnknownChannel, r.Channel)
	}

	key := rowKey(a.meta.Stream, a.fingerprints[r.Channel], elapsed.Milliseconds(), a.seq)
	a.seq++

	val := make([]byte, 12)
	binary.BigEndian.PutUint64(val[0:8], math.Float64bits(r.Value))
	binary.BigEndian.PutUint32(val[8:12], uint32(r.Channel))

	if err := a.wb.Set(key, val); err != nil {
		return fmt.Errorf("failed to write archive row: %w", err)
	}
	return nil
}

// Close flushes pending rows and closes the database.
func (a *Archive) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true

	err := a.wb.Flush()
	if cerr := a.db.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to close archive: %w", err)
	}
	return nil
}

func streamPrefix(stream string) []byte {
	return []byte(rowPrefix + stream + "/")
}

func rowKey(stream string, fp uint64, elapsedMs int64, seq uint64) []byte {
	prefix := streamPrefix(stream)
	key := make([]byte, len(prefix)+24)
	n := copy(key, prefix)
	binary.BigEndian.PutUint64(key[n:], fp)
	binary.BigEndian.PutUint64(key[n+8:], uint64(elapsedMs))
	binary.BigEndian.PutUint64(key[n+16:], seq)
	return key
}

// Streams lists the streams recorded in the archive at dir, oldest first.
func Streams(dir string) ([]ArchiveMeta, error) {
	db, err := openDB(dir, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	var metas []ArchiveMeta
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(metaPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var m ArchiveMeta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &m)
			}); err != nil {
				return fmt.Errorf("failed to decode metadata %q: %w", it.Item().Key(), err)
			}
			metas = append(metas, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool {
		return metas[i].Started.Before(metas[j].Started)
	})
	return metas, nil
}

// ReadArchive returns the rows of one stream in arrival order. A non-empty
// pattern restricts the result to that pattern's series.
func ReadArchive(dir, stream, pattern string) ([]Row, error) {
	db, err := openDB(dir, true)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	prefix := streamPrefix(stream)
	if pattern != "" {
		fp := make([]byte, 8)
		binary.BigEndian.PutUint64(fp, Fingerprint(pattern))
		prefix = append(prefix, fp...)
	}
	base := len(streamPrefix(stream))

	var rows []Row
	err = db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.Key()
			if len(key) != base+24 || !bytes.HasPrefix(key, prefix) {
				continue
			}
			row := Row{
				Elapsed: time.Duration(binary.BigEndian.Uint64(key[base+8:])) * time.Millisecond,
				Seq:     binary.BigEndian.Uint64(key[base+16:]),
			}
			if err := item.Value(func(val []byte) error {
				if len(val) != 12 {
					return fmt.Errorf("archive row %x: value has %d bytes, want 12", key, len(val))
				}
				row.Value = math.Float64frombits(binary.BigEndian.Uint64(val[0:8]))
				row.Channel = int(binary.BigEndian.Uint32(val[8:12]))
				return nil
			}); err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows, nil
}
