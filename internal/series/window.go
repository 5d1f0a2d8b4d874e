package series

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultWindow is the window length used when none, or an out-of-range
// one, is supplied.
const DefaultWindow = 5000 * time.Millisecond

// ErrUnknownChannel is returned by [Window.Push] for a reading whose channel
// is outside the configured range.
var ErrUnknownChannel = errors.New("unknown channel")

// Reading is one extracted sample.
//
// Readings are plain values and are copied freely. Within one channel the
// extractor produces non-decreasing timestamps with millisecond resolution.
type Reading struct {
	Timestamp time.Time
	Channel   int
	Value     float64
}

// Bounds is the value range used to scale the display axis.
type Bounds struct {
	Min float64
	Max float64
}

// defaultBounds is reported until the first reading arrives.
var defaultBounds = Bounds{Min: 0, Max: 1}

// Snapshot is a read-only view of the window at one instant.
type Snapshot struct {
	// Channels holds, per channel index, the readings newer than
	// Latest - Window, oldest first.
	Channels [][]Reading

	// Bounds is the current display range.
	Bounds Bounds

	// Latest is the newest timestamp pushed on any channel. Zero before the
	// first reading.
	Latest time.Time

	// Window is the window length the snapshot was cut with.
	Window time.Duration

	// Seq is the sequence number of the last store update the snapshot
	// reflects. A bare Window leaves it zero.
	Seq uint64
}

type channelSeries struct {
	points deque
	seen   bool
	min    float64
	max    float64
}

// Window keeps a bounded, time-windowed history per channel.
type Window struct {
	channels []channelSeries
	window   time.Duration
	latest   time.Time
}

// NewWindow creates a Window for a fixed number of channels.
//
// A non-positive window length falls back to [DefaultWindow].
func NewWindow(channels int, window time.Duration) *Window {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Window{
		channels: make([]channelSeries, channels),
		window:   window,
	}
}

// Push inserts r at the front of its channel and evicts stale readings.
//
// A reading is evicted when r.Timestamp minus its timestamp is strictly
// greater than the window length; a reading exactly at the boundary stays.
// Only the channel of r is evicted, other channels are left for their own
// next push.
func (w *Window) Push(r Reading) error {
	if r.Channel < 0 || r.Channel >= len(w.channels) {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownChannel, r.Channel, len(w.channels))
	}

	cs := &w.channels[r.Channel]
	cs.points.PushFront(r)
	for {
		back, ok := cs.points.Back()
		if !ok || r.Timestamp.Sub(back.Timestamp) <= w.window {
			break
		}
		cs.points.PopBack()
	}

	if r.Timestamp.After(w.latest) {
		w.latest = r.Timestamp
	}

	if !cs.seen {
		cs.seen = true
		cs.min = r.Value
		cs.max = r.Value
		return nil
	}
	cs.min = math.Min(cs.min, r.Value)
	cs.max = math.Max(cs.max, r.Value)
	return nil
}

// SetWindow changes the eviction threshold used by subsequent pushes.
// Existing readings are not re-evicted until their channel is pushed again.
// A non-positive length falls back to [DefaultWindow].
func (w *Window) SetWindow(d time.Duration) {
	if d <= 0 {
		d = DefaultWindow
	}
	w.window = d
}

// WindowLength returns the current eviction threshold.
func (w *Window) WindowLength() time.Duration {
	return w.window
}

// Latest returns the newest timestamp pushed on any channel.
func (w *Window) Latest() time.Time {
	return w.latest
}

// NumChannels returns the fixed channel count.
func (w *Window) NumChannels() int {
	return len(w.channels)
}

// Len returns the number of readings retained for a channel, or 0 for an
// unknown channel.
func (w *Window) Len(channel int) int {
	if channel < 0 || channel >= len(w.channels) {
		return 0
	}
	return w.channels[channel].points.Len()
}

// Bounds returns the display range: the union of the ranges of every
// channel that has received a reading.
func (w *Window) Bounds() Bounds {
	b := defaultBounds
	first := true
	for i := range w.channels {
		cs := &w.channels[i]
		if !cs.seen {
			continue
		}
		if first {
			b = Bounds{Min: cs.min, Max: cs.max}
			first = false
			continue
		}
		b.Min = math.Min(b.Min, cs.min)
		b.Max = math.Max(b.Max, cs.max)
	}
	return b
}

// Snapshot returns, per channel, the readings newer than
// Latest - window in chronological order. It does not modify the Window.
func (w *Window) Snapshot(window time.Duration) Snapshot {
	snap := Snapshot{
		Channels: make([][]Reading, len(w.channels)),
		Bounds:   w.Bounds(),
		Latest:   w.latest,
		Window:   window,
	}
	if w.latest.IsZero() {
		return snap
	}

	cutoff := w.latest.Add(-window)
	for i := range w.channels {
		pts := &w.channels[i].points
		// walk from the back (oldest) so the result comes out ascending
		out := make([]Reading, 0, pts.Len())
		for j := pts.Len() - 1; j >= 0; j-- {
			r := pts.At(j)
			if r.Timestamp.After(cutoff) {
				out = append(out, r)
			}
		}
		snap.Channels[i] = out
	}
	return snap
}

// ClampWindow converts an operator-supplied window length in milliseconds
// into a duration. Non-positive values and values of math.MaxInt32 or more
// fall back to [DefaultWindow].
func ClampWindow(ms int64) time.Duration {
	if ms <= 0 || ms >= math.MaxInt32 {
		return DefaultWindow
	}
	return time.Duration(ms) * time.Millisecond
}
