package store

import (
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
)

// UpdateKind identifies what changed in an [Update].
type UpdateKind string

const (
	// KindReadings carries a batch of new readings.
	KindReadings UpdateKind = "readings"

	// KindWindow reports a new window length.
	KindWindow UpdateKind = "window"

	// KindClosed reports that the input stream has ended.
	KindClosed UpdateKind = "closed"
)

// Update is published to subscribers after every change to the store.
type Update struct {
	Kind UpdateKind

	// Seq numbers updates from 1 without gaps. A subscriber that sees a
	// jump has missed updates and should take a fresh snapshot.
	Seq uint64

	// Readings is the pushed batch for KindReadings. Subscribers must not
	// modify it.
	Readings []series.Reading

	// Window is the window length after the change.
	Window time.Duration

	// Bounds is the display range after the change.
	Bounds series.Bounds

	// Closed reports whether the input has ended.
	Closed bool
}

// Store holds the windowed series and fans changes out to subscribers.
//
// Store implementations must be safe for concurrent access. The event loop
// is the only writer; HTTP handlers read snapshots and subscribe to updates
// from their own goroutines.
type Store interface {
	// Push appends a batch of readings and notifies all subscribers.
	Push(batch []series.Reading) error

	// SetWindow changes the window length for subsequent pushes.
	SetWindow(d time.Duration)

	// Window returns the current window length.
	Window() time.Duration

	// Snapshot returns the readings within window of the newest timestamp.
	// A non-positive window uses the current window length. The snapshot's
	// Seq is that of the last update it includes.
	Snapshot(window time.Duration) series.Snapshot

	// Retained returns the number of readings a channel currently holds.
	Retained(channel int) int

	// MarkClosed records that the input has ended.
	MarkClosed()

	// Closed reports whether MarkClosed has been called.
	Closed() bool

	// Origin is the instant display timestamps are measured from.
	Origin() time.Time

	// Subscribe returns a channel that receives updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Update

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Update)
}
