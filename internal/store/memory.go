package store

import (
	"sync"
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
)

// subscriberBuffer is the channel buffer given to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store] backed by a
// [series.Window].
//
// Subscribers receive updates via buffered channels (buffer size 100).
// Updates are sent non-blocking; if a subscriber's buffer is full, the
// update is dropped for that subscriber. Every update carries the next
// sequence number, and subscribers are notified under the write lock so
// they see updates in sequence order; a subscriber that sees a gap
// recovers by taking a fresh snapshot.
type MemoryStore struct {
	mu     sync.RWMutex
	window *series.Window
	origin time.Time
	closed bool
	seq    uint64

	subscribers map[chan Update]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a store for a fixed number of channels. origin is
// the instant display timestamps are measured from.
func NewMemoryStore(channels int, window time.Duration, origin time.Time) *MemoryStore {
	return &MemoryStore{
		window:      series.NewWindow(channels, window),
		origin:      origin,
		subscribers: make(map[chan Update]struct{}),
	}
}

// Push appends every reading of batch in order.
//
// Readings for unknown channels are skipped and the first such error is
// returned after the rest of the batch has been stored. Subscribers are
// notified even for an empty batch.
func (m *MemoryStore) Push(batch []series.Reading) error {
	var firstErr error

	m.mu.Lock()
	for _, r := range batch {
		if err := m.window.Push(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.seq++
	m.notifySubscribers(Update{
		Kind:     KindReadings,
		Seq:      m.seq,
		Readings: batch,
		Window:   m.window.WindowLength(),
		Bounds:   m.window.Bounds(),
		Closed:   m.closed,
	})
	m.mu.Unlock()

	return firstErr
}

// SetWindow changes the window length and notifies subscribers. Readings
// already stored are re-evicted lazily on their channel's next push.
func (m *MemoryStore) SetWindow(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.window.SetWindow(d)
	m.seq++
	m.notifySubscribers(Update{
		Kind:   KindWindow,
		Seq:    m.seq,
		Window: m.window.WindowLength(),
		Bounds: m.window.Bounds(),
		Closed: m.closed,
	})
}

// Window returns the current window length.
func (m *MemoryStore) Window() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window.WindowLength()
}

// Snapshot returns a copy of the readings newer than the latest timestamp
// minus window.
func (m *MemoryStore) Snapshot(window time.Duration) series.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if window <= 0 {
		window = m.window.WindowLength()
	}
	snap := m.window.Snapshot(window)
	snap.Seq = m.seq
	return snap
}

// Retained returns the number of readings a channel holds.
func (m *MemoryStore) Retained(channel int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.window.Len(channel)
}

// MarkClosed records the end of input and notifies subscribers once.
func (m *MemoryStore) MarkClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	m.seq++
	m.notifySubscribers(Update{
		Kind:   KindClosed,
		Seq:    m.seq,
		Window: m.window.WindowLength(),
		Bounds: m.window.Bounds(),
		Closed: true,
	})
}

// Closed reports whether the input has ended.
func (m *MemoryStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Origin returns the instant display timestamps are measured from.
func (m *MemoryStore) Origin() time.Time {
	return m.origin
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Update {
	ch := make(chan Update, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Update) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends u to all active subscribers without blocking.
// Callers hold m.mu.
func (m *MemoryStore) notifySubscribers(u Update) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- u:
		default:
			// subscriber is slow, drop the message
		}
	}
}
