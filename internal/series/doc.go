// Package series holds the per-channel, time-windowed history of readings.
//
// This package is internal to pipeplot. A [Window] keeps one double-ended
// queue per channel, newest reading at the front. Every [Window.Push] evicts
// readings from the back whose age relative to the pushed reading exceeds
// the window length, so memory stays bounded by time rather than by count.
//
// Display bounds are tracked incrementally. The first reading on a channel
// seeds that channel's range; later readings only widen it. The bounds never
// contract when the widening readings are evicted, which keeps the value
// axis stable at the cost of never zooming back in.
//
// A Window is not safe for concurrent use. The store package wraps it for
// the concurrent dashboard readers.
package series
