// Package store provides concurrent access and pub/sub for windowed series.
//
// [series.Window] is single-writer and unsynchronised. [MemoryStore] wraps
// it with a lock so the extraction loop can push batches while HTTP
// handlers take snapshots, and publishes an [Update] after every change.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Update]: Change notification delivered to subscribers
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the extraction loop).
package store
