// Package extract turns an unbounded byte stream into batches of numeric
// readings.
//
// An [Extractor] reads the input in fixed-size chunks, decodes each chunk as
// UTF-8 and appends it to a carry buffer. Every matcher is run over the whole
// buffer; content up to the end of the furthest match is then discarded, so
// a token split across chunk boundaries is recognised exactly once, as soon
// as its last byte arrives.
//
// The extractor moves through three states:
//
//	Starting -> Working -> Closed
//
// Each call to [Extractor.Next] performs one activation and returns one
// [Event]. [Extractor.Run] drives Next in a loop and delivers events on a
// channel until the input closes or the context is cancelled.
package extract
