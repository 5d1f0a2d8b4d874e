package pipeplot

import (
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
)

// Reading is one numeric sample extracted from the input.
//
// All readings found in the same scan share one Timestamp, which has
// millisecond resolution. Channel is the index of the matcher that
// produced the reading.
type Reading struct {
	// Timestamp is when the chunk containing the reading finished arriving.
	Timestamp time.Time

	// Channel is the index into the [MatcherSet].
	Channel int

	// Name is the channel's display name.
	Name string

	// Value is the parsed capture.
	Value float64
}

func toPublicReading(r series.Reading, names []string) Reading {
	var name string
	if r.Channel >= 0 && r.Channel < len(names) {
		name = names[r.Channel]
	}
	return Reading{
		Timestamp: r.Timestamp,
		Channel:   r.Channel,
		Name:      name,
		Value:     r.Value,
	}
}
