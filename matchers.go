package pipeplot

import (
	"fmt"
	"regexp"
)

// DefaultPattern matches a token delimited by '$' on both sides and captures
// what lies between, e.g. "$21.5$".
const DefaultPattern = `\$([^$]+)\$`

// Matcher is one compiled channel pattern.
//
// Matcher is immutable after creation. The payload of a match is the span
// of the first capture group; a pattern without groups uses the whole
// match, and groups after the first are ignored.
type Matcher struct {
	name string
	re   *regexp.Regexp
}

// Name returns the channel's display name.
func (m Matcher) Name() string {
	return m.name
}

// Pattern returns the source of the regular expression.
func (m Matcher) Pattern() string {
	return m.re.String()
}

// Groups returns the number of capture groups in the pattern.
func (m Matcher) Groups() int {
	return m.re.NumSubexp()
}

// MatcherSet is an ordered list of channel patterns. The index of a
// matcher is its channel id.
//
// The channel count is fixed when the set is created. A MatcherSet is
// immutable; [MatcherSet.WithNames] returns a modified copy.
type MatcherSet struct {
	matchers []Matcher
}

// NewMatcherSet compiles one pattern per channel, in channel order.
//
// Any pattern that fails to compile is an error: no partial set is
// returned. With no patterns the result is [DefaultMatcherSet].
//
// Example:
//
//	set, err := pipeplot.NewMatcherSet(`temp=(-?\d+\.?\d*)`, `load=(\d+)`)
func NewMatcherSet(patterns ...string) (MatcherSet, error) {
	if len(patterns) == 0 {
		return DefaultMatcherSet(), nil
	}

	matchers := make([]Matcher, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return MatcherSet{}, fmt.Errorf("invalid pattern for channel %d %q: %w", i, p, err)
		}
		matchers[i] = Matcher{name: defaultChannelName(i), re: re}
	}
	return MatcherSet{matchers: matchers}, nil
}

// MustMatcherSet is like [NewMatcherSet] but panics if a pattern is
// invalid. Use it for patterns known at compile time.
func MustMatcherSet(patterns ...string) MatcherSet {
	set, err := NewMatcherSet(patterns...)
	if err != nil {
		panic(err)
	}
	return set
}

// DefaultMatcherSet returns a single channel using [DefaultPattern].
func DefaultMatcherSet() MatcherSet {
	return MatcherSet{matchers: []Matcher{{
		name: defaultChannelName(0),
		re:   regexp.MustCompile(DefaultPattern),
	}}}
}

func defaultChannelName(i int) string {
	return fmt.Sprintf("channel %d", i)
}

// WithNames returns a copy of the set with display names applied in
// channel order. Empty names and names beyond the channel count are
// ignored.
func (s MatcherSet) WithNames(names ...string) MatcherSet {
	out := MatcherSet{matchers: append([]Matcher(nil), s.matchers...)}
	for i, name := range names {
		if i >= len(out.matchers) {
			break
		}
		if name != "" {
			out.matchers[i].name = name
		}
	}
	return out
}

// Len returns the number of channels.
func (s MatcherSet) Len() int {
	return len(s.matchers)
}

// At returns the matcher of a channel. It panics if i is out of range.
func (s MatcherSet) At(i int) Matcher {
	return s.matchers[i]
}

// Matchers returns a copy of the matchers in channel order.
func (s MatcherSet) Matchers() []Matcher {
	return append([]Matcher(nil), s.matchers...)
}

// Patterns returns the pattern sources in channel order.
func (s MatcherSet) Patterns() []string {
	out := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.Pattern()
	}
	return out
}

// Names returns the display names in channel order.
func (s MatcherSet) Names() []string {
	out := make([]string, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.name
	}
	return out
}

func (s MatcherSet) regexps() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(s.matchers))
	for i, m := range s.matchers {
		out[i] = m.re
	}
	return out
}
