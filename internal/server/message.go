package server

import (
	"time"

	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/store"
)

// Message types sent to dashboard clients.
const (
	typeSnapshot = "snapshot"
	typeReadings = "readings"
	typeWindow   = "window"
	typeClosed   = "closed"
)

// Point is one reading as sent to clients: X is milliseconds since the
// store origin.
type Point struct {
	Channel int     `json:"channel"`
	X       int64   `json:"x"`
	Y       float64 `json:"y"`
}

// Message is the JSON document served by /api/snapshot and streamed over
// SSE and the websocket.
type Message struct {
	Type     string  `json:"type"`
	Seq      uint64  `json:"seq"`
	WindowMs int64   `json:"window_ms"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Closed   bool    `json:"closed"`

	// LatestMs is the newest timestamp, in ms since origin. Snapshot only.
	LatestMs *int64 `json:"latest_ms,omitempty"`

	// Channels holds, per channel, the [x, y] pairs in the window, oldest
	// first. Snapshot only.
	Channels [][][2]float64 `json:"channels,omitempty"`

	// Points holds the readings of one batch. Readings only.
	Points []Point `json:"points,omitempty"`
}

func (s *Server) sinceOrigin(t time.Time) int64 {
	return t.Sub(s.store.Origin()).Milliseconds()
}

func (s *Server) snapshotMessage(snap series.Snapshot) Message {
	m := Message{
		Type:     typeSnapshot,
		Seq:      snap.Seq,
		WindowMs: snap.Window.Milliseconds(),
		Min:      snap.Bounds.Min,
		Max:      snap.Bounds.Max,
		Closed:   s.store.Closed(),
		Channels: make([][][2]float64, len(snap.Channels)),
	}
	if !snap.Latest.IsZero() {
		latest := s.sinceOrigin(snap.Latest)
		m.LatestMs = &latest
	}
	for i, readings := range snap.Channels {
		pts := make([][2]float64, len(readings))
		for j, r := range readings {
			pts[j] = [2]float64{float64(s.sinceOrigin(r.Timestamp)), r.Value}
		}
		m.Channels[i] = pts
	}
	return m
}

func (s *Server) updateMessage(u store.Update) Message {
	m := Message{
		Seq:      u.Seq,
		WindowMs: u.Window.Milliseconds(),
		Min:      u.Bounds.Min,
		Max:      u.Bounds.Max,
		Closed:   u.Closed,
	}
	switch u.Kind {
	case store.KindReadings:
		m.Type = typeReadings
		m.Points = make([]Point, len(u.Readings))
		for i, r := range u.Readings {
			m.Points[i] = Point{Channel: r.Channel, X: s.sinceOrigin(r.Timestamp), Y: r.Value}
		}
	case store.KindWindow:
		m.Type = typeWindow
	case store.KindClosed:
		m.Type = typeClosed
	}
	return m
}

// nextMessage returns what a client that has seen everything up to *last
// should receive for u. Updates already covered by the client's snapshot
// are skipped. After a gap the client gets a fresh snapshot instead.
func (s *Server) nextMessage(last *uint64, u store.Update) (Message, bool) {
	if u.Seq <= *last {
		return Message{}, false
	}
	if u.Seq > *last+1 {
		snap := s.store.Snapshot(0)
		s.logger.Debug("client missed updates, resending snapshot",
			"seen", *last, "received", u.Seq)
		*last = snap.Seq
		return s.snapshotMessage(snap), true
	}
	*last = u.Seq
	return s.updateMessage(u), true
}
