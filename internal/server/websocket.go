package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = (wsPongWait * 9) / 10
	wsMaxMessage   = 1 << 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// same-origin browsers, or clients that send no Origin at all
		origin := r.Header.Get("Origin")
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// handleWS streams the same messages as handleSSE over a websocket and
// accepts {"window_ms": N} messages from the client.
//
// All writes happen on the handler goroutine; a separate goroutine owns
// reads, as gorilla/websocket allows one concurrent reader and one writer.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	go s.readWS(ctx, cancel, conn)

	write := func(v any) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(v)
	}

	snap := s.store.Snapshot(0)
	last := snap.Seq
	if err := write(s.snapshotMessage(snap)); err != nil {
		return
	}

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case u, ok := <-ch:
			if !ok {
				return
			}
			msg, send := s.nextMessage(&last, u)
			if !send {
				continue
			}
			if err := write(msg); err != nil {
				s.logger.Warn("websocket client dropped", "error", err)
				return
			}

		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

// readWS applies window changes sent by the client and cancels ctx when the
// connection fails.
func (s *Server) readWS(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Debug("websocket read error", "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		var body windowBody
		if err := json.Unmarshal(data, &body); err != nil || body.WindowMs == nil {
			s.logger.Debug("ignoring websocket message", "size", len(data))
			continue
		}
		s.applyWindow(*body.WindowMs)
	}
}
