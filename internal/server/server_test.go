package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/store"
)

var origin = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testChannels() []Channel {
	return []Channel{
		{Index: 0, Name: "temp", Pattern: `T=(\d+)`, Color: "#1ff2a0"},
		{Index: 1, Name: "load", Pattern: `L=(\d+)`, Color: "#f21f5c"},
	}
}

func newTestStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore(2, 5*time.Second, origin)
	err := st.Push([]series.Reading{
		{Timestamp: origin.Add(100 * time.Millisecond), Channel: 0, Value: 21.5},
		{Timestamp: origin.Add(250 * time.Millisecond), Channel: 1, Value: 3},
	})
	if err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	return st
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	return NewServer(st, testChannels(), 0, nil, "", nil, testLogger())
}

// parseSSEEvents decodes every data line of an SSE body.
func parseSSEEvents(body string) []Message {
	var msgs []Message
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m); err == nil {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func TestHandleSnapshot(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %v, want application/json", ct)
	}

	var m Message
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if m.Type != "snapshot" {
		t.Errorf("Type = %v, want snapshot", m.Type)
	}
	if m.WindowMs != 5000 {
		t.Errorf("WindowMs = %v, want 5000", m.WindowMs)
	}
	if m.Min != 3 || m.Max != 21.5 {
		t.Errorf("bounds = [%v, %v], want [3, 21.5]", m.Min, m.Max)
	}
	if m.LatestMs == nil || *m.LatestMs != 250 {
		t.Errorf("LatestMs = %v, want 250", m.LatestMs)
	}
	if len(m.Channels) != 2 {
		t.Fatalf("Channels = %v, want 2 channels", len(m.Channels))
	}
	if got := m.Channels[0]; len(got) != 1 || got[0] != [2]float64{100, 21.5} {
		t.Errorf("Channels[0] = %v, want [[100 21.5]]", got)
	}
}

func TestHandleSnapshot_WindowParam(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	tests := []struct {
		query      string
		wantStatus int
		wantWindow int64
		wantPoints int
	}{
		{"?window_ms=100", http.StatusOK, 100, 0},
		{"?window_ms=200", http.StatusOK, 200, 1},
		{"?window_ms=-1", http.StatusOK, 5000, 1},
		{"?window_ms=abc", http.StatusBadRequest, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/snapshot"+tt.query, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %v, want %v", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var m Message
			if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if m.WindowMs != tt.wantWindow {
				t.Errorf("WindowMs = %v, want %v", m.WindowMs, tt.wantWindow)
			}
			if got := len(m.Channels[0]); got != tt.wantPoints {
				t.Errorf("channel 0 = %v points, want %v", got, tt.wantPoints)
			}
		})
	}
}

func TestHandleChannels(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/channels", nil))

	var got []Channel
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(got) != 2 || got[1].Name != "load" || got[1].Color != "#f21f5c" {
		t.Errorf("channels = %+v, want %+v", got, testChannels())
	}
}

func TestHandleWindow(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)
	h := srv.Handler()

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantMs     int64
	}{
		{"get", http.MethodGet, "", http.StatusOK, 5000},
		{"put valid", http.MethodPut, `{"window_ms": 2000}`, http.StatusOK, 2000},
		{"post valid", http.MethodPost, `{"window_ms": 750}`, http.StatusOK, 750},
		{"zero falls back", http.MethodPut, `{"window_ms": 0}`, http.StatusOK, 5000},
		{"negative falls back", http.MethodPut, `{"window_ms": -10}`, http.StatusOK, 5000},
		{"max int32 falls back", http.MethodPut, `{"window_ms": 2147483647}`, http.StatusOK, 5000},
		{"just below max int32", http.MethodPut, `{"window_ms": 2147483646}`, http.StatusOK, 2147483646},
		{"missing field", http.MethodPut, `{}`, http.StatusBadRequest, 0},
		{"bad json", http.MethodPut, `{"window_ms":`, http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/window", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %v, want %v", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body struct {
				WindowMs int64 `json:"window_ms"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.WindowMs != tt.wantMs {
				t.Errorf("window_ms = %v, want %v", body.WindowMs, tt.wantMs)
			}
			if got := st.Window().Milliseconds(); got != tt.wantMs {
				t.Errorf("store window = %v, want %v", got, tt.wantMs)
			}
		})
	}
}

func TestHandleWindow_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/window", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), 0, fstest.MapFS{}, "", prometheus.NewRegistry(), testLogger())

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodDelete, "/api/window"},
		{http.MethodPatch, "/api/window"},
		{http.MethodPost, "/api/channels"},
		{http.MethodPost, "/api/snapshot"},
		{http.MethodPost, "/api/sse"},
		{http.MethodDelete, "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %v, want %v", rec.Code, http.StatusMethodNotAllowed)
			}
		})
	}
}

func TestHandler_UnknownPathNotFound(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusNotFound)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "pipeplot_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	srv := NewServer(newTestStore(t), testChannels(), 0, nil, "", reg, testLogger())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %v, want %v", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "pipeplot_test_total 1") {
		t.Errorf("metrics body missing counter, got: %s", rec.Body.String())
	}
}

func TestMetricsRoute_Disabled(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusNotFound)
	}
}

func TestNextMessage(t *testing.T) {
	st := newTestStore(t) // one push: seq 1
	srv := newTestServer(t, st)

	t.Run("skips updates covered by the snapshot", func(t *testing.T) {
		last := uint64(1)
		for _, seq := range []uint64{0, 1} {
			if _, send := srv.nextMessage(&last, store.Update{Kind: store.KindReadings, Seq: seq}); send {
				t.Errorf("update %d sent, want skipped", seq)
			}
		}
		if last != 1 {
			t.Errorf("last = %v, want 1", last)
		}
	})

	t.Run("forwards the next update", func(t *testing.T) {
		last := uint64(1)
		msg, send := srv.nextMessage(&last, store.Update{Kind: store.KindWindow, Seq: 2, Window: time.Second})
		if !send {
			t.Fatal("update not sent")
		}
		if msg.Type != typeWindow || msg.Seq != 2 || msg.WindowMs != 1000 {
			t.Errorf("message = %+v, want window update seq 2", msg)
		}
		if last != 2 {
			t.Errorf("last = %v, want 2", last)
		}
	})

	t.Run("resends a snapshot after a gap", func(t *testing.T) {
		if err := st.Push([]series.Reading{{Timestamp: origin.Add(300 * time.Millisecond), Channel: 0, Value: 9}}); err != nil {
			t.Fatalf("Push() error = %v", err)
		}
		st.SetWindow(4 * time.Second) // seq 3

		last := uint64(0)
		msg, send := srv.nextMessage(&last, store.Update{Kind: store.KindWindow, Seq: 3})
		if !send {
			t.Fatal("nothing sent after a gap")
		}
		if msg.Type != typeSnapshot {
			t.Fatalf("Type = %q, want %q", msg.Type, typeSnapshot)
		}
		if msg.Seq != 3 || last != 3 {
			t.Errorf("snapshot Seq = %v, last = %v, want 3", msg.Seq, last)
		}
		if len(msg.Channels[0]) != 2 {
			t.Errorf("channel 0 has %d points, want 2", len(msg.Channels[0]))
		}
	})
}

func TestHandleSSE_NoDuplicateAfterSnapshot(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := st.Push([]series.Reading{{Timestamp: origin.Add(400 * time.Millisecond), Channel: 1, Value: 5}}); err != nil {
		t.Fatalf("Push() error = %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 2 {
		t.Fatalf("got %d events, want snapshot and one update", len(events))
	}
	if events[0].Type != typeSnapshot || events[0].Seq != 1 {
		t.Errorf("first event = %s seq %d, want snapshot seq 1", events[0].Type, events[0].Seq)
	}
	if events[1].Type != typeReadings || events[1].Seq != 2 {
		t.Errorf("second event = %s seq %d, want readings seq 2", events[1].Type, events[1].Seq)
	}
}

func TestHandleSSE_InitialSnapshot(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) == 0 {
		t.Fatalf("expected a snapshot event, got: %s", rec.Body.String())
	}
	if events[0].Type != "snapshot" {
		t.Errorf("first event type = %v, want snapshot", events[0].Type)
	}
	if len(events[0].Channels) != 2 {
		t.Errorf("snapshot channels = %v, want 2", len(events[0].Channels))
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	_ = st.Push([]series.Reading{{Timestamp: origin.Add(400 * time.Millisecond), Channel: 0, Value: 22}})
	st.SetWindow(time.Second)
	st.MarkClosed()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	events := parseSSEEvents(rec.Body.String())
	if len(events) != 4 {
		t.Fatalf("got %d events, want 4: %s", len(events), rec.Body.String())
	}

	readings := events[1]
	if readings.Type != "readings" {
		t.Errorf("event 1 type = %v, want readings", readings.Type)
	}
	if len(readings.Points) != 1 || readings.Points[0] != (Point{Channel: 0, X: 400, Y: 22}) {
		t.Errorf("points = %+v, want one point at x=400", readings.Points)
	}
	if events[2].Type != "window" || events[2].WindowMs != 1000 {
		t.Errorf("event 2 = %+v, want window 1000", events[2])
	}
	if events[3].Type != "closed" || !events[3].Closed {
		t.Errorf("event 3 = %+v, want closed", events[3])
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

// nonFlushWriter is a ResponseWriter that does not implement http.Flusher.
type nonFlushWriter struct {
	header http.Header
	code   int
}

func (n *nonFlushWriter) Header() http.Header {
	if n.header == nil {
		n.header = make(http.Header)
	}
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.code = statusCode
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	w := &nonFlushWriter{}
	srv.handleSSE(w, httptest.NewRequest(http.MethodGet, "/api/sse", nil))

	if w.code != http.StatusInternalServerError {
		t.Errorf("status = %v, want %v", w.code, http.StatusInternalServerError)
	}
}

func TestHandleSSE_Headers(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	rec := httptest.NewRecorder()
	srv.handleSSE(rec, httptest.NewRequest(http.MethodGet, "/api/sse", nil).WithContext(ctx))

	want := map[string]string{
		"Content-Type":  "text/event-stream",
		"Cache-Control": "no-cache",
		"Connection":    "keep-alive",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("header %s = %v, want %v", k, got, v)
		}
	}
}

// TestHandleSSE_ServerShutdownIntegration tests that SSE handlers exit cleanly
// when the server is shut down, using a real HTTP connection.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// derive request context from server context (simulates BaseContext)
		srv.handleSSE(w, r.WithContext(serverCtx))
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	connDone := make(chan error, 1)
	go func() {
		resp, err := ts.Client().Get(ts.URL)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		buf := make([]byte, 1024)
		for {
			if _, err := resp.Body.Read(buf); err != nil {
				connDone <- nil
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	serverCancel()

	select {
	case <-connDone:
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

func TestHandleWS(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap Message
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if snap.Type != "snapshot" {
		t.Errorf("first message type = %v, want snapshot", snap.Type)
	}

	if err := conn.WriteJSON(map[string]int64{"window_ms": 1500}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var win Message
	if err := conn.ReadJSON(&win); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if win.Type != "window" || win.WindowMs != 1500 {
		t.Errorf("message = %+v, want window 1500", win)
	}
	if got := st.Window(); got != 1500*time.Millisecond {
		t.Errorf("store window = %v, want 1.5s", got)
	}

	_ = st.Push([]series.Reading{{Timestamp: origin.Add(time.Second), Channel: 1, Value: 9}})

	var upd Message
	if err := conn.ReadJSON(&upd); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if upd.Type != "readings" || len(upd.Points) != 1 || upd.Points[0].X != 1000 {
		t.Errorf("message = %+v, want one reading at x=1000", upd)
	}
}

func TestHandleWS_IgnoresGarbage(t *testing.T) {
	st := newTestStore(t)
	srv := newTestServer(t, st)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/ws", nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.Close() }()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var snap Message
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
	_ = conn.WriteJSON(map[string]int64{"window_ms": -3})

	var win Message
	if err := conn.ReadJSON(&win); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if win.Type != "window" || win.WindowMs != 5000 {
		t.Errorf("message = %+v, want window fallback 5000", win)
	}
}

// mockAssets is a minimal dashboard filesystem.
func mockAssets() fstest.MapFS {
	return fstest.MapFS{
		"assets/index.html": {Data: []byte("<title>{{.Title}}</title><h1>{{.Title}}</h1>")},
	}
}

func TestHandleDashboard_CustomTitle(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), 0, mockAssets(), "Sensor Feed", nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<title>Sensor Feed</title>") {
		t.Errorf("body = %s, want custom title", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %v, want text/html; charset=utf-8", ct)
	}
}

func TestHandleDashboard_DefaultTitle(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), 0, mockAssets(), "", nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(rec.Body.String(), "<h1>pipeplot</h1>") {
		t.Errorf("body = %s, want default title", rec.Body.String())
	}
}

func TestHandleDashboard_TitleEscaped(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), 0, mockAssets(), "<script>alert('x')</script> & co", nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if strings.Contains(body, "<script>") {
		t.Errorf("title not escaped: %s", body)
	}
	if !strings.Contains(body, "&amp; co") {
		t.Errorf("ampersand not escaped: %s", body)
	}
}

func TestHandleDashboard_NoAssets(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusNotFound)
	}
}

func TestHandleDashboard_NonRootPath(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), 0, mockAssets(), "", nil, testLogger())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %v, want %v", rec.Code, http.StatusNotFound)
	}
}

func TestStart_AvailablePort(t *testing.T) {
	srv := newTestServer(t, newTestStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		t.Fatalf("Start() on available port returned error: %v", err)
	}
	addr := srv.Addr()
	if addr == nil {
		t.Fatal("Addr() = nil after Start")
	}

	port := addr.(*net.TCPAddr).Port
	resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/api/window")
	if err != nil {
		t.Fatalf("GET /api/window error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %v, want %v", resp.StatusCode, http.StatusOK)
	}
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to occupy port: %v", err)
	}
	defer func() { _ = ln.Close() }()
	port := ln.Addr().(*net.TCPAddr).Port

	srv := NewServer(newTestStore(t), testChannels(), port, nil, "", nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	srv := NewServer(newTestStore(t), testChannels(), -1, nil, "", nil, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := srv.Start(ctx); err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}
