package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jpalmerr/pipeplot/internal/series"
	"github.com/jpalmerr/pipeplot/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxWindowBody limits PUT /api/window request bodies.
	maxWindowBody = 1 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "pipeplot"

	// titlePlaceholder is the marker in HTML that gets replaced with the actual title.
	titlePlaceholder = "{{.Title}}"
)

// Channel describes one plotted series.
type Channel struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Pattern string `json:"pattern"`
	Color   string `json:"color"`
}

// Server handles HTTP requests for the dashboard and its API.
//
// Routes:
//   - GET /: the embedded dashboard
//   - GET /api/channels: channel names, patterns and colours
//   - GET /api/snapshot: the readings currently in the window
//   - GET, PUT /api/window: read or change the window length
//   - GET /api/sse: Server-Sent Events stream of updates
//   - GET /api/ws: websocket stream of updates, accepting window changes
//   - GET /metrics: Prometheus metrics, when a gatherer is configured
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	channels   []Channel
	port       int
	assets     fs.FS
	title      string
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	httpServer *http.Server

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store holding the windowed series
//   - channels: Channel descriptions, indexed by channel
//   - port: TCP port to listen on (0 picks a free port)
//   - assets: Embedded filesystem containing dashboard assets (may be nil)
//   - title: Dashboard title (defaults to "pipeplot" if empty)
//   - gatherer: Source for /metrics (may be nil)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, channels []Channel, port int, assets fs.FS, title string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	return &Server{
		store:    st,
		channels: channels,
		port:     port,
		assets:   assets,
		title:    title,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// registered with full paths on the root router so method mismatches
	// answer 405
	r.HandleFunc("/api/channels", s.handleChannels).Methods(http.MethodGet)
	r.HandleFunc("/api/snapshot", s.handleSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/api/window", s.handleGetWindow).Methods(http.MethodGet)
	r.HandleFunc("/api/window", s.handleSetWindow).Methods(http.MethodPut, http.MethodPost)
	r.HandleFunc("/api/sse", s.handleSSE).Methods(http.MethodGet)
	r.HandleFunc("/api/ws", s.handleWS).Methods(http.MethodGet)

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	if s.assets != nil {
		r.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	}

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// handleDashboard serves the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	content, err := fs.ReadFile(s.assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	// apply title substitution with HTML escaping to prevent XSS
	title := s.title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err = w.Write([]byte(rendered)); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

func (s *Server) handleChannels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.channels)
}

// handleSnapshot returns the current window. An optional window_ms query
// parameter cuts the snapshot with a different length; out-of-range values
// fall back to the default window.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	var window time.Duration
	if raw := r.URL.Query().Get("window_ms"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "window_ms must be an integer", http.StatusBadRequest)
			return
		}
		window = series.ClampWindow(ms)
	}

	s.writeJSON(w, http.StatusOK, s.snapshotMessage(s.store.Snapshot(window)))
}

type windowBody struct {
	WindowMs *int64 `json:"window_ms"`
}

func (s *Server) handleGetWindow(w http.ResponseWriter, _ *http.Request) {
	ms := s.store.Window().Milliseconds()
	s.writeJSON(w, http.StatusOK, windowBody{WindowMs: &ms})
}

// handleSetWindow applies a new window length. Values that are not positive
// or do not fit a 32-bit millisecond count fall back to the default.
func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var body windowBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWindowBody)).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.WindowMs == nil {
		http.Error(w, "window_ms is required", http.StatusBadRequest)
		return
	}

	d := s.applyWindow(*body.WindowMs)
	ms := d.Milliseconds()
	s.writeJSON(w, http.StatusOK, windowBody{WindowMs: &ms})
}

func (s *Server) applyWindow(ms int64) time.Duration {
	d := series.ClampWindow(ms)
	s.store.SetWindow(d)
	s.logger.Info("window changed", "requested_ms", ms, "window", d)
	return d
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleSSE streams updates via Server-Sent Events.
//
// The first event is a full snapshot. The handler uses write deadlines to
// prevent goroutine leaks when clients are slow or disconnected. Without
// deadlines, a blocked Fprintf call would prevent the handler from
// detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		// ResponseController.Flush respects the write deadline
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot so no update falls between the two
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	snap := s.store.Snapshot(0)
	last := snap.Seq
	data, err := json.Marshal(s.snapshotMessage(snap))
	if err != nil {
		s.logger.Error("failed to encode snapshot", "error", err)
		return
	}
	if err := writeAndFlush(data); err != nil {
		return
	}

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
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				s.logger.Warn("sse client dropped", "error", err)
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
