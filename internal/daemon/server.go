// Package daemon exposes the tracker to the browser shim and the CLI over
// local HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/runnerr0/domaintime/internal/browser"
	"github.com/runnerr0/domaintime/internal/tracker"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second

	// DefaultMaxRequestSize bounds request bodies when Options leaves it unset.
	DefaultMaxRequestSize = 1 << 20
)

// Tracker is the tracker surface the daemon drives.
type Tracker interface {
	Startup(reason string)
	TabActivated()
	TabUpdated(tab tracker.Tab, change tracker.Change)
	WindowFocusChanged(id tracker.WindowID)
	IdleStateChanged(state tracker.IdleState)
	TabRemoved(id tracker.TabID)
	TabDetached(id tracker.TabID)
	Status(ctx context.Context) (tracker.Status, error)
}

// Options configures a Server. Tracker, Registry, and Hub are required.
type Options struct {
	Tracker        Tracker
	Registry       *browser.Registry
	Hub            *browser.Hub
	Logger         *slog.Logger
	AuthToken      string
	MaxRequestSize int64
	Version        string
}

// Server routes browser events into the registry and tracker.
type Server struct {
	tracker   Tracker
	registry  *browser.Registry
	hub       *browser.Hub
	logger    *slog.Logger
	authToken string
	maxBody   int64
	version   string
}

// New returns a Server.
func New(opts Options) (*Server, error) {
	if opts.Tracker == nil || opts.Registry == nil || opts.Hub == nil {
		return nil, errors.New("daemon: tracker, registry, and hub are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxRequestSize <= 0 {
		opts.MaxRequestSize = DefaultMaxRequestSize
	}
	return &Server{
		tracker:   opts.Tracker,
		registry:  opts.Registry,
		hub:       opts.Hub,
		logger:    opts.Logger,
		authToken: opts.AuthToken,
		maxBody:   opts.MaxRequestSize,
		version:   opts.Version,
	}, nil
}

// Handler returns the daemon's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.Handle("POST /events", s.authorized(http.HandlerFunc(s.handleEvent)))
	mux.Handle("POST /message", s.authorized(http.HandlerFunc(s.handleMessage)))
	mux.Handle("GET /config", s.authorized(http.HandlerFunc(s.handleConfig)))
	mux.Handle("GET /ws", s.authorized(s.hub))
	return s.logged(mux)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("daemon listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		s.logger.Info("daemon stopped")
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	}
}

type healthResponse struct {
	OK        bool   `json:"ok"`
	Version   string `json:"version"`
	Clients   int    `json:"clients"`
	Indicator *bool  `json:"indicator,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{OK: true, Version: s.version, Clients: s.hub.ClientCount()}
	if active, known := s.hub.Active(); known {
		resp.Indicator = &active
	}
	writeJSON(w, http.StatusOK, resp)
}

type configResponse struct {
	IdleDetectionSeconds int `json:"idleDetectionSeconds"`
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, configResponse{IdleDetectionSeconds: s.registry.IdleDetectionSeconds()})
}

// Message is a request on the runtime message channel.
type Message struct {
	Type string `json:"type"`
}

// MessageGetCurrentTracking asks for the live tracking snapshot.
const MessageGetCurrentTracking = "getCurrentTracking"

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if !s.decode(w, r, &msg) {
		return
	}
	if msg.Type != MessageGetCurrentTracking {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown message type %q", msg.Type))
		return
	}

	st, err := s.tracker.Status(r.Context())
	if err != nil {
		if errors.Is(err, tracker.ErrStopped) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// decode reads a bounded JSON body into v, writing the error response on
// failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
