package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eb3nezer/mqtt-fan/internal/fan"
)

const (
	// shutdownTimeout bounds how long Close waits for in-flight requests.
	shutdownTimeout = 5 * time.Second

	// healthTimeout bounds each dependency check behind /health.
	healthTimeout = 2 * time.Second

	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// HealthChecker reports whether a dependency is usable.
// The mqtt, database and influxdb clients satisfy it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HistorySource returns recent fan transitions, newest first.
// *fan.SQLiteHistory satisfies it.
type HistorySource interface {
	Recent(ctx context.Context, limit int) ([]fan.HistoryEntry, error)
}

type namedCheck struct {
	name  string
	check HealthChecker
}

// Server exposes the indicator over HTTP: a JSON snapshot and a websocket stream.
type Server struct {
	addr   string
	light  *Light
	hub    *Hub
	logger Logger

	checks  []namedCheck
	history HistorySource

	server   *http.Server
	listener net.Listener
}

// NewServer creates a status server. It is not listening until Start is called.
func NewServer(addr string, light *Light, hub *Hub) *Server {
	return &Server{
		addr:   addr,
		light:  light,
		hub:    hub,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// AddHealthCheck includes a dependency in the /health report.
// Call before Start.
func (s *Server) AddHealthCheck(name string, check HealthChecker) {
	s.checks = append(s.checks, namedCheck{name: name, check: check})
}

// SetHistory enables the /history endpoint. Call before Start.
func (s *Server) SetHistory(history HistorySource) {
	s.history = history
}

// Handler returns the router. Exposed for tests.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/history", s.handleHistory)
	r.Handle("/ws", s.hub)
	return r
}

// Start binds the listen address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("status server listen on %s: %w", s.addr, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("status server error", "error", err)
		}
	}()

	s.logger.Info("status server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Close shuts the server down and disconnects websocket clients.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	s.hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down status server: %w", err)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	rate := s.light.Rate()
	writeJSON(w, http.StatusOK, BlinkPayload{RateHz: rate, Blinking: rate > 0})
}

// handleHealth reports each registered dependency. Any failure answers 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	overall, code := "ok", http.StatusOK
	checks := make(map[string]string, len(s.checks))

	for _, c := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		err := c.check.HealthCheck(ctx)
		cancel()

		if err != nil {
			checks[c.name] = err.Error()
			overall, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[c.name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

// handleHistory returns recent fan transitions.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "state history unavailable"})
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	entries, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("loading state history", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load state history"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": entries,
		"count":   len(entries),
	})
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, errors.New("limit exceeds maximum")
	}
	return limit, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // Client gone; nothing to do
}
