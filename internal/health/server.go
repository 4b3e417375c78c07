// Package health serves /health, /ready and /metrics while ddnsweaver runs on a schedule.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusReady    = "ready"
	StatusDegraded = "degraded"
	StatusNotReady = "not_ready"
)

// Checker reports an error when a component cannot serve requests.
type Checker func(ctx context.Context) error

// DegradedChecker reports components that work but need attention, such as
// records whose last sync failed. It returns an empty message when all is well.
type DegradedChecker func(ctx context.Context) (message string)

// ComponentStatus is the health of one registered component.
type ComponentStatus struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// DegradedStatus describes a degraded component.
type DegradedStatus struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Response is the JSON body of /health and /ready.
type Response struct {
	Status     string            `json:"status"`
	Components []ComponentStatus `json:"components,omitempty"`
	Degraded   []DegradedStatus  `json:"degraded,omitempty"`
}

// Server provides /health, /ready, and /metrics endpoints.
type Server struct {
	addr    string
	mux     *http.ServeMux
	server  *http.Server
	logger  *slog.Logger
	timeout time.Duration

	mu               sync.RWMutex
	listener         net.Listener
	checkers         map[string]Checker
	degradedCheckers map[string]DegradedChecker
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTimeout bounds how long /ready waits for all checks.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Server) {
		s.timeout = timeout
	}
}

// WithAddress overrides the listen address derived from the port.
func WithAddress(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// New creates a health server listening on port on all interfaces.
func New(port int, opts ...Option) *Server {
	s := &Server{
		addr:             fmt.Sprintf(":%d", port),
		mux:              http.NewServeMux(),
		logger:           slog.Default(),
		timeout:          10 * time.Second,
		checkers:         make(map[string]Checker),
		degradedCheckers: make(map[string]DegradedChecker),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	return s
}

// RegisterChecker adds a readiness check.
func (s *Server) RegisterChecker(name string, checker Checker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers[name] = checker
	s.logger.Debug("registered health checker", slog.String("name", name))
}

// RegisterDegradedChecker adds a degraded state check.
func (s *Server) RegisterDegradedChecker(name string, checker DegradedChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.degradedCheckers[name] = checker
	s.logger.Debug("registered degraded checker", slog.String("name", name))
}

// RegisterProviders adds one readiness check per provider instance, named
// "provider:<instance>", that pings the provider API.
func (s *Server) RegisterProviders(registry *provider.Registry) {
	for _, p := range registry.All() {
		s.RegisterChecker("provider:"+p.Name(), p.Ping)
	}
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/ready", s.handleReady)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Response{Status: StatusHealthy})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make(map[string]Checker, len(s.checkers))
	for name, checker := range s.checkers {
		checkers[name] = checker
	}
	degradedCheckers := make(map[string]DegradedChecker, len(s.degradedCheckers))
	for name, checker := range s.degradedCheckers {
		degradedCheckers[name] = checker
	}
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	resp := Response{Status: StatusReady}

	for _, name := range sortedKeys(checkers) {
		status := ComponentStatus{Name: name, Healthy: true}
		if err := checkers[name](ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
			resp.Status = StatusNotReady
			s.logger.Warn("health check failed",
				slog.String("component", name),
				slog.String("error", err.Error()),
			)
		}
		resp.Components = append(resp.Components, status)
	}

	for _, name := range sortedKeys(degradedCheckers) {
		if message := degradedCheckers[name](ctx); message != "" {
			resp.Degraded = append(resp.Degraded, DegradedStatus{Name: name, Message: message})
		}
	}

	code := http.StatusOK
	switch {
	case resp.Status == StatusNotReady:
		code = http.StatusServiceUnavailable
	case len(resp.Degraded) > 0:
		// Still functional.
		resp.Status = StatusDegraded
	}

	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// FailingRecords formats a degraded message from the names of failing records.
func FailingRecords(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("last sync failed for %d record(s): %s", len(names), strings.Join(names, ", "))
}

// Start binds the listen address and serves in a background goroutine.
// Bind errors are returned immediately.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("health server listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := s.server
	s.mu.Unlock()

	go func() {
		s.logger.Info("health server starting", slog.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("health server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Addr returns the bound address once started, or the configured address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Shutdown gracefully shuts down the health server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.server
	s.mu.RUnlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
