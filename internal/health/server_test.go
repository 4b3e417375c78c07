package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gitlab.bluewillows.net/root/ddnsweaver/pkg/provider"
)

func newTestServer(opts ...Option) *Server {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return New(0, opts...)
}

func getReady(t *testing.T, s *Server) (int, Response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w.Code, resp
}

func TestServer_Health(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, resp.Status)
	}
}

func TestServer_Ready_NoCheckers(t *testing.T) {
	code, resp := getReady(t, newTestServer())

	if code != http.StatusOK {
		t.Errorf("expected status 200, got %d", code)
	}
	if resp.Status != StatusReady {
		t.Errorf("expected status %q, got %q", StatusReady, resp.Status)
	}
}

func TestServer_Ready_SomeUnhealthy(t *testing.T) {
	s := newTestServer()
	s.RegisterChecker("provider:b", func(context.Context) error { return errors.New("token rejected") })
	s.RegisterChecker("provider:a", func(context.Context) error { return nil })

	code, resp := getReady(t, s)

	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if resp.Status != StatusNotReady {
		t.Errorf("expected status %q, got %q", StatusNotReady, resp.Status)
	}
	if len(resp.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(resp.Components))
	}
	// Components are reported in name order.
	if resp.Components[0].Name != "provider:a" || !resp.Components[0].Healthy {
		t.Errorf("unexpected first component: %+v", resp.Components[0])
	}
	if resp.Components[1].Healthy || resp.Components[1].Error != "token rejected" {
		t.Errorf("unexpected second component: %+v", resp.Components[1])
	}
}

func TestServer_Ready_Degraded(t *testing.T) {
	s := newTestServer()
	s.RegisterChecker("provider:a", func(context.Context) error { return nil })
	s.RegisterDegradedChecker("records", func(context.Context) string {
		return FailingRecords([]string{"home.example.com"})
	})

	code, resp := getReady(t, s)

	if code != http.StatusOK {
		t.Errorf("expected status 200 while degraded, got %d", code)
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected status %q, got %q", StatusDegraded, resp.Status)
	}
	if len(resp.Degraded) != 1 || !strings.Contains(resp.Degraded[0].Message, "home.example.com") {
		t.Errorf("unexpected degraded list: %+v", resp.Degraded)
	}
}

func TestServer_Ready_NotDegradedWhenMessageEmpty(t *testing.T) {
	s := newTestServer()
	s.RegisterDegradedChecker("records", func(context.Context) string { return FailingRecords(nil) })

	code, resp := getReady(t, s)
	if code != http.StatusOK || resp.Status != StatusReady {
		t.Errorf("expected ready, got %d %q", code, resp.Status)
	}
}

func TestServer_Ready_Timeout(t *testing.T) {
	s := newTestServer(WithTimeout(50 * time.Millisecond))
	s.RegisterChecker("provider:slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Second):
			return nil
		}
	})

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable || resp.Status != StatusNotReady {
		t.Errorf("expected not ready after timeout, got %d %q", code, resp.Status)
	}
}

type pingOnlyProvider struct {
	name string
	err  error
}

func (p *pingOnlyProvider) Name() string { return p.name }
func (p *pingOnlyProvider) Type() string { return "mock" }
func (p *pingOnlyProvider) Ping(context.Context) error {
	return p.err
}
func (p *pingOnlyProvider) ListRecords(context.Context, string) ([]provider.Record, error) {
	return nil, nil
}
func (p *pingOnlyProvider) CreateRecord(_ context.Context, r provider.Record) (provider.Record, error) {
	return r, nil
}
func (p *pingOnlyProvider) UpdateRecord(context.Context, string, provider.Record) error {
	return nil
}

func TestServer_RegisterProviders(t *testing.T) {
	registry := provider.NewRegistry()
	registry.RegisterFactory("mock", func(name string, config map[string]string) (provider.Provider, error) {
		var err error
		if config["FAIL"] == "true" {
			err = provider.ErrUnauthorized
		}
		return &pingOnlyProvider{name: name, err: err}, nil
	})
	if _, err := registry.CreateInstance("cloudflare-0", "mock", nil); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	if _, err := registry.CreateInstance("cloudflare-1", "mock", map[string]string{"FAIL": "true"}); err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}

	s := newTestServer()
	s.RegisterProviders(registry)

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", code)
	}
	if len(resp.Components) != 2 || resp.Components[1].Name != "provider:cloudflare-1" || resp.Components[1].Healthy {
		t.Errorf("unexpected components: %+v", resp.Components)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector metrics in output")
	}
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := newTestServer(WithAddress("127.0.0.1:0"))
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestServer_StartBindError(t *testing.T) {
	first := newTestServer(WithAddress("127.0.0.1:0"))
	if err := first.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() { _ = first.Shutdown(context.Background()) }()

	second := newTestServer(WithAddress(first.Addr()))
	if err := second.Start(); err == nil {
		t.Error("expected bind error for an address in use")
		_ = second.Shutdown(context.Background())
	}
}
