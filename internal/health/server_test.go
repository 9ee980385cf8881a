package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"gitlab.bluewillows.net/root/aliddns/internal/metrics"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

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
	s := New(0)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var resp Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != StatusHealthy {
		t.Errorf("expected status %q, got %q", StatusHealthy, resp.Status)
	}
}

func TestServer_Ready(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]HealthChecker
		degraded   map[string]DegradedChecker
		wantCode   int
		wantStatus string
	}{
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checkers: map[string]HealthChecker{
				"provider:alidns": func(context.Context) error { return nil },
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusReady,
		},
		{
			name: "provider unreachable",
			checkers: map[string]HealthChecker{
				"provider:alidns": func(context.Context) error { return errors.New("connection refused") },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusNotReady,
		},
		{
			name: "last cycle failed",
			checkers: map[string]HealthChecker{
				"provider:alidns": func(context.Context) error { return nil },
			},
			degraded: map[string]DegradedChecker{
				"reconciler": func(context.Context) (bool, string) { return true, "last cycle failed" },
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name: "not ready wins over degraded",
			checkers: map[string]HealthChecker{
				"provider:alidns": func(context.Context) error { return errors.New("denied") },
			},
			degraded: map[string]DegradedChecker{
				"reconciler": func(context.Context) (bool, string) { return true, "last cycle failed" },
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusNotReady,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(0)
			for name, c := range tt.checkers {
				s.RegisterChecker(name, c)
			}
			for name, c := range tt.degraded {
				s.RegisterDegradedChecker(name, c)
			}

			code, resp := getReady(t, s)
			if code != tt.wantCode {
				t.Errorf("status code = %d, want %d", code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantStatus)
			}
			if len(resp.Components) != len(tt.checkers) {
				t.Errorf("components = %d, want %d", len(resp.Components), len(tt.checkers))
			}
		})
	}
}

func TestServer_ReadyComponentsSorted(t *testing.T) {
	s := New(0)
	for _, name := range []string{"zeta", "alpha", "mid"} {
		s.RegisterChecker(name, func(context.Context) error { return nil })
	}

	_, resp := getReady(t, s)
	var names []string
	for _, c := range resp.Components {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "alpha,mid,zeta" {
		t.Errorf("components = %v, want sorted", names)
	}
}

func TestServer_ReadyTimeout(t *testing.T) {
	s := New(0, WithTimeout(50*time.Millisecond))

	s.RegisterChecker("provider:slow", func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	})

	code, resp := getReady(t, s)
	if code != http.StatusServiceUnavailable || resp.Status != StatusNotReady {
		t.Errorf("got %d %q, want 503 %q", code, resp.Status, StatusNotReady)
	}
}

func TestProviderChecker_SetsGauge(t *testing.T) {
	var pingErr error
	check := ProviderChecker(pingerFunc(func(context.Context) error { return pingErr }))

	if err := check(context.Background()); err != nil {
		t.Fatalf("check() error: %v", err)
	}
	if got := testutil.ToFloat64(metrics.ProviderHealthy); got != 1 {
		t.Errorf("provider_healthy = %f, want 1", got)
	}

	pingErr = errors.New("InvalidAccessKeyId.NotFound")
	if err := check(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	if got := testutil.ToFloat64(metrics.ProviderHealthy); got != 0 {
		t.Errorf("provider_healthy = %f, want 0", got)
	}
}

func TestDegradedWhenFailing(t *testing.T) {
	ok := DegradedWhenFailing(func(context.Context) error { return nil })
	if degraded, _ := ok(context.Background()); degraded {
		t.Error("passing check should not be degraded")
	}

	failing := DegradedWhenFailing(func(context.Context) error { return errors.New("last cycle failed") })
	degraded, msg := failing(context.Background())
	if !degraded || msg != "last cycle failed" {
		t.Errorf("got (%v, %q)", degraded, msg)
	}
}

func TestServer_StartServesMetrics(t *testing.T) {
	metrics.SetBuildInfo("test", "go1.22")

	s := New(0)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	port := s.Addr().(*net.TCPAddr).Port
	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", port))
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "aliddns_build_info") {
		t.Error("metrics output missing aliddns_build_info")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	if err := New(0).Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error: %v", err)
	}
}
