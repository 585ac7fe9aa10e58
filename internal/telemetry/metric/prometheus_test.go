package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if r.ListenerUp == nil || r.PortAdjustments == nil || r.RequestsTotal == nil {
		t.Error("registry metrics should be initialized")
	}
}

func TestRegistry_ListenerMetrics(t *testing.T) {
	r := NewRegistry()

	r.ListenerUp.WithLabelValues("http").Set(1)
	r.ListenerPort.WithLabelValues("http").Set(8080)
	r.ListenerRestarts.WithLabelValues("http").Inc()

	if got := testutil.ToFloat64(r.ListenerUp.WithLabelValues("http")); got != 1 {
		t.Errorf("listener_up = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.ListenerPort.WithLabelValues("http")); got != 8080 {
		t.Errorf("listener_port = %v, want 8080", got)
	}
	if got := testutil.ToFloat64(r.ListenerRestarts.WithLabelValues("http")); got != 1 {
		t.Errorf("listener_restarts_total = %v, want 1", got)
	}
}

func TestRegistry_PortAdjustments(t *testing.T) {
	r := NewRegistry()

	r.PortAdjustments.Inc()
	r.PortAdjustments.Inc()

	if got := testutil.ToFloat64(r.PortAdjustments); got != 2 {
		t.Errorf("port_adjustments_total = %v, want 2", got)
	}
}

func TestRegistry_Handler(t *testing.T) {
	r := NewRegistry()
	r.ListenerUp.WithLabelValues("https").Set(1)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	if !strings.Contains(string(raw), "webpanel_listener_up") {
		t.Errorf("exposition should contain webpanel_listener_up, got:\n%s", raw)
	}
}
