package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestNewServer(t *testing.T) {
	s := NewServer("github")
	if s == nil {
		t.Fatal("expected non-nil server")
	}
	if s.ready {
		t.Fatal("new server should not be ready")
	}
	if len(s.checks) != 0 {
		t.Fatal("expected empty checks map")
	}
}

func TestHealthHandler(t *testing.T) {
	s := NewServer("github")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.healthHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected status ok, got %s", body.Status)
	}
	if body.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
	if body.Server != "github" {
		t.Errorf("expected server github, got %s", body.Server)
	}
}

func TestReadyHandler_NotReady(t *testing.T) {
	s := NewServer("github")
	// ready is false by default

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	s.readyHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	var body StatusResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "not ready" {
		t.Errorf("expected 'not ready', got '%s'", body.Status)
	}
}

func TestReadyHandler_Ready(t *testing.T) {
	s := NewServer("github")
	s.SetReady(true)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()

	s.readyHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body StatusResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "ready" {
		t.Errorf("expected 'ready', got '%s'", body.Status)
	}
}

func TestSetReady(t *testing.T) {
	s := NewServer("github")
	if s.ready {
		t.Fatal("should start not ready")
	}

	s.SetReady(true)
	if !s.ready {
		t.Fatal("expected ready after SetReady(true)")
	}

	s.SetReady(false)
	if s.ready {
		t.Fatal("expected not ready after SetReady(false)")
	}
}

func TestRegisterCheck_Passing(t *testing.T) {
	s := NewServer("github")
	s.SetReady(true)

	s.RegisterCheck("database", func() (bool, string) {
		return true, "connected"
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.readyHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body StatusResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "ready" {
		t.Errorf("expected 'ready', got '%s'", body.Status)
	}

	dbCheck, ok := body.Checks["database"]
	if !ok {
		t.Fatal("expected database check in response")
	}
	if dbCheck.Status != "ok" {
		t.Errorf("expected check status 'ok', got '%s'", dbCheck.Status)
	}
	if dbCheck.Message != "connected" {
		t.Errorf("expected message 'connected', got '%s'", dbCheck.Message)
	}
}

func TestRegisterCheck_Failing(t *testing.T) {
	s := NewServer("github")
	s.SetReady(true)

	s.RegisterCheck("redis", func() (bool, string) {
		return false, "connection refused"
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.readyHandler(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}

	var body StatusResponse
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Status != "not ready" {
		t.Errorf("expected 'not ready' with failing check, got '%s'", body.Status)
	}
}

func TestMultipleChecks_MixedStatus(t *testing.T) {
	s := NewServer("github")
	s.SetReady(true)

	s.RegisterCheck("database", func() (bool, string) {
		return true, "connected"
	})
	s.RegisterCheck("cache", func() (bool, string) {
		return false, "timeout"
	})

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	s.readyHandler(w, req)

	resp := w.Result()
	// Should be unavailable because cache check fails
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		input    bool
		expected string
	}{
		{true, "ok"},
		{false, "fail"},
	}

	for _, tt := range tests {
		got := statusString(tt.input)
		if got != tt.expected {
			t.Errorf("statusString(%v) = %s, want %s", tt.input, got, tt.expected)
		}
	}
}

func TestHealthContentType(t *testing.T) {
	s := NewServer("github")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.healthHandler(w, req)

	ct := w.Header().Get("Content-Type")
	if ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestMountedRoutes(t *testing.T) {
	s := NewServer("figma")
	r := chi.NewRouter()
	s.Mount(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 before ready, got %d", w.Code)
	}

	s.SetReady(true)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 once ready, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for POST /health, got %d", w.Code)
	}
}
