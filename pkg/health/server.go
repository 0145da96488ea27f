// Package health serves liveness and readiness endpoints for the HTTP
// transport.
package health

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// Check is the outcome of one readiness check.
type Check struct {
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type StatusResponse struct {
	Status string           `json:"status"`
	Server string           `json:"server,omitempty"`
	Uptime string           `json:"uptime"`
	Checks map[string]Check `json:"checks,omitempty"`
}

// CheckFunc reports whether a dependency is usable, with a short message.
type CheckFunc func() (bool, string)

// Server tracks readiness for one MCP server.
type Server struct {
	name      string
	mu        sync.RWMutex
	ready     bool
	checks    map[string]CheckFunc
	startTime time.Time
}

func NewServer(name string) *Server {
	return &Server{
		name:      name,
		checks:    make(map[string]CheckFunc),
		startTime: time.Now(),
	}
}

// RegisterCheck adds a readiness check, replacing one with the same name.
func (s *Server) RegisterCheck(name string, fn CheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

func (s *Server) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Mount registers /health and /ready on r.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.healthHandler)
	r.Get("/ready", s.readyHandler)
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Status: "ok",
		Server: s.name,
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	fns := make(map[string]CheckFunc, len(s.checks))
	for k, v := range s.checks {
		fns[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]Check, len(names))
	for _, name := range names {
		ok, msg := fns[name]()
		if !ok {
			ready = false
		}
		checks[name] = Check{Name: name, Status: statusString(ok), Message: msg, Timestamp: time.Now()}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, StatusResponse{
		Status: status,
		Server: s.name,
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
		Checks: checks,
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func statusString(ok bool) string {
	if ok {
		return "ok"
	}
	return "fail"
}
