// Package platformtest provides a recording mock platform for adapter tests.
package platformtest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Call is one request the mock received.
type Call struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded request body.
func (c Call) JSON(t *testing.T) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal(c.Body, &v); err != nil {
		t.Fatalf("decode body of %s %s: %v", c.Method, c.Path, err)
	}
	return v
}

// Route answers one "METHOD /path" key.
type Route func(w http.ResponseWriter, r *http.Request, body []byte)

// Server is an httptest server that records every call and dispatches on
// "METHOD /escaped/path". Unknown routes answer 404 with a JSON message.
type Server struct {
	*httptest.Server

	mu     sync.Mutex
	calls  []Call
	routes map[string]Route
}

// NewServer starts a mock platform and closes it with the test.
func NewServer(t *testing.T) *Server {
	t.Helper()
	s := &Server{routes: make(map[string]Route)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Handle registers a route for method and escaped path.
func (s *Server) Handle(method, path string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[method+" "+path] = route
}

// JSON registers a route answering status with body encoded as JSON.
func (s *Server) JSON(method, path string, status int, body any) {
	s.Handle(method, path, func(w http.ResponseWriter, _ *http.Request, _ []byte) {
		Reply(w, status, body)
	})
}

// Calls returns a copy of the recorded calls.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallCount is the number of requests received so far.
func (s *Server) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	path := r.URL.EscapedPath()

	s.mu.Lock()
	s.calls = append(s.calls, Call{
		Method: r.Method,
		Path:   path,
		Query:  r.URL.Query(),
		Header: r.Header.Clone(),
		Body:   body,
	})
	route, ok := s.routes[r.Method+" "+path]
	s.mu.Unlock()

	if !ok {
		Reply(w, http.StatusNotFound, map[string]any{"message": "not found"})
		return
	}
	route(w, r, body)
}

// Reply writes body as JSON with the given status. A string body is
// written verbatim.
func Reply(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	switch b := body.(type) {
	case nil:
	case string:
		_, _ = io.WriteString(w, b)
	default:
		_ = json.NewEncoder(w).Encode(b)
	}
}
