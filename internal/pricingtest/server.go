package pricingtest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Server is a fake pricing host serving the fixtures.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	docs     map[string]string
	statuses map[string]int
	gates    map[string]chan struct{}
	hits     map[string]int
}

// NewServer starts a fake pricing host; it is closed when the test ends.
func NewServer(t testing.TB) *Server {
	s := &Server{
		docs:     Documents(),
		statuses: map[string]int{},
		gates:    map[string]chan struct{}{},
		hits:     map[string]int{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.hits[r.URL.Path]++
	body, ok := s.docs[r.URL.Path]
	status, failing := s.statuses[r.URL.Path]
	gate := s.gates[r.URL.Path]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case failing:
		w.WriteHeader(status)
	case !ok:
		http.NotFound(w, r)
	default:
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

// Set replaces the body served at path.
func (s *Server) Set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[path] = body
}

// Fail makes path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[path] = status
}

// Hold delays responses for path until the returned func is called.
func (s *Server) Hold(path string) (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gates[path] = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.gates, path)
			s.mu.Unlock()
			close(gate)
		})
	}
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}
