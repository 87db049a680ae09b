package langclient

import "sync"

// DiagnosticStore is an in-memory DiagnosticsSink for hosts without their
// own diagnostics collection. Reads return copies.
type DiagnosticStore struct {
	mu          sync.RWMutex
	diagnostics map[DocumentURI][]Diagnostic
}

// NewDiagnosticStore creates an empty store.
func NewDiagnosticStore() *DiagnosticStore {
	return &DiagnosticStore{diagnostics: make(map[DocumentURI][]Diagnostic)}
}

// Set replaces the diagnostics for a resource atomically.
func (s *DiagnosticStore) Set(uri DocumentURI, diagnostics []Diagnostic) {
	stored := make([]Diagnostic, len(diagnostics))
	copy(stored, diagnostics)

	s.mu.Lock()
	s.diagnostics[uri] = stored
	s.mu.Unlock()
}

// Delete removes the diagnostics for a resource.
func (s *DiagnosticStore) Delete(uri DocumentURI) {
	s.mu.Lock()
	delete(s.diagnostics, uri)
	s.mu.Unlock()
}

// Clear removes all diagnostics.
func (s *DiagnosticStore) Clear() {
	s.mu.Lock()
	s.diagnostics = make(map[DocumentURI][]Diagnostic)
	s.mu.Unlock()
}

// Get returns a copy of the diagnostics for a resource.
func (s *DiagnosticStore) Get(uri DocumentURI) ([]Diagnostic, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.diagnostics[uri]
	if !ok {
		return nil, false
	}
	result := make([]Diagnostic, len(stored))
	copy(result, stored)
	return result, true
}

// URIs returns the resources that currently have diagnostics.
func (s *DiagnosticStore) URIs() []DocumentURI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	uris := make([]DocumentURI, 0, len(s.diagnostics))
	for uri := range s.diagnostics {
		uris = append(uris, uri)
	}
	return uris
}
