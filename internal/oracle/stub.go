package oracle

import (
	"context"
	"sync"
)

// Func adapts a plain function to the Oracle interface.
type Func func(ctx context.Context, req CompletionRequest) (string, error)

// Complete implements Oracle.
func (f Func) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// Stub is a deterministic oracle keyed by role. Missing roles fall back to
// Default; a role mapped to an error fails the call. Used by tests and
// offline runs.
type Stub struct {
	mu        sync.Mutex
	Responses map[Role]string
	Errors    map[Role]error
	Default   string
	Calls     []CompletionRequest
}

// Complete implements Oracle.
func (s *Stub) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = append(s.Calls, req)
	if err, ok := s.Errors[req.Role]; ok {
		return "", err
	}
	if resp, ok := s.Responses[req.Role]; ok {
		return resp, nil
	}
	return s.Default, nil
}

// CallCount returns how many calls were made for a role.
func (s *Stub) CallCount(role Role) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.Calls {
		if c.Role == role {
			n++
		}
	}
	return n
}
