// Package testutil holds test doubles shared across packages.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Response is one canned reply of a StubTransport.
type Response struct {
	// Body is JSON-encoded and decoded into the caller's out value.
	Body any

	// Err is returned instead of a body.
	Err error

	// Gate, when set, blocks the call until it is closed or the call's
	// context ends.
	Gate <-chan struct{}
}

// StubTransport serves canned responses keyed by method and path.
//
// Each route replays its responses in order; the last one repeats.
//
// Thread-safety: all methods are safe for concurrent use.
type StubTransport struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     map[string]int
	bodies    map[string][]json.RawMessage
}

// NewStubTransport creates a stub with no routes.
func NewStubTransport() *StubTransport {
	return &StubTransport{
		responses: make(map[string][]Response),
		calls:     make(map[string]int),
		bodies:    make(map[string][]json.RawMessage),
	}
}

func routeKey(method, path string) string {
	return method + " " + path
}

// On appends responses for a route.
func (s *StubTransport) On(method, path string, responses ...Response) *StubTransport {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := routeKey(method, path)
	s.responses[key] = append(s.responses[key], responses...)
	return s
}

// Calls returns how many requests hit a route.
func (s *StubTransport) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[routeKey(method, path)]
}

// Bodies returns the JSON request bodies sent to a route.
func (s *StubTransport) Bodies(method, path string) []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.bodies[routeKey(method, path)]...)
}

// Get implements the client transport.
func (s *StubTransport) Get(ctx context.Context, path string, out any) error {
	return s.do(ctx, http.MethodGet, path, nil, out)
}

// Post implements the client transport.
func (s *StubTransport) Post(ctx context.Context, path string, body, out any) error {
	return s.do(ctx, http.MethodPost, path, body, out)
}

func (s *StubTransport) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := s.next(method, path, body)
	if err != nil {
		return err
	}

	if resp.Gate != nil {
		select {
		case <-resp.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if resp.Err != nil {
		return resp.Err
	}
	if out == nil || resp.Body == nil {
		return nil
	}

	data, err := json.Marshal(resp.Body)
	if err != nil {
		return fmt.Errorf("stub %s %s: encode body: %w", method, path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("stub %s %s: decode body: %w", method, path, err)
	}
	return nil
}

func (s *StubTransport) next(method, path string, body any) (Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := routeKey(method, path)
	s.calls[key]++

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("stub %s: encode request: %w", key, err)
		}
		s.bodies[key] = append(s.bodies[key], data)
	}

	queue := s.responses[key]
	if len(queue) == 0 {
		return Response{}, fmt.Errorf("stub: no response for %s", key)
	}
	resp := queue[0]
	if len(queue) > 1 {
		s.responses[key] = queue[1:]
	}
	return resp, nil
}
