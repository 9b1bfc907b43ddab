package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/sraza-onshape/OnshapeExperiments/internal/platform"
)

type (
	// MockPlatform is an in-process platform.Client with per-route stubs
	MockPlatform struct {
		handlers map[string]PlatformHandler
		requests []platform.Request
		mu       sync.Mutex
	}

	// PlatformHandler answers a stubbed platform route
	PlatformHandler func(*platform.Request) (*platform.Response, error)
)

var _ platform.Client = (*MockPlatform)(nil)

// NewMockPlatform creates a mock whose unstubbed routes answer 404
func NewMockPlatform() *MockPlatform {
	return &MockPlatform{
		handlers: map[string]PlatformHandler{},
	}
}

// Do records the request and dispatches it to the stub for its route
func (m *MockPlatform) Do(
	_ context.Context, req *platform.Request,
) (*platform.Response, error) {
	key := routeKey(req.Verb, req.Path)

	m.mu.Lock()
	m.requests = append(m.requests, *req)
	h, ok := m.handlers[key]
	m.mu.Unlock()

	if !ok {
		return &platform.Response{Status: http.StatusNotFound},
			fmt.Errorf("%w: HTTP 404: no stub for %s",
				platform.ErrHTTPStatus, key)
	}
	return h(req)
}

// SetJSON stubs a route with a 200 JSON body
func (m *MockPlatform) SetJSON(verb, path, body string) {
	m.SetHandler(verb, path, func(*platform.Request) (*platform.Response, error) {
		return &platform.Response{
			Status:      http.StatusOK,
			ContentType: "application/json",
			Body:        []byte(body),
		}, nil
	})
}

// SetError stubs a route with a transport error
func (m *MockPlatform) SetError(verb, path string, err error) {
	m.SetHandler(verb, path, func(*platform.Request) (*platform.Response, error) {
		return nil, err
	})
}

// SetHandler stubs a route with custom behavior
func (m *MockPlatform) SetHandler(verb, path string, h PlatformHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[routeKey(verb, path)] = h
}

// Calls counts the requests made to a route
func (m *MockPlatform) Calls(verb, path string) int {
	key := routeKey(verb, path)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.requests {
		if routeKey(r.Verb, r.Path) == key {
			n++
		}
	}
	return n
}

// Requests returns every recorded request in call order
func (m *MockPlatform) Requests() []platform.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]platform.Request, len(m.requests))
	copy(res, m.requests)
	return res
}

func routeKey(verb, path string) string {
	return strings.ToUpper(verb) + " " + strings.TrimPrefix(path, "/")
}

// ToJSON marshals a recorded request body so tests can query it
func ToJSON(t *testing.T, body any) gjson.Result {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return gjson.ParseBytes(data)
}
