package mocks

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	go_json "github.com/goccy/go-json"
)

// MockRevalidationAPI provides a mock implementation of the site's
// revalidation API
type MockRevalidationAPI struct {
	Server   *httptest.Server
	mu       sync.Mutex
	callLog  []APICall
	behavior APIBehavior
}

// Invalidation is the request body the API accepts
type Invalidation struct {
	Type      string `json:"type"`
	Tag       string `json:"tag,omitempty"`
	Path      string `json:"path,omitempty"`
	Scope     string `json:"scope,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// APICall logs API calls for verification
type APICall struct {
	Method        string
	Path          string
	Authorization string
	Body          Invalidation
	Time          time.Time
	Response      int
}

// APIBehavior controls mock API behavior
type APIBehavior struct {
	// Token is the bearer token required on every request (empty = none)
	Token string

	// FailTags makes invalidations of these tags return FailStatus
	FailTags []string

	// FailPaths makes invalidations of these paths return FailStatus
	FailPaths []string

	// FailStatus is the status code for failing invalidations (0 = 500)
	FailStatus int

	// Delay adds artificial latency to every response
	Delay time.Duration
}

// NewMockRevalidationAPI creates a new mock API server
func NewMockRevalidationAPI() *MockRevalidationAPI {
	mock := &MockRevalidationAPI{
		callLog: make([]APICall, 0),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/revalidate", mock.handleInvalidate)

	mock.Server = httptest.NewServer(mux)
	return mock
}

// Close stops the mock server
func (m *MockRevalidationAPI) Close() {
	m.Server.Close()
}

// URL returns the invalidation endpoint URL
func (m *MockRevalidationAPI) URL() string {
	return m.Server.URL + "/api/revalidate"
}

// GetCallLog returns all API calls made
func (m *MockRevalidationAPI) GetCallLog() []APICall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]APICall{}, m.callLog...)
}

// Invalidated returns the successfully invalidated targets as kind:value
// strings, in call order
func (m *MockRevalidationAPI) Invalidated() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.callLog))
	for _, call := range m.callLog {
		if call.Response != http.StatusOK {
			continue
		}
		out = append(out, call.Body.target())
	}
	return out
}

// SetBehavior configures mock API behavior
func (m *MockRevalidationAPI) SetBehavior(behavior APIBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behavior = behavior
}

// Reset clears the call log
func (m *MockRevalidationAPI) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLog = make([]APICall, 0)
}

func (m *MockRevalidationAPI) logCall(r *http.Request, body Invalidation, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callLog = append(m.callLog, APICall{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          body,
		Time:          time.Now(),
		Response:      status,
	})
}

func (m *MockRevalidationAPI) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.mu.Lock()
	behavior := m.behavior
	m.mu.Unlock()

	if behavior.Delay > 0 {
		time.Sleep(behavior.Delay)
	}

	var body Invalidation
	if err := go_json.NewDecoder(r.Body).Decode(&body); err != nil {
		m.logCall(r, body, http.StatusBadRequest)
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	if behavior.Token != "" && r.Header.Get("Authorization") != "Bearer "+behavior.Token {
		m.logCall(r, body, http.StatusUnauthorized)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if behavior.fails(body) {
		status := behavior.FailStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		m.logCall(r, body, status)
		http.Error(w, "Invalidation failed", status)
		return
	}

	m.logCall(r, body, http.StatusOK)
	w.Header().Set("Content-Type", "application/json")
	_ = go_json.NewEncoder(w).Encode(map[string]any{"revalidated": true})
}

func (b APIBehavior) fails(body Invalidation) bool {
	switch body.Type {
	case "tag":
		return contains(b.FailTags, body.Tag)
	case "path":
		return contains(b.FailPaths, body.Path)
	}
	return false
}

func (i Invalidation) target() string {
	if i.Type == "path" {
		if i.Scope == "layout" {
			return "path:" + i.Path + " (layout)"
		}
		return "path:" + i.Path
	}
	return "tag:" + i.Tag
}

func contains(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}
