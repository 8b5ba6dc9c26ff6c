// Package testutil provides mock servers and fakes shared across package
// tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

// MockSchoologyServer mocks the Schoology REST API.
type MockSchoologyServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
}

// NewMockSchoologyServer creates a mock Schoology API server. Unregistered
// paths return 404.
func NewMockSchoologyServer(t *testing.T) *MockSchoologyServer {
	t.Helper()
	m := &MockSchoologyServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := m.Handlers[r.URL.Path]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// MockRequestToken serves the request-token endpoint (urlencoded body).
func (m *MockSchoologyServer) MockRequestToken(key, secret string) {
	m.Handlers["/oauth/request_token"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "oauth_token=%s&oauth_token_secret=%s&xoauth_token_ttl=3600", key, secret)
	}
}

// MockAccessToken serves the access-token endpoint (urlencoded body).
func (m *MockSchoologyServer) MockAccessToken(key, secret string) {
	m.Handlers["/oauth/access_token"] = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "oauth_token=%s&oauth_token_secret=%s", key, secret)
	}
}

// MockAppUserInfo serves /app-user-info with the given external uid.
func (m *MockSchoologyServer) MockAppUserInfo(uid int64) {
	m.Handlers["/app-user-info"] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"api_uid": uid})
	}
}

// MockUser serves /users/{uid}.
func (m *MockSchoologyServer) MockUser(uid int64, first, last string) {
	m.Handlers[fmt.Sprintf("/users/%d", uid)] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"uid":        fmt.Sprintf("%d", uid),
			"name_first": first,
			"name_last":  last,
		})
	}
}

// Section is a raw section row for MockSections.
type Section struct {
	ID    string `json:"id"`
	Title string `json:"section_title"`
}

// MockSections serves /users/{uid}/sections.
func (m *MockSchoologyServer) MockSections(uid int64, sections []Section) {
	m.Handlers[fmt.Sprintf("/users/%d/sections", uid)] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"section": sections})
	}
}

// MockDiscordServer mocks the handful of Discord REST endpoints the client
// touches. Handlers are keyed by "METHOD /path".
type MockDiscordServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc
	// Requests records "METHOD /path" for every call, in order.
	Requests []string
}

// NewMockDiscordServer creates a mock Discord API server. Unregistered
// routes return 204 so mutation calls succeed by default.
func NewMockDiscordServer(t *testing.T) *MockDiscordServer {
	t.Helper()
	m := &MockDiscordServer{
		Handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		m.Requests = append(m.Requests, key)
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(m.Close)
	return m
}

// Handle registers a handler for "METHOD /path".
func (m *MockDiscordServer) Handle(key string, fn http.HandlerFunc) {
	m.Handlers[key] = fn
}

// HandleJSON registers a handler that returns v as JSON.
func (m *MockDiscordServer) HandleJSON(key string, v any) {
	m.Handlers[key] = func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
}
