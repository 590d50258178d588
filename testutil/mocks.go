package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// MockTwitchServer creates a test server that mocks Twitch Helix and OAuth responses.
// Handlers are keyed by URL path.
type MockTwitchServer struct {
	*httptest.Server
	Handlers map[string]http.HandlerFunc

	mu    sync.Mutex
	calls map[string]int
}

// NewMockTwitchServer creates a new mock Twitch API server
func NewMockTwitchServer(t *testing.T) *MockTwitchServer {
	t.Helper()
	m := &MockTwitchServer{
		Handlers: make(map[string]http.HandlerFunc),
		calls:    make(map[string]int),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path
		m.mu.Lock()
		m.calls[key]++
		m.mu.Unlock()
		if handler, ok := m.Handlers[key]; ok {
			handler(w, r)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(m.Close)
	return m
}

// Calls returns how many requests hit path.
func (m *MockTwitchServer) Calls(path string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[path]
}

// MockUserResponse adds a handler for /helix/users returning one user.
func (m *MockTwitchServer) MockUserResponse(userID, login, displayName, avatarURL string) {
	m.Handlers["/helix/users"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"data": []map[string]string{
				{"id": userID, "login": login, "display_name": displayName, "profile_image_url": avatarURL},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockStreamsResponse adds a handler for /helix/streams. Only streams whose
// user_login matches a requested login are returned, like Helix does.
func (m *MockTwitchServer) MockStreamsResponse(streams []map[string]interface{}) {
	m.Handlers["/helix/streams"] = func(w http.ResponseWriter, r *http.Request) {
		wanted := map[string]bool{}
		for _, l := range r.URL.Query()["user_login"] {
			wanted[strings.ToLower(l)] = true
		}
		data := []map[string]interface{}{}
		for _, s := range streams {
			login, _ := s["user_login"].(string)
			if len(wanted) == 0 || wanted[strings.ToLower(login)] {
				data = append(data, s)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data}) //nolint:errcheck // test mock response
	}
}

// MockStatus makes path answer with a fixed status code and body.
func (m *MockTwitchServer) MockStatus(path string, status int, body string) {
	m.Handlers[path] = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

// MockOAuthTokenResponse adds a handler for OAuth token endpoint
func (m *MockTwitchServer) MockOAuthTokenResponse(accessToken string, expiresIn int) {
	m.Handlers["/oauth2/token"] = func(w http.ResponseWriter, r *http.Request) {
		response := map[string]interface{}{
			"access_token": accessToken,
			"expires_in":   expiresIn,
			"token_type":   "bearer",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response) //nolint:errcheck // test mock response
	}
}

// MockKickServer mocks the public Kick channel endpoint
// (/api/v2/channels/{slug}). Channels not registered answer 404.
type MockKickServer struct {
	*httptest.Server

	mu       sync.Mutex
	channels map[string]any
	statuses map[string]int
}

// NewMockKickServer creates a new mock Kick API server.
func NewMockKickServer(t *testing.T) *MockKickServer {
	t.Helper()
	m := &MockKickServer{channels: map[string]any{}, statuses: map[string]int{}}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slug, ok := strings.CutPrefix(r.URL.Path, "/api/v2/channels/")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		m.mu.Lock()
		status, hasStatus := m.statuses[slug]
		body, hasBody := m.channels[slug]
		m.mu.Unlock()
		if hasStatus {
			w.WriteHeader(status)
			return
		}
		if !hasBody {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
	}))
	t.Cleanup(m.Close)
	return m
}

// SetChannel registers the JSON body returned for slug.
func (m *MockKickServer) SetChannel(slug string, body any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[slug] = body
	delete(m.statuses, slug)
}

// SetStatus makes slug answer with a bare status code.
func (m *MockKickServer) SetStatus(slug string, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[slug] = status
}
