package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/onnwee/streamwatch/presence"
	"github.com/onnwee/streamwatch/watchlist"
)

type brokenStore struct{}

func (brokenStore) Add(context.Context, string) (bool, error) {
	return false, watchlist.WrapStorage("test", "add", errors.New("connection refused"))
}

func (brokenStore) Remove(context.Context, string) (bool, error) {
	return false, watchlist.WrapStorage("test", "remove", errors.New("connection refused"))
}

func (brokenStore) List(context.Context) ([]string, error) {
	return nil, watchlist.WrapStorage("test", "list", errors.New("connection refused"))
}

func newTestService(provider string, store watchlist.Store, live map[string]bool) *presence.Service {
	lookup := presence.LookupFunc(func(ctx context.Context, name string) (presence.LiveStatus, error) {
		if name == "broken" {
			return presence.LiveStatus{}, errors.New("upstream exploded with secret detail")
		}
		if live[name] {
			return presence.LiveStatus{Live: true, Metadata: &presence.Metadata{Title: name + " stream", ViewerCount: 7}}, nil
		}
		return presence.LiveStatus{}, nil
	})
	return presence.NewWatcher(presence.Options{
		Provider: provider,
		Store:    store,
		Lookup:   lookup,
		Retries:  -1,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}).Service
}

func newTestServer(t *testing.T, checks ...ReadyCheck) http.Handler {
	t.Helper()
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("ADMIN_PASSWORD", "")
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	services := map[string]*presence.Service{
		"twitch": newTestService("twitch", watchlist.NewMemoryStore("alice", "bob", "carol"), map[string]bool{"alice": true, "carol": true}),
		"kick":   newTestService("kick", brokenStore{}, nil),
	}
	return NewMux(ctx, services, checks)
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	var out map[string]any
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("%s %s: bad json %q: %v", method, path, rr.Body.String(), err)
		}
	}
	return rr, out
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t)
	if rr, _ := do(t, h, http.MethodGet, "/healthz", ""); rr.Code != http.StatusOK || rr.Body.String() != "ok" {
		t.Errorf("/healthz = %d %q", rr.Code, rr.Body.String())
	}
	if rr, _ := do(t, h, http.MethodGet, "/metrics", ""); rr.Code != http.StatusOK {
		t.Errorf("/metrics = %d", rr.Code)
	}
}

func TestReadyz(t *testing.T) {
	ok := ReadyCheck{Name: "store", Check: func(context.Context) error { return nil }}
	bad := ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}

	rr, out := do(t, newTestServer(t, ok), http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK || out["status"] != "ready" {
		t.Errorf("ready = %d %v", rr.Code, out)
	}
	rr, out = do(t, newTestServer(t, ok, bad), http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable || out["failed_check"] != "redis" {
		t.Errorf("not ready = %d %v", rr.Code, out)
	}
	if strings.Contains(rr.Body.String(), "refused") {
		t.Errorf("readyz leaked error detail: %s", rr.Body.String())
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	h := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got := rr.Header().Get("X-Correlation-ID"); got != "abc-123" {
		t.Errorf("X-Correlation-ID = %q, want echoed", got)
	}

	rr, _ = do(t, h, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Correlation-ID") == "" {
		t.Error("no correlation id generated")
	}
}

func TestProviders(t *testing.T) {
	_, out := do(t, newTestServer(t), http.MethodGet, "/providers", "")
	got, _ := out["providers"].([]any)
	if !reflect.DeepEqual(got, []any{"kick", "twitch"}) {
		t.Errorf("providers = %v", out["providers"])
	}
}

func TestStreamerLifecycle(t *testing.T) {
	h := newTestServer(t)

	rr, out := do(t, h, http.MethodPost, "/providers/twitch/streamers", `{"name":" dave "}`)
	if rr.Code != http.StatusCreated || out["added"] != true {
		t.Fatalf("add = %d %v", rr.Code, out)
	}
	rr, out = do(t, h, http.MethodPost, "/providers/twitch/streamers", `{"name":"dave"}`)
	if rr.Code != http.StatusOK || out["added"] != false {
		t.Errorf("duplicate add = %d %v", rr.Code, out)
	}

	_, out = do(t, h, http.MethodGet, "/providers/twitch/streamers", "")
	if got := out["streamers"].([]any); len(got) != 4 || got[3] != "dave" {
		t.Errorf("streamers = %v", got)
	}

	rr, out = do(t, h, http.MethodDelete, "/providers/twitch/streamers/dave", "")
	if rr.Code != http.StatusOK || out["removed"] != true {
		t.Errorf("remove = %d %v", rr.Code, out)
	}
	_, out = do(t, h, http.MethodDelete, "/providers/twitch/streamers/dave", "")
	if out["removed"] != false {
		t.Errorf("second remove = %v", out)
	}
}

func TestStreamerErrors(t *testing.T) {
	h := newTestServer(t)
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantError  string
	}{
		{"unknown provider", http.MethodGet, "/providers/mixer/streamers", "", http.StatusNotFound, "unknown provider"},
		{"blank name", http.MethodPost, "/providers/twitch/streamers", `{"name":"   "}`, http.StatusBadRequest, "invalid name"},
		{"bad body", http.MethodPost, "/providers/twitch/streamers", `{`, http.StatusBadRequest, "invalid request body"},
		{"storage list", http.MethodGet, "/providers/kick/streamers", "", http.StatusServiceUnavailable, genericFailure},
		{"storage add", http.MethodPost, "/providers/kick/streamers", `{"name":"x"}`, http.StatusServiceUnavailable, genericFailure},
		{"storage live", http.MethodGet, "/providers/kick/live", "", http.StatusServiceUnavailable, genericFailure},
		{"lookup failed", http.MethodGet, "/providers/twitch/streamers/broken/live", "", http.StatusBadGateway, genericFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, out := do(t, h, tt.method, tt.path, tt.body)
			if rr.Code != tt.wantStatus || out["error"] != tt.wantError {
				t.Errorf("%s %s = %d %v, want %d %q", tt.method, tt.path, rr.Code, out, tt.wantStatus, tt.wantError)
			}
			if strings.Contains(rr.Body.String(), "refused") || strings.Contains(rr.Body.String(), "secret") {
				t.Errorf("response leaked internal detail: %s", rr.Body.String())
			}
		})
	}
}

func TestCheckAndLive(t *testing.T) {
	h := newTestServer(t)

	rr, out := do(t, h, http.MethodGet, "/providers/twitch/streamers/alice/live", "")
	if rr.Code != http.StatusOK || out["live"] != true {
		t.Fatalf("check alice = %d %v", rr.Code, out)
	}
	md := out["metadata"].(map[string]any)
	if md["title"] != "alice stream" {
		t.Errorf("metadata = %v", md)
	}

	_, out = do(t, h, http.MethodGet, "/providers/twitch/streamers/bob/live", "")
	if out["live"] != false || out["metadata"] != nil {
		t.Errorf("check bob = %v", out)
	}

	_, out = do(t, h, http.MethodGet, "/providers/twitch/live", "")
	if got := out["live"].([]any); !reflect.DeepEqual(got, []any{"alice", "carol"}) {
		t.Errorf("live = %v, want [alice carol]", got)
	}
}

func TestMutatingRoutesRequireAuth(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "0")
	t.Setenv("ADMIN_TOKEN", "s3cret")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewMux(ctx, map[string]*presence.Service{
		"twitch": newTestService("twitch", watchlist.NewMemoryStore(), nil),
	}, nil)

	rr, _ := do(t, h, http.MethodPost, "/providers/twitch/streamers", `{"name":"alice"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated add = %d, want 401", rr.Code)
	}
	if rr, _ := do(t, h, http.MethodGet, "/providers/twitch/streamers", ""); rr.Code != http.StatusOK {
		t.Errorf("list = %d, want open read", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/providers/twitch/streamers", strings.NewReader(`{"name":"alice"}`))
	req.Header.Set("X-Admin-Token", "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("authenticated add = %d, want 201", rec.Code)
	}
}

func TestMutatingRoutesRateLimited(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	t.Setenv("ADMIN_USERNAME", "")
	t.Setenv("RATE_LIMIT_ENABLED", "")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")
	t.Setenv("RATE_LIMIT_WINDOW_SECONDS", "60")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := NewMux(ctx, map[string]*presence.Service{
		"twitch": newTestService("twitch", watchlist.NewMemoryStore(), nil),
	}, nil)

	for i, name := range []string{"a", "b"} {
		if rr, _ := do(t, h, http.MethodPost, "/providers/twitch/streamers", `{"name":"`+name+`"}`); rr.Code != http.StatusCreated {
			t.Fatalf("request %d = %d", i+1, rr.Code)
		}
	}
	rr, _ := do(t, h, http.MethodPost, "/providers/twitch/streamers", `{"name":"c"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") != "60" {
		t.Errorf("third add = %d Retry-After %q", rr.Code, rr.Header().Get("Retry-After"))
	}
}
