package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/onnwee/streamwatch/presence"
)

func TestTokenSource_GetCached(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "test-client" || r.PostForm.Get("client_secret") != "test-secret" {
			t.Errorf("client credentials not sent in params: %v", r.PostForm)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token-123",
			"expires_in":   3600,
			"token_type":   "bearer",
		})
	}))
	defer server.Close()

	ts := &TokenSource{
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient: &http.Client{
			Transport: &rewriteTransport{host: server.URL},
		},
	}

	ctx := context.Background()

	// First call should fetch token
	token1, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token1 != "test-token-123" {
		t.Errorf("Get() = %s, want test-token-123", token1)
	}

	// Second call should use cached token
	token2, err := ts.Get(ctx)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if token2 != token1 {
		t.Errorf("cached token = %s, want %s", token2, token1)
	}
	if callCount != 1 {
		t.Errorf("expected 1 API call (cached), got %d", callCount)
	}

	ts.Invalidate()
	if _, err := ts.Get(ctx); err != nil {
		t.Fatalf("Get() after Invalidate error = %v", err)
	}
	if callCount != 2 {
		t.Errorf("expected refetch after Invalidate, got %d calls", callCount)
	}
}

func TestTokenSource_RefreshesNearExpiry(t *testing.T) {
	callCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "short-lived",
			"expires_in":   30, // inside the 60s buffer
			"token_type":   "bearer",
		})
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL + "/oauth2/token"}
	for i := 0; i < 2; i++ {
		if _, err := ts.Get(context.Background()); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}
	if callCount != 2 {
		t.Errorf("expected a refresh for a token inside the expiry buffer, got %d calls", callCount)
	}
}

func TestTokenSource_Errors(t *testing.T) {
	tests := []struct {
		name        string
		clientID    string
		status      int
		body        string
		wantStatus  int
		errContains string
	}{
		{
			name:        "missing credentials",
			errContains: "missing client id/secret",
		},
		{
			name:        "invalid client",
			clientID:    "c",
			status:      http.StatusBadRequest,
			body:        `{"status":400,"message":"invalid client secret"}`,
			wantStatus:  http.StatusBadRequest,
			errContains: "twitch token request failed",
		},
		{
			name:        "server error",
			clientID:    "c",
			status:      http.StatusInternalServerError,
			body:        "boom",
			wantStatus:  http.StatusInternalServerError,
			errContains: "twitch token request failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ts := &TokenSource{ClientID: tt.clientID, TokenURL: server.URL}
			if tt.clientID != "" {
				ts.ClientSecret = "s"
			}
			_, err := ts.Get(context.Background())
			if err == nil {
				t.Fatal("Get() expected error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
			if tt.wantStatus != 0 {
				var se *presence.StatusError
				if !errors.As(err, &se) || se.StatusCode != tt.wantStatus {
					t.Errorf("StatusError = %+v, want status %d", se, tt.wantStatus)
				}
			}
		})
	}
}

func TestTokenSource_EmptyAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"","token_type":"bearer","expires_in":3600}`))
	}))
	defer server.Close()

	ts := &TokenSource{ClientID: "c", ClientSecret: "s", TokenURL: server.URL}
	if _, err := ts.Get(context.Background()); err == nil {
		t.Error("Get() expected error for empty access_token")
	}
}

func TestTokenSource_ConcurrentGetsShareOneRequest(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"shared","expires_in":3600,"token_type":"bearer"}`))
	}))
	defer server.Close()

	ts := &TokenSource{
		ClientID:     "id",
		ClientSecret: "secret",
		TokenURL:     server.URL,
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tok, err := ts.Get(context.Background()); err != nil || tok != "shared" {
				t.Errorf("Get() = %q, %v", tok, err)
			}
		}()
	}
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("token requests = %d, want 1", n)
	}
}
