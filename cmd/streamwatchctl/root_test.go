package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /providers/kick/streamers", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Admin-Token") != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]bool{"added": body["name"] == "bob"})
	})
	mux.HandleFunc("DELETE /providers/kick/streamers/{name}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"removed": r.PathValue("name") == "bob"})
	})
	mux.HandleFunc("GET /providers/kick/streamers", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"streamers":["bob","carol"]}`))
	})
	mux.HandleFunc("GET /providers/kick/streamers/{name}/live", func(w http.ResponseWriter, r *http.Request) {
		switch r.PathValue("name") {
		case "bob":
			_, _ = w.Write([]byte(`{"live":true,"metadata":{"title":"Speedruns","category":"Celeste","viewer_count":12}}`))
		case "broken":
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"operation failed"}`))
		default:
			_, _ = w.Write([]byte(`{"live":false}`))
		}
	})
	mux.HandleFunc("GET /providers/kick/live", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"live":["bob"]}`))
	})
	mux.HandleFunc("GET /providers/youtube/live", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"live":[]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--token", "tok"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	srv := fakeAPI(t)
	tests := []struct {
		args []string
		want []string
	}{
		{[]string{"add", "bob", "-p", "kick"}, []string{"Added bob to the kick watchlist."}},
		{[]string{"add", "dave", "-p", "kick"}, []string{"dave is already on the kick watchlist."}},
		{[]string{"remove", "bob", "-p", "kick"}, []string{"Removed bob from the kick watchlist."}},
		{[]string{"remove", "zed", "-p", "kick"}, []string{"zed was not on the kick watchlist."}},
		{[]string{"list", "-p", "kick"}, []string{"bob\ncarol\n"}},
		{[]string{"check", "bob", "-p", "kick"}, []string{"bob is LIVE.", "Title: Speedruns", "Category: Celeste", "Viewers: 12"}},
		{[]string{"check", "carol", "-p", "kick"}, []string{"carol is offline."}},
		{[]string{"live", "-p", "kick"}, []string{"bob\n"}},
		{[]string{"live", "-p", "youtube"}, []string{"Nobody is live right now."}},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := execute(t, srv, tt.args...)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output %q missing %q", out, want)
				}
			}
		})
	}
}

func TestCommandErrors(t *testing.T) {
	srv := fakeAPI(t)

	_, err := execute(t, srv, "check", "broken", "-p", "kick")
	if err == nil || !strings.Contains(err.Error(), "operation failed") || !strings.Contains(err.Error(), "502") {
		t.Errorf("check broken error = %v", err)
	}

	t.Setenv("ADMIN_TOKEN", "")
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--server", srv.URL, "add", "bob", "-p", "kick"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("add without token error = %v", err)
	}

	if _, err := execute(t, srv, "add"); err == nil {
		t.Error("add without a name succeeded")
	}
}
