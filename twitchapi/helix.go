// Package twitchapi contains minimal helpers to interact with Twitch Helix APIs
// for stream presence and user profiles, using an app access token.
package twitchapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/onnwee/streamwatch/presence"
)

// DefaultBaseURL is the Helix API root.
const DefaultBaseURL = "https://api.twitch.tv/helix"

// maxLogins is the Helix limit for user_login/login query params per request.
const maxLogins = 100

// TokenGetter supplies app access tokens. *TokenSource implements it.
type TokenGetter interface {
	Get(ctx context.Context) (string, error)
}

// HelixClient provides the Helix calls needed for presence detection.
type HelixClient struct {
	AppTokenSource TokenGetter
	ClientID       string
	HTTPClient     *http.Client
	BaseURL        string
}

// Stream is a live stream as returned by /streams.
type Stream struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	UserLogin    string    `json:"user_login"`
	UserName     string    `json:"user_name"`
	GameName     string    `json:"game_name"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	ViewerCount  int       `json:"viewer_count"`
	StartedAt    time.Time `json:"started_at"`
	ThumbnailURL string    `json:"thumbnail_url"`
}

// User is a Twitch account as returned by /users.
type User struct {
	ID              string `json:"id"`
	Login           string `json:"login"`
	DisplayName     string `json:"display_name"`
	ProfileImageURL string `json:"profile_image_url"`
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

func (hc *HelixClient) baseURL() string {
	if hc.BaseURL != "" {
		return strings.TrimRight(hc.BaseURL, "/")
	}
	return DefaultBaseURL
}

// GetStreams returns the live streams among logins. Offline or unknown logins
// are simply absent from the result.
func (hc *HelixClient) GetStreams(ctx context.Context, logins ...string) ([]Stream, error) {
	if len(logins) == 0 {
		return nil, fmt.Errorf("logins empty")
	}
	if len(logins) > maxLogins {
		return nil, fmt.Errorf("too many logins: %d > %d", len(logins), maxLogins)
	}
	q := url.Values{}
	for _, l := range logins {
		q.Add("user_login", l)
	}
	q.Set("first", strconv.Itoa(len(logins)))
	var body struct {
		Data []Stream `json:"data"`
	}
	if err := hc.get(ctx, "/streams", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

// GetUsers resolves logins to user profiles.
func (hc *HelixClient) GetUsers(ctx context.Context, logins ...string) ([]User, error) {
	if len(logins) == 0 {
		return nil, fmt.Errorf("login empty")
	}
	if len(logins) > maxLogins {
		return nil, fmt.Errorf("too many logins: %d > %d", len(logins), maxLogins)
	}
	q := url.Values{}
	for _, l := range logins {
		q.Add("login", l)
	}
	var body struct {
		Data []User `json:"data"`
	}
	if err := hc.get(ctx, "/users", q, &body); err != nil {
		return nil, err
	}
	return body.Data, nil
}

func (hc *HelixClient) get(ctx context.Context, path string, q url.Values, out any) error {
	if hc.AppTokenSource == nil {
		return errors.New("twitch app token source not configured")
	}
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hc.baseURL()+path, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if resp.StatusCode == http.StatusUnauthorized {
			if inv, ok := hc.AppTokenSource.(interface{ Invalidate() }); ok {
				inv.Invalidate()
			}
		}
		return fmt.Errorf("helix %s: %w", path,
			&presence.StatusError{Provider: "twitch", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))})
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("helix %s: decode: %w", path, err)
	}
	return nil
}

// PreviewURL fills the {width}x{height} placeholders of a Helix thumbnail template.
func PreviewURL(template string, width, height int) string {
	if template == "" {
		return ""
	}
	r := strings.NewReplacer("{width}", strconv.Itoa(width), "{height}", strconv.Itoa(height))
	return r.Replace(template)
}

// ChannelURL returns the public channel page for login.
func ChannelURL(login string) string {
	return "https://twitch.tv/" + login
}
