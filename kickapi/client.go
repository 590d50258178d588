// Package kickapi reads channel presence from Kick's public channel endpoint.
package kickapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/onnwee/streamwatch/presence"
)

// DefaultBaseURL is the Kick site root serving /api/v2/channels/{slug}.
const DefaultBaseURL = "https://kick.com"

// defaultUserAgent is sent because Kick rejects requests without a browser-like agent.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// ErrChannelNotFound is returned by GetChannel for unknown slugs.
var ErrChannelNotFound = errors.New("kick channel not found")

// Client calls the Kick channel API.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	UserAgent  string
}

// Category is a Kick category reference.
type Category struct {
	Name string `json:"name"`
}

// Thumbnail accepts both shapes Kick has served: a bare URL string or {"url": "..."}.
type Thumbnail struct {
	URL string
}

func (t *Thumbnail) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		t.URL = s
		return nil
	}
	var obj struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("kick thumbnail: %w", err)
	}
	t.URL = obj.URL
	return nil
}

// Livestream is the active session of a channel.
type Livestream struct {
	ID           int64      `json:"id"`
	SessionTitle string     `json:"session_title"`
	ViewerCount  int        `json:"viewer_count"`
	CreatedAt    string     `json:"created_at"`
	Thumbnail    *Thumbnail `json:"thumbnail"`
	Categories   []Category `json:"categories"`
	Category     *Category  `json:"category"`
}

// Channel is the subset of /api/v2/channels/{slug} used for presence.
type Channel struct {
	Slug string `json:"slug"`
	User struct {
		Username   string `json:"username"`
		ProfilePic string `json:"profile_pic"`
	} `json:"user"`
	Livestream *Livestream `json:"livestream"`
	Category   *Category   `json:"category"`
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// GetChannel fetches a channel by slug. A 404 returns ErrChannelNotFound.
func (c *Client) GetChannel(ctx context.Context, slug string) (*Channel, error) {
	if slug == "" {
		return nil, fmt.Errorf("slug empty")
	}
	base := DefaultBaseURL
	if c.BaseURL != "" {
		base = strings.TrimRight(c.BaseURL, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v2/channels/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrChannelNotFound
	case resp.StatusCode != http.StatusOK:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("kick channel %s: %w", slug,
			&presence.StatusError{Provider: "kick", StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))})
	}

	var ch Channel
	if err := json.NewDecoder(resp.Body).Decode(&ch); err != nil {
		return nil, fmt.Errorf("kick channel %s: decode: %w", slug, err)
	}
	return &ch, nil
}
