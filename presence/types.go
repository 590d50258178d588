// Package presence is the live-detection engine: it polls a provider lookup
// for every watched name, keeps per-name last-known state, and emits exactly
// one Event per live session.
//
// The engine is provider agnostic. Adapters (twitchapi, kickapi, youtubeapi)
// implement Lookup; watchlist.Store supplies the names; an Emitter (normally
// notify.Dispatcher) receives events.
package presence

import (
	"errors"
	"time"
)

// Metadata is a snapshot of a live stream taken at lookup time.
type Metadata struct {
	DisplayName  string    `json:"display_name,omitempty"`
	Title        string    `json:"title,omitempty"`
	Category     string    `json:"category,omitempty"`
	ViewerCount  int       `json:"viewer_count"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	AvatarURL    string    `json:"avatar_url,omitempty"`
	StreamURL    string    `json:"stream_url,omitempty"`
	StartedAt    time.Time `json:"started_at,omitempty"`
}

// LiveStatus is the answer of a successful lookup. Metadata is only set when
// Live is true and the provider returned details.
type LiveStatus struct {
	Live     bool      `json:"live"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Event announces that a watched name went from not-live to live.
type Event struct {
	Provider string
	Name     string
	Metadata *Metadata
	At       time.Time
}

var (
	// ErrLookupFailed marks a lookup whose outcome is unknown (transport error,
	// timeout, provider error, retries exhausted). It never means "offline".
	ErrLookupFailed = errors.New("presence lookup failed")
	// ErrInvalidName is returned for empty or whitespace-only names.
	ErrInvalidName = errors.New("invalid streamer name")
)
