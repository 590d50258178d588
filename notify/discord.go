package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DiscordWebhook posts messages to a Discord channel webhook.
type DiscordWebhook struct {
	URL        string
	Username   string
	HTTPClient *http.Client
}

type discordImage struct {
	URL string `json:"url"`
}

type discordEmbed struct {
	Embed
	Thumbnail *discordImage `json:"thumbnail,omitempty"`
	Image     *discordImage `json:"image,omitempty"`
}

type discordPayload struct {
	Content  string         `json:"content,omitempty"`
	Username string         `json:"username,omitempty"`
	Embeds   []discordEmbed `json:"embeds,omitempty"`
}

func (d *DiscordWebhook) http() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d *DiscordWebhook) SinkName() string { return "discord" }

func (d *DiscordWebhook) Deliver(ctx context.Context, msg Message) error {
	if d.URL == "" {
		return &DeliveryError{Sink: "discord", Err: fmt.Errorf("webhook url not configured")}
	}
	payload := discordPayload{Content: msg.Content, Username: d.Username}
	for _, e := range msg.Embeds {
		de := discordEmbed{Embed: e}
		if e.ThumbnailURL != "" {
			de.Thumbnail = &discordImage{URL: e.ThumbnailURL}
		}
		if e.ImageURL != "" {
			de.Image = &discordImage{URL: e.ImageURL}
		}
		payload.Embeds = append(payload.Embeds, de)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Sink: "discord", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Sink: "discord", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.http().Do(req)
	if err != nil {
		return &DeliveryError{Sink: "discord", Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &DeliveryError{Sink: "discord", Err: fmt.Errorf("webhook status %s: %s", resp.Status, strings.TrimSpace(string(b)))}
	}
	return nil
}
