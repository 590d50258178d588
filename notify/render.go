package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/onnwee/streamwatch/presence"
)

// Profile holds the per-provider presentation of notifications.
// DefaultCategory fills the Category field when the provider reports none.
type Profile struct {
	Name            string
	Label           string
	Color           int
	Badge           string
	DefaultCategory string
	ChannelURL      func(name string) string
}

var profiles = map[string]Profile{
	"twitch": {
		Name: "twitch", Label: "Twitch", Color: 0x9146FF, Badge: "🔴",
		ChannelURL: func(n string) string { return "https://twitch.tv/" + n },
	},
	"kick": {
		Name: "kick", Label: "Kick", Color: 0x53FC18, Badge: "🟢", DefaultCategory: "Just Chatting",
		ChannelURL: func(n string) string { return "https://kick.com/" + n },
	},
	"youtube": {
		Name: "youtube", Label: "YouTube", Color: 0xFF0000, Badge: "🔴",
		ChannelURL: func(n string) string { return "https://www.youtube.com/channel/" + n },
	},
}

// ProfileFor returns the profile of provider, or a neutral one for unknown providers.
func ProfileFor(provider string) Profile {
	if p, ok := profiles[provider]; ok {
		return p
	}
	return Profile{
		Name:       provider,
		Label:      provider,
		Badge:      "🔴",
		ChannelURL: func(n string) string { return n },
	}
}

// Render formats an event. With metadata it produces an embed carrying the
// title, category, viewer count, avatar and stream preview; without, a
// one-line "X is live at <url>" message.
func Render(ev presence.Event) Message {
	p := ProfileFor(ev.Provider)
	url := p.ChannelURL(ev.Name)
	md := ev.Metadata
	if md != nil && md.StreamURL != "" {
		url = md.StreamURL
	}
	msg := Message{Provider: ev.Provider, Streamer: ev.Name, URL: url}

	if md == nil {
		msg.Content = fmt.Sprintf("%s **%s** is live at %s", p.Badge, ev.Name, url)
		return msg
	}

	display := md.DisplayName
	if display == "" {
		display = ev.Name
	}
	msg.Content = fmt.Sprintf("%s **%s** is now live on %s!", p.Badge, display, p.Label)

	title := md.Title
	if strings.TrimSpace(title) == "" {
		title = "Untitled stream"
	}
	category := md.Category
	if category == "" {
		category = p.DefaultCategory
	}
	if category == "" {
		category = "N/A"
	}
	embed := Embed{
		Title:       display + " is live!",
		Description: "**" + title + "**",
		URL:         url,
		Color:       p.Color,
		Fields: []Field{
			{Name: "Category", Value: category, Inline: true},
			{Name: "Viewers", Value: strconv.Itoa(md.ViewerCount), Inline: true},
		},
		ThumbnailURL: md.AvatarURL,
		ImageURL:     md.ThumbnailURL,
	}
	if !ev.At.IsZero() {
		at := ev.At.UTC()
		embed.Timestamp = &at
	}
	msg.Embeds = []Embed{embed}
	return msg
}

// PlainText flattens a message for sinks without embeds.
func PlainText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Content)
	for _, e := range msg.Embeds {
		if e.Description != "" {
			b.WriteString(" | ")
			b.WriteString(strings.Trim(e.Description, "*"))
		}
		for _, f := range e.Fields {
			fmt.Fprintf(&b, " | %s: %s", f.Name, f.Value)
		}
	}
	if msg.URL != "" && !strings.Contains(b.String(), msg.URL) {
		b.WriteString(" ")
		b.WriteString(msg.URL)
	}
	return b.String()
}
