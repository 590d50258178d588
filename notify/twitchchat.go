package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	twitch "github.com/gempir/go-twitch-irc/v4"
)

// ChatClient is the subset of the go-twitch-irc client used for announcements.
type ChatClient interface {
	Join(channels ...string)
	Say(channel, text string)
	OnConnect(callback func())
	Connect() error
	Disconnect() error
}

// TwitchChatNotifier announces go-lives in a Twitch chat channel. It needs a
// user OAuth token with chat:edit; app tokens cannot chat.
type TwitchChatNotifier struct {
	client  ChatClient
	channel string

	mu        sync.RWMutex
	connected bool
}

// NewTwitchChatNotifier builds a notifier backed by a real IRC client.
func NewTwitchChatNotifier(username, oauthToken, channel string) *TwitchChatNotifier {
	return NewTwitchChatNotifierWithClient(twitch.NewClient(username, oauthToken), channel)
}

// NewTwitchChatNotifierWithClient wraps an existing client.
func NewTwitchChatNotifierWithClient(client ChatClient, channel string) *TwitchChatNotifier {
	n := &TwitchChatNotifier{client: client, channel: strings.TrimPrefix(strings.ToLower(channel), "#")}
	client.OnConnect(func() {
		n.mu.Lock()
		n.connected = true
		n.mu.Unlock()
		slog.Info("twitch chat connected", slog.String("component", "notify"), slog.String("channel", n.channel))
	})
	return n
}

// Run joins the channel and keeps the IRC connection until ctx is done.
func (n *TwitchChatNotifier) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		n.mu.Lock()
		n.connected = false
		n.mu.Unlock()
		_ = n.client.Disconnect()
	}()
	n.client.Join(n.channel)
	if err := n.client.Connect(); err != nil && ctx.Err() == nil {
		slog.Error("twitch chat connect error", slog.String("component", "notify"), slog.Any("err", err))
	}
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()
}

func (n *TwitchChatNotifier) SinkName() string { return "twitch_chat" }

func (n *TwitchChatNotifier) Deliver(_ context.Context, msg Message) error {
	n.mu.RLock()
	connected := n.connected
	n.mu.RUnlock()
	if !connected {
		return &DeliveryError{Sink: "twitch_chat", Err: errors.New("not connected")}
	}
	// Chat has no markdown.
	text := strings.ReplaceAll(PlainText(msg), "**", "")
	n.client.Say(n.channel, truncateUTF8(text, maxChatBytes))
	return nil
}

// Twitch drops chat messages longer than 500 bytes.
const maxChatBytes = 500

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
