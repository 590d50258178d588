package twitchapi

import (
	"context"
	"log/slog"

	"github.com/onnwee/streamwatch/presence"
)

// Preview thumbnail size used in notifications.
const (
	PreviewWidth  = 480
	PreviewHeight = 270
)

// Lookup implements presence.Lookup on top of Helix. A login that does not
// exist simply has no stream, so it reports offline.
type Lookup struct {
	Client *HelixClient
	// SkipAvatar disables the extra /users call made when a stream is live.
	SkipAvatar bool
}

func NewLookup(client *HelixClient) *Lookup {
	return &Lookup{Client: client}
}

func (l *Lookup) CheckLive(ctx context.Context, name string) (presence.LiveStatus, error) {
	streams, err := l.Client.GetStreams(ctx, name)
	if err != nil {
		return presence.LiveStatus{}, err
	}
	if len(streams) == 0 {
		return presence.LiveStatus{Live: false}, nil
	}
	s := streams[0]
	md := &presence.Metadata{
		DisplayName:  s.UserName,
		Title:        s.Title,
		Category:     s.GameName,
		ViewerCount:  s.ViewerCount,
		ThumbnailURL: PreviewURL(s.ThumbnailURL, PreviewWidth, PreviewHeight),
		StreamURL:    ChannelURL(name),
		StartedAt:    s.StartedAt,
	}
	if !l.SkipAvatar {
		users, err := l.Client.GetUsers(ctx, name)
		switch {
		case err != nil:
			slog.Debug("twitch avatar lookup failed", slog.String("streamer", name), slog.Any("err", err))
		case len(users) > 0:
			md.AvatarURL = users[0].ProfileImageURL
			if users[0].DisplayName != "" {
				md.DisplayName = users[0].DisplayName
			}
		}
	}
	return presence.LiveStatus{Live: true, Metadata: md}, nil
}
