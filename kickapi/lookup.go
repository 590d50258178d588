package kickapi

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/onnwee/streamwatch/presence"
)

// Preview thumbnail size used in notifications.
const (
	PreviewWidth  = 854
	PreviewHeight = 480
)

var (
	widthParam  = regexp.MustCompile(`&width=\d+`)
	heightParam = regexp.MustCompile(`&height=\d+`)
)

// Lookup implements presence.Lookup for Kick. Unknown channels are offline.
type Lookup struct {
	Client *Client
}

func NewLookup(client *Client) *Lookup {
	return &Lookup{Client: client}
}

func (l *Lookup) CheckLive(ctx context.Context, name string) (presence.LiveStatus, error) {
	ch, err := l.Client.GetChannel(ctx, name)
	if errors.Is(err, ErrChannelNotFound) {
		return presence.LiveStatus{Live: false}, nil
	}
	if err != nil {
		return presence.LiveStatus{}, err
	}
	if ch.Livestream == nil {
		return presence.LiveStatus{Live: false}, nil
	}
	ls := ch.Livestream
	md := &presence.Metadata{
		DisplayName: ch.User.Username,
		Title:       ls.SessionTitle,
		Category:    categoryName(ch),
		ViewerCount: ls.ViewerCount,
		AvatarURL:   ch.User.ProfilePic,
		StreamURL:   ChannelURL(name),
	}
	if md.DisplayName == "" {
		md.DisplayName = name
	}
	if ls.Thumbnail != nil {
		md.ThumbnailURL = ResizeThumbnail(ls.Thumbnail.URL, PreviewWidth, PreviewHeight)
	}
	if t, err := time.Parse("2006-01-02 15:04:05", ls.CreatedAt); err == nil {
		md.StartedAt = t.UTC()
	}
	return presence.LiveStatus{Live: true, Metadata: md}, nil
}

// categoryName picks the first non-empty of livestream.categories[0],
// livestream.category and the channel category.
func categoryName(ch *Channel) string {
	ls := ch.Livestream
	if len(ls.Categories) > 0 && ls.Categories[0].Name != "" {
		return ls.Categories[0].Name
	}
	if ls.Category != nil && ls.Category.Name != "" {
		return ls.Category.Name
	}
	if ch.Category != nil {
		return ch.Category.Name
	}
	return ""
}

// ResizeThumbnail rewrites the width and height query params of a Kick thumbnail URL.
func ResizeThumbnail(u string, width, height int) string {
	u = widthParam.ReplaceAllString(u, "&width="+strconv.Itoa(width))
	return heightParam.ReplaceAllString(u, "&height="+strconv.Itoa(height))
}

// ChannelURL returns the public channel page for slug.
func ChannelURL(slug string) string {
	return "https://kick.com/" + slug
}
