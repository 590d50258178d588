// Package youtubeapi detects live broadcasts of YouTube channels through the
// YouTube Data API. Watched names are channel IDs (UC...).
package youtubeapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/onnwee/streamwatch/presence"
)

const provider = "youtube"

// Lookup implements presence.Lookup with a search for the channel's live
// video. A search costs 100 quota units, so pair it with a long poll interval.
type Lookup struct {
	svc *yt.Service
}

// New builds a Lookup authenticated with an API key. Extra options (for
// example option.WithEndpoint in tests) are appended.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Lookup, error) {
	if apiKey == "" {
		return nil, errors.New("youtube api key missing")
	}
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Lookup{svc: svc}, nil
}

func (l *Lookup) CheckLive(ctx context.Context, channelID string) (presence.LiveStatus, error) {
	if l == nil || l.svc == nil {
		return presence.LiveStatus{}, errors.New("youtube service not initialized")
	}
	resp, err := l.svc.Search.List([]string{"snippet"}).
		ChannelId(channelID).
		EventType("live").
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			if gerr.Code == 404 {
				return presence.LiveStatus{Live: false}, nil
			}
			return presence.LiveStatus{}, fmt.Errorf("youtube search: %w",
				&presence.StatusError{Provider: provider, StatusCode: gerr.Code, Body: gerr.Message})
		}
		return presence.LiveStatus{}, fmt.Errorf("youtube search: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.VideoId == "" {
		return presence.LiveStatus{Live: false}, nil
	}

	item := resp.Items[0]
	videoID := item.Id.VideoId
	md := &presence.Metadata{StreamURL: VideoURL(videoID)}
	if sn := item.Snippet; sn != nil {
		md.DisplayName = sn.ChannelTitle
		md.Title = sn.Title
		md.ThumbnailURL = bestThumbnail(sn.Thumbnails)
	}
	l.fillLiveDetails(ctx, videoID, md)
	return presence.LiveStatus{Live: true, Metadata: md}, nil
}

// fillLiveDetails adds viewers and start time. Failures only cost metadata.
func (l *Lookup) fillLiveDetails(ctx context.Context, videoID string, md *presence.Metadata) {
	resp, err := l.svc.Videos.List([]string{"liveStreamingDetails"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		slog.Debug("youtube live details failed", slog.String("video", videoID), slog.Any("err", err))
		return
	}
	if len(resp.Items) == 0 || resp.Items[0].LiveStreamingDetails == nil {
		return
	}
	d := resp.Items[0].LiveStreamingDetails
	md.ViewerCount = int(d.ConcurrentViewers)
	if t, err := time.Parse(time.RFC3339, d.ActualStartTime); err == nil {
		md.StartedAt = t
	}
}

func bestThumbnail(t *yt.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*yt.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}

// VideoURL returns the watch page for a video.
func VideoURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// ChannelURL returns the channel page for a channel ID.
func ChannelURL(channelID string) string {
	return "https://www.youtube.com/channel/" + channelID
}
