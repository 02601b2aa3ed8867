// YouTube [Source] implementation backed by github.com/kkdai/youtube/v2.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/kkdai/youtube/v2"
)

// DefaultWatchURL is prefixed to resource ids to form the canonical resource URL.
const DefaultWatchURL = "http://www.youtube.com/watch?v="

// YouTubeSource resolves and streams YouTube videos.
type YouTubeSource struct {
	watchURL  string
	logger    *log.Logger
	newClient func(cfg RequestConfig) *youtube.Client
}

// NewYouTubeSource creates a source using [DefaultWatchURL].
func NewYouTubeSource(logger *log.Logger) *YouTubeSource {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &YouTubeSource{
		watchURL: DefaultWatchURL,
		logger:   logger,
		newClient: func(cfg RequestConfig) *youtube.Client {
			return &youtube.Client{HTTPClient: cfg.Client()}
		},
	}
}

// Name returns the source name.
func (y *YouTubeSource) Name() string {
	return "YouTube"
}

// WatchURL returns the canonical URL for a resource id.
func (y *YouTubeSource) WatchURL(resourceID string) string {
	return y.watchURL + resourceID
}

// ParseResourceID accepts a bare id or any watch, short or embed URL and returns the id.
func ParseResourceID(input string) (string, error) {
	id, err := youtube.ExtractVideoID(strings.TrimSpace(input))
	if err != nil {
		return "", classifyError(err)
	}
	return id, nil
}

// Resolve fetches video metadata and formats.
//
// Malformed ids fail with [shared.ErrInvalidInput] before any request is made.
func (y *YouTubeSource) Resolve(ctx context.Context, resourceID string, cfg RequestConfig) (*models.Resource, error) {
	id, err := ParseResourceID(resourceID)
	if err != nil {
		return nil, err
	}

	client := y.newClient(cfg)
	video, err := client.GetVideoContext(ctx, y.WatchURL(id))
	if err != nil {
		return nil, classifyError(err)
	}

	y.logger.Debug("resolved video", "resource", id, "title", video.Title, "formats", len(video.Formats), "proxy", cfg.Proxy != nil)
	return resourceFromVideo(video, y.WatchURL(id)), nil
}

// Acquire opens the stream for format. The returned length is -1 when unknown.
func (y *YouTubeSource) Acquire(ctx context.Context, res *models.Resource, format models.Format, cfg RequestConfig) (*models.Stream, error) {
	video, ok := res.Handle.(*youtube.Video)
	if !ok || video == nil {
		return nil, fmt.Errorf("%w: resource %s was not resolved by this source", shared.ErrInvalidInput, res.ID)
	}

	var selected *youtube.Format
	for i := range video.Formats {
		if video.Formats[i].ItagNo == format.Itag {
			selected = &video.Formats[i]
			break
		}
	}
	if selected == nil {
		return nil, fmt.Errorf("%w: itag %d not offered for %s", shared.ErrNoFormat, format.Itag, res.ID)
	}

	client := y.newClient(cfg)
	body, length, err := client.GetStreamContext(ctx, video, selected)
	if err != nil {
		return nil, classifyError(err)
	}
	if length <= 0 {
		length = -1
	}

	y.logger.Debug("acquired stream", "resource", res.ID, "itag", format.Itag, "length", length, "proxy", cfg.Proxy != nil)
	return &models.Stream{Body: body, Length: length, Format: format}, nil
}

func resourceFromVideo(video *youtube.Video, url string) *models.Resource {
	res := &models.Resource{
		ID:      video.ID,
		URL:     url,
		Title:   video.Title,
		Author:  video.Author,
		Formats: make([]models.Format, 0, len(video.Formats)),
		Handle:  video,
	}
	if len(video.Thumbnails) > 0 {
		res.ThumbnailURL = video.Thumbnails[0].URL
	}
	for _, f := range video.Formats {
		res.Formats = append(res.Formats, convertFormat(f))
	}
	return res
}

func convertFormat(f youtube.Format) models.Format {
	hasVideo := f.Width > 0 || f.Height > 0 || strings.HasPrefix(f.MimeType, "video/")
	audioOnly := !hasVideo && f.AudioChannels > 0
	return models.Format{
		Itag:          f.ItagNo,
		MimeType:      f.MimeType,
		AudioBitrate:  audioBitrateFor(f.ItagNo, f.Bitrate, f.AverageBitrate, audioOnly),
		AudioChannels: f.AudioChannels,
		Bitrate:       f.Bitrate,
		ContentLength: f.ContentLength,
		HasVideo:      hasVideo,
	}
}

// classifyError tags kkdai/youtube errors with shared sentinels.
func classifyError(err error) error {
	var (
		playability *youtube.ErrPlayabiltyStatus
		status      youtube.ErrUnexpectedStatusCode
	)

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", shared.ErrTimeout, err)
	case errors.Is(err, youtube.ErrVideoPrivate),
		errors.Is(err, youtube.ErrLoginRequired),
		errors.Is(err, youtube.ErrNotPlayableInEmbed):
		return fmt.Errorf("%w: %w", shared.ErrResourceRestricted, err)
	case errors.Is(err, youtube.ErrInvalidCharactersInVideoID),
		errors.Is(err, youtube.ErrVideoIDMinLength):
		return fmt.Errorf("%w: %w", shared.ErrInvalidInput, err)
	case errors.As(err, &playability):
		if playability.Status == "ERROR" {
			return fmt.Errorf("%w: %w", shared.ErrResourceNotFound, err)
		}
		return fmt.Errorf("%w: %w", shared.ErrResourceRestricted, err)
	case errors.As(err, &status):
		if int(status) == 404 {
			return fmt.Errorf("%w: %w", shared.ErrResourceNotFound, err)
		}
		return fmt.Errorf("%w: %w", shared.ErrUnexpectedStatus, err)
	}
	return err
}
