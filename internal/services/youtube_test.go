package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/kkdai/youtube/v2"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func statusTransport(code int) roundTripFunc {
	return func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: code,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
			Request:    r,
		}, nil
	}
}

func TestYouTubeSource(t *testing.T) {
	t.Run("Name and WatchURL", func(t *testing.T) {
		src := NewYouTubeSource(nil)
		if src.Name() != "YouTube" {
			t.Errorf("expected name YouTube, got %s", src.Name())
		}
		if got := src.WatchURL("dQw4w9WgXcQ"); got != "http://www.youtube.com/watch?v=dQw4w9WgXcQ" {
			t.Errorf("expected watch url, got %s", got)
		}
	})

	t.Run("Resolve maps 404 to not found", func(t *testing.T) {
		var seen []string
		src := NewYouTubeSource(nil)
		src.newClient = func(cfg RequestConfig) *youtube.Client {
			return &youtube.Client{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				seen = append(seen, r.URL.Host)
				return statusTransport(http.StatusNotFound)(r)
			})}}
		}

		_, err := src.Resolve(context.Background(), "dQw4w9WgXcQ", RequestConfig{})
		if !errors.Is(err, shared.ErrResourceNotFound) {
			t.Fatalf("expected ErrResourceNotFound, got %v", err)
		}
		if len(seen) == 0 || seen[0] != "www.youtube.com" {
			t.Errorf("expected a request to www.youtube.com, got %v", seen)
		}
	})

	t.Run("Resolve rejects malformed ids", func(t *testing.T) {
		requests := 0
		src := NewYouTubeSource(nil)
		src.newClient = func(cfg RequestConfig) *youtube.Client {
			return &youtube.Client{HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
				requests++
				return statusTransport(http.StatusOK)(r)
			})}}
		}

		for _, id := range []string{"short", "bad?id=1", "  "} {
			_, err := src.Resolve(context.Background(), id, RequestConfig{})
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput for %q, got %v", id, err)
			}
		}
		if requests != 0 {
			t.Errorf("expected no requests for malformed ids, got %d", requests)
		}
	})

	t.Run("Resolve accepts watch URLs", func(t *testing.T) {
		src := NewYouTubeSource(nil)
		src.newClient = func(cfg RequestConfig) *youtube.Client {
			return &youtube.Client{HTTPClient: &http.Client{Transport: statusTransport(http.StatusNotFound)}}
		}
		_, err := src.Resolve(context.Background(), "https://www.youtube.com/watch?v=dQw4w9WgXcQ", RequestConfig{})
		if !errors.Is(err, shared.ErrResourceNotFound) {
			t.Errorf("expected ErrResourceNotFound, got %v", err)
		}
	})

	t.Run("Acquire requires a resolved handle", func(t *testing.T) {
		src := NewYouTubeSource(nil)
		_, err := src.Acquire(context.Background(), &models.Resource{ID: "abc"}, models.Format{Itag: 140}, RequestConfig{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Acquire rejects unknown itag", func(t *testing.T) {
		src := NewYouTubeSource(nil)
		res := &models.Resource{ID: "abc", Handle: &youtube.Video{ID: "abc", Formats: youtube.FormatList{{ItagNo: 140}}}}
		_, err := src.Acquire(context.Background(), res, models.Format{Itag: 251}, RequestConfig{})
		if !errors.Is(err, shared.ErrNoFormat) {
			t.Errorf("expected ErrNoFormat, got %v", err)
		}
	})
}

func TestResourceFromVideo(t *testing.T) {
	video := &youtube.Video{
		ID:     "dQw4w9WgXcQ",
		Title:  "Rick Astley - Never Gonna Give You Up",
		Author: "Rick Astley",
		Thumbnails: youtube.Thumbnails{
			{URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg", Width: 120, Height: 90},
			{URL: "https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg", Width: 480, Height: 360},
		},
		Formats: youtube.FormatList{
			{ItagNo: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, Width: 640, Height: 360, AudioChannels: 2, Bitrate: 500_000},
			{ItagNo: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, AudioChannels: 2, Bitrate: 130_000, ContentLength: 3_433_231},
		},
	}

	res := resourceFromVideo(video, DefaultWatchURL+video.ID)
	if res.ThumbnailURL != "https://i.ytimg.com/vi/dQw4w9WgXcQ/default.jpg" {
		t.Errorf("expected first thumbnail, got %s", res.ThumbnailURL)
	}
	if res.Handle != video {
		t.Error("expected handle to carry the video")
	}
	if len(res.Formats) != 2 {
		t.Fatalf("expected 2 formats, got %d", len(res.Formats))
	}
	if f := res.Formats[0]; !f.HasVideo || f.AudioBitrate != 96 {
		t.Errorf("expected muxed itag 18 with 96kbps, got %+v", f)
	}
	if f := res.Formats[1]; f.HasVideo || f.AudioBitrate != 128 || f.ContentLength != 3_433_231 {
		t.Errorf("expected audio-only itag 140 with 128kbps, got %+v", f)
	}
}

func TestClassifyError(t *testing.T) {
	tc := []struct {
		name string
		err  error
		want error
	}{
		{name: "private", err: youtube.ErrVideoPrivate, want: shared.ErrResourceRestricted},
		{name: "login", err: fmt.Errorf("can't bypass age restriction: %w", youtube.ErrLoginRequired), want: shared.ErrResourceRestricted},
		{name: "playability error", err: &youtube.ErrPlayabiltyStatus{Status: "ERROR", Reason: "Video unavailable"}, want: shared.ErrResourceNotFound},
		{name: "playability unplayable", err: &youtube.ErrPlayabiltyStatus{Status: "UNPLAYABLE"}, want: shared.ErrResourceRestricted},
		{name: "403", err: youtube.ErrUnexpectedStatusCode(403), want: shared.ErrUnexpectedStatus},
		{name: "invalid id", err: youtube.ErrVideoIDMinLength, want: shared.ErrInvalidInput},
		{name: "deadline", err: context.DeadlineExceeded, want: shared.ErrTimeout},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			if !errors.Is(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("expected original error to be preserved, got %v", got)
			}
		})
	}

	plain := errors.New("boom")
	if got := classifyError(plain); got != plain {
		t.Errorf("expected unknown errors to pass through, got %v", got)
	}
}

func TestParseResourceID(t *testing.T) {
	tc := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: " dQw4w9WgXcQ ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42", want: "dQw4w9WgXcQ"},
		{in: "https://youtu.be/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ"},
		{in: "abc", wantErr: shared.ErrInvalidInput},
		{in: "watch?v=", wantErr: shared.ErrInvalidInput},
	}

	for _, tt := range tc {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResourceID(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}
