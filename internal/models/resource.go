package models

import (
	"io"
	"strings"
)

// Resource is the resolved metadata of a remote media item.
type Resource struct {
	ID           string
	URL          string
	Title        string
	Author       string
	ThumbnailURL string
	Formats      []Format

	// Handle carries the source client's own representation between Resolve and Acquire.
	Handle any
}

// Format is one encoded variant of a resource.
type Format struct {
	Itag          int
	MimeType      string
	AudioBitrate  int // kbps, zero when undeclared
	AudioChannels int
	Bitrate       int // bits per second
	ContentLength int64
	HasVideo      bool
}

// Container returns the subtype of the mime type, e.g. "mp4" for `audio/mp4; codecs="mp4a.40.2"`.
func (f Format) Container() string {
	mt, _, _ := strings.Cut(f.MimeType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(mt), "/")
	if !ok {
		return ""
	}
	return strings.ToLower(sub)
}

// HasAudio reports whether the variant carries an audio track.
func (f Format) HasAudio() bool {
	return f.AudioChannels > 0 || f.AudioBitrate > 0
}

// Stream is an in-flight acquisition. Length is -1 when the source did not report one.
type Stream struct {
	Body   io.ReadCloser
	Length int64
	Format Format
}
