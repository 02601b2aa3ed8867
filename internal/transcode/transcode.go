// Package transcode converts an input byte stream into a tagged MP3 file with ffmpeg.
package transcode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

// FFmpeg settings
const (
	FFmpegCommand   = "ffmpeg"
	AudioCodec      = "libmp3lame"
	OutputFormat    = "mp3"
	OutputExtension = ".mp3"
	ID3Version      = "4"
	InputPipe       = "pipe:0"
	LogLevel        = "error"

	stderrTailBytes = 4096
	waitDelay       = 5 * time.Second
)

// Job describes one output file.
type Job struct {
	Output          string
	Bitrate         int // kbps
	Title           string
	Artist          string
	ExtraDirectives []string
}

// Transcoder consumes in and writes the encoded file described by job.
type Transcoder interface {
	Transcode(ctx context.Context, in io.Reader, job Job) error
}

// FFmpeg runs the ffmpeg executable with the input on stdin.
type FFmpeg struct {
	binary string
	logger *log.Logger
}

// NewFFmpeg locates the executable. An empty path looks up ffmpeg on PATH.
func NewFFmpeg(binaryPath string, logger *log.Logger) (*FFmpeg, error) {
	if binaryPath == "" {
		binaryPath = FFmpegCommand
	}
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, models.NewConfigurationError("transcoderBinaryPath", fmt.Errorf("%w: %s: %v", shared.ErrMissingExecutable, binaryPath, err))
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &FFmpeg{binary: resolved, logger: logger}, nil
}

// Binary returns the resolved executable path.
func (f *FFmpeg) Binary() string {
	return f.binary
}

// Transcode encodes in to job.Output. The output file is removed on failure.
func (f *FFmpeg) Transcode(ctx context.Context, in io.Reader, job Job) error {
	if err := os.MkdirAll(filepath.Dir(job.Output), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	extras, dropped := FilterDirectives(job.ExtraDirectives)
	if len(dropped) > 0 {
		f.logger.Debug("ignoring directives that override built-in tags", "dropped", dropped)
	}
	job.ExtraDirectives = extras
	args := BuildArgs(job)

	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd := exec.CommandContext(ctx, f.binary, args...)
	cmd.Stdin = in
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	f.logger.Debug("starting ffmpeg", "output", job.Output, "bitrate", job.Bitrate)
	if err := cmd.Run(); err != nil {
		if rmErr := os.Remove(job.Output); rmErr != nil && !os.IsNotExist(rmErr) {
			f.logger.Warn("failed to remove partial output", "output", job.Output, "error", rmErr)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}

// BuildArgs assembles the ffmpeg argument list. Built-in tags precede extra directives.
func BuildArgs(job Job) []string {
	bitrate := job.Bitrate
	if bitrate <= 0 {
		bitrate = 192
	}
	args := []string{
		"-hide_banner",
		"-loglevel", LogLevel,
		"-i", InputPipe,
		"-y",
		"-vn",
		"-b:a", strconv.Itoa(bitrate) + "k",
		"-acodec", AudioCodec,
		"-f", OutputFormat,
		"-id3v2_version", ID3Version,
		"-metadata", "title=" + job.Title,
		"-metadata", "artist=" + job.Artist,
	}
	args = append(args, job.ExtraDirectives...)
	return append(args, job.Output)
}

// FilterDirectives drops "-metadata title=..." and "-metadata artist=..." pairs so built-in tags win.
func FilterDirectives(directives []string) (kept, dropped []string) {
	for i := 0; i < len(directives); i++ {
		d := directives[i]
		if d == "-metadata" && i+1 < len(directives) && overridesBuiltinTag(directives[i+1]) {
			dropped = append(dropped, d, directives[i+1])
			i++
			continue
		}
		kept = append(kept, d)
	}
	return kept, dropped
}

func overridesBuiltinTag(kv string) bool {
	key, _, _ := strings.Cut(kv, "=")
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "title", "artist":
		return true
	}
	return false
}

// tailBuffer keeps the last limit bytes written.
type tailBuffer struct {
	limit int
	buf   bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.buf.Write(p)
	if over := t.buf.Len() - t.limit; over > 0 {
		t.buf.Next(over)
	}
	return n, nil
}

func (t *tailBuffer) String() string {
	return t.buf.String()
}
