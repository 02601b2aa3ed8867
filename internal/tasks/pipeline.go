package tasks

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/progress"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/transcode"
)

// DefaultArtist is used when a title carries no artist separator.
const DefaultArtist = "Unknown"

// PipelineOptions configures per-task behaviour shared by every run.
type PipelineOptions struct {
	Quality                    string
	OutputDirectory            string
	ProgressWindow             time.Duration
	ExtraOutputDirectives      []string
	AllowNonPreferredContainer bool
	Now                        func() time.Time // sample clock, defaults to time.Now
}

// Pipeline runs resolve, acquire and transcode for a single task.
type Pipeline struct {
	source     services.Source
	transcoder transcode.Transcoder
	requests   *services.RequestBuilder
	opts       PipelineOptions
	logger     *log.Logger
	onProgress func(ProgressEvent)
	readTags   func(path string) (*transcode.Tags, error)
}

// NewPipeline wires a pipeline. onProgress may be nil.
func NewPipeline(
	source services.Source,
	transcoder transcode.Transcoder,
	requests *services.RequestBuilder,
	opts PipelineOptions,
	logger *log.Logger,
	onProgress func(ProgressEvent),
) *Pipeline {
	if requests == nil {
		requests = services.NewRequestBuilder(services.BaseOptions{}, nil, nil, false)
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{
		source:     source,
		transcoder: transcoder,
		requests:   requests,
		opts:       opts,
		logger:     logger,
		onProgress: onProgress,
		readTags:   transcode.ReadTags,
	}
}

// Run executes the task. On failure the error is a [*models.TaskError] and the
// returned result holds the fields known before the failing stage.
func (p *Pipeline) Run(ctx context.Context, task models.Task) (*models.TaskResult, error) {
	logger := shared.WithLogger(p.logger, "task", task.ID, "resource", task.ResourceID)
	partial := &models.TaskResult{TaskID: task.ID, ResourceID: task.ResourceID}

	logger.Debug("resolving")
	res, err := p.source.Resolve(ctx, task.ResourceID, p.requests.Build())
	if err != nil {
		return partial, models.NewTaskError(task, models.StageResolve, err)
	}

	videoTitle := shared.SanitizeFileName(res.Title)
	artist, title := SplitArtistTitle(videoTitle)
	output := OutputPath(p.opts.OutputDirectory, task.FileName, videoTitle, res.ID)

	partial.ResourceURL = res.URL
	partial.VideoTitle = videoTitle
	partial.Artist = artist
	partial.Title = title
	partial.ThumbnailURL = res.ThumbnailURL
	partial.File = output

	format, err := services.SelectFormat(res.Formats, p.opts.Quality, p.opts.AllowNonPreferredContainer)
	if err != nil {
		return partial, models.NewTaskError(task, models.StageAcquire, err)
	}

	logger.Debug("acquiring", "itag", format.Itag, "mime", format.MimeType)
	stream, err := p.source.Acquire(ctx, res, format, p.requests.Build())
	if err != nil {
		return partial, models.NewTaskError(task, models.StageAcquire, err)
	}
	defer stream.Body.Close()

	bitrate, declared := services.AudioBitrate(res.Formats)
	if !declared {
		logger.Debug("no declared audio bitrate, using default", "bitrate", bitrate)
	}

	body := &readRecorder{r: stream.Body}
	tracker := progress.New(body, stream.Length, progress.Options{
		Window: p.opts.ProgressWindow,
		Now:    p.opts.Now,
		OnSample: func(s progress.Sample) {
			if p.onProgress != nil {
				p.onProgress(ProgressEvent{TaskID: task.ID, ResourceID: task.ResourceID, Sample: s})
			}
		},
	})

	logger.Debug("transcoding", "output", output, "bitrate", bitrate)
	err = p.transcoder.Transcode(ctx, tracker, transcode.Job{
		Output:          output,
		Bitrate:         bitrate,
		Title:           title,
		Artist:          artist,
		ExtraDirectives: p.opts.ExtraOutputDirectives,
	})
	if readErr := body.Err(); readErr != nil {
		removePartial(logger, output)
		return partial, models.NewTaskError(task, models.StageAcquire, readErr)
	}
	if err != nil {
		removePartial(logger, output)
		return partial, models.NewTaskError(task, models.StageTranscode, err)
	}

	result := *partial
	if summary, ok := tracker.Summary(); ok {
		result.Stats = &models.TransferStats{
			TransferredBytes: summary.Transferred,
			Runtime:          summary.Runtime,
			AverageSpeed:     summary.AverageSpeed,
		}
	} else {
		logger.Debug("stream ended before the expected length was observed", "transferred", tracker.Transferred())
	}

	if tags, err := p.readTags(output); err != nil {
		logger.Debug("could not read back tags", "error", err)
	} else {
		result.TagFormat = tags.Format
	}

	logger.Info("download complete", "file", output)
	return &result, nil
}

// SplitArtistTitle splits "Artist - Title" on the first hyphen.
// Without a hyphen the artist is [DefaultArtist] and the title is the whole name.
func SplitArtistTitle(name string) (artist, title string) {
	left, right, found := strings.Cut(name, "-")
	if !found {
		return DefaultArtist, name
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

// OutputPath computes the destination for a task.
//
// A supplied file name is sanitized and used as given. Otherwise the sanitized
// title, or the resource id when the title is empty, gets the mp3 extension.
func OutputPath(dir, fileName, videoTitle, resourceID string) string {
	if fileName != "" {
		return filepath.Join(dir, shared.SanitizeFileName(fileName))
	}
	name := videoTitle
	if name == "" {
		name = shared.SanitizeFileName(resourceID)
	}
	return filepath.Join(dir, name+transcode.OutputExtension)
}

func removePartial(logger *log.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("failed to remove partial output", "file", path, "error", err)
	}
}

// readRecorder remembers the first non-EOF error returned by the source stream,
// which distinguishes acquisition failures from encoder failures.
type readRecorder struct {
	r   io.Reader
	mu  sync.Mutex
	err error
}

func (r *readRecorder) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
	return n, err
}

func (r *readRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
