package tasks

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/proxy"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/session"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/transcode"
)

// Options are the recognised downloader settings. Zero values select defaults.
type Options struct {
	Quality                    string        // default highestaudio
	OutputDirectory            string        // default user home directory
	MaxConcurrency             int           // default 1
	ProgressWindow             time.Duration // default 1s
	ExtraOutputDirectives      []string      // appended after the built-in tags
	AllowNonPreferredContainer bool
	Proxies                    []string
	RotateProxies              *bool // nil rotates iff Proxies is non-empty
	TranscoderBinaryPath       string
	BaseRequestOptions         services.BaseOptions
}

// OptionsFromConfig maps the loaded configuration onto [Options].
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		Quality:                    cfg.Download.Quality,
		OutputDirectory:            cfg.Download.OutputDirectory,
		MaxConcurrency:             cfg.Download.MaxConcurrency,
		ProgressWindow:             cfg.Download.ProgressWindow(),
		ExtraOutputDirectives:      cfg.Download.ExtraOutputDirectives,
		AllowNonPreferredContainer: cfg.Download.AllowNonPreferredContainer,
		Proxies:                    cfg.Network.Proxies,
		RotateProxies:              cfg.Network.RotateProxies,
		TranscoderBinaryPath:       cfg.Transcoder.BinaryPath,
		BaseRequestOptions: services.BaseOptions{
			Headers:      cfg.Network.Headers,
			MaxRedirects: cfg.Network.MaxRedirects,
			Timeout:      cfg.Network.Timeout(),
		},
	}
}

// Deps overrides collaborators. Nil fields are built from [Options].
type Deps struct {
	Source     services.Source
	Transcoder transcode.Transcoder
	Session    *session.Session
	Reporter   *Reporter
	Logger     *log.Logger
	Now        func() time.Time
}

// Downloader accepts resource ids and reports outcomes through its [Reporter].
type Downloader struct {
	ctx      context.Context
	queue    *Queue
	pipeline *Pipeline
	reporter *Reporter
	session  *session.Session
	logger   *log.Logger
	now      func() time.Time
}

// NewDownloader validates opts and wires the queue, pipeline and reporter.
//
// Construction fails with a [*models.ConfigurationError] for a bad concurrency
// value, an invalid proxy, or a missing transcoder executable.
func NewDownloader(opts Options, deps Deps) (*Downloader, error) {
	if opts.MaxConcurrency == 0 {
		opts.MaxConcurrency = 1
	}
	if opts.Quality == "" {
		opts.Quality = services.QualityHighestAudio
	}
	if opts.OutputDirectory == "" {
		dir, err := shared.DownloadConfig{}.OutputDir()
		if err != nil {
			return nil, models.NewConfigurationError("output_directory", err)
		}
		opts.OutputDirectory = dir
	}

	logger := deps.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	reporter := deps.Reporter
	if reporter == nil {
		reporter = NewReporter()
	}
	d := &Downloader{ctx: context.Background(), reporter: reporter, logger: logger, now: now}

	queue, err := NewQueue(opts.MaxConcurrency, d.run, reporter.emitQueueSize)
	if err != nil {
		return nil, err
	}
	d.queue = queue

	rotator, err := proxy.New(opts.Proxies)
	if err != nil {
		return nil, models.NewConfigurationError("proxies", err)
	}
	rotate := len(opts.Proxies) > 0
	if opts.RotateProxies != nil {
		rotate = *opts.RotateProxies
	}

	sess := deps.Session
	if sess == nil {
		if sess, err = session.New(); err != nil {
			return nil, models.NewConfigurationError("session", err)
		}
	}

	source := deps.Source
	if source == nil {
		source = services.NewYouTubeSource(logger)
	}
	transcoder := deps.Transcoder
	if transcoder == nil {
		ff, err := transcode.NewFFmpeg(opts.TranscoderBinaryPath, logger)
		if err != nil {
			return nil, err
		}
		transcoder = ff
	}

	d.session = sess
	d.pipeline = NewPipeline(
		source,
		transcoder,
		services.NewRequestBuilder(opts.BaseRequestOptions, sess, rotator, rotate),
		PipelineOptions{
			Quality:                    opts.Quality,
			OutputDirectory:            opts.OutputDirectory,
			ProgressWindow:             opts.ProgressWindow,
			ExtraOutputDirectives:      opts.ExtraOutputDirectives,
			AllowNonPreferredContainer: opts.AllowNonPreferredContainer,
		},
		logger,
		reporter.emitProgress,
	)

	logger.Debug("downloader ready",
		"concurrency", opts.MaxConcurrency,
		"proxies", rotator.Len(),
		"rotate", rotate,
		"output", opts.OutputDirectory)
	return d, nil
}

// Enqueue schedules a download and returns its task id. The outcome arrives as
// exactly one finished or error event.
func (d *Downloader) Enqueue(resourceID, fileName string) string {
	task := models.Task{
		ID:         shared.GenerateID(),
		ResourceID: resourceID,
		FileName:   fileName,
		EnqueuedAt: d.now(),
	}
	d.logger.Debug("enqueued", "task", task.ID, "resource", resourceID)
	d.queue.Push(d.ctx, task, d.complete)
	return task.ID
}

// Cancel drops a task that is still waiting for a worker.
func (d *Downloader) Cancel(taskID string) bool {
	return d.queue.Cancel(taskID)
}

// Wait blocks until all enqueued tasks have completed or ctx is done.
func (d *Downloader) Wait(ctx context.Context) error {
	return d.queue.Wait(ctx)
}

// Reporter returns the event surface.
func (d *Downloader) Reporter() *Reporter {
	return d.reporter
}

// Session returns the cookie session shared by every request.
func (d *Downloader) Session() *session.Session {
	return d.session
}

// Depth returns the current running and waiting counts.
func (d *Downloader) Depth() (running, waiting int) {
	return d.queue.Running(), d.queue.Waiting()
}

func (d *Downloader) run(ctx context.Context, task models.Task) (*models.TaskResult, error) {
	return d.pipeline.Run(ctx, task)
}

func (d *Downloader) complete(task models.Task, result *models.TaskResult, err *models.TaskError) {
	if err != nil {
		d.logger.Error("download failed", "task", task.ID, "resource", task.ResourceID, "stage", err.Stage, "error", err.Err)
		d.reporter.emitError(err, result)
		return
	}
	if result == nil {
		result = &models.TaskResult{TaskID: task.ID, ResourceID: task.ResourceID}
	}
	d.reporter.emitFinished(*result)
}
