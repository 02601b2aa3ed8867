package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/ytmp3/internal/shared"
)

// Stage names the pipeline step a failure came from.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageAcquire   Stage = "acquire"
	StageTranscode Stage = "transcode"
	StageQueue     Stage = "queue"    // cancelled before admission
	StagePipeline  Stage = "pipeline" // recovered panic
)

// Sentinel returns the shared error matching the stage.
func (s Stage) Sentinel() error {
	switch s {
	case StageResolve:
		return shared.ErrResolve
	case StageAcquire:
		return shared.ErrAcquire
	case StageTranscode:
		return shared.ErrTranscode
	case StageQueue:
		return shared.ErrCancelled
	default:
		return shared.ErrPanic
	}
}

// Task is one unit of requested work. It is immutable once enqueued.
type Task struct {
	ID         string    `json:"taskId"`
	ResourceID string    `json:"videoId"`
	FileName   string    `json:"fileName,omitempty"` // optional desired output name
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// TransferStats is the cumulative summary attached when the full length was observed.
type TransferStats struct {
	TransferredBytes int64         `json:"transferredBytes"`
	Runtime          time.Duration `json:"runtime"`
	AverageSpeed     float64       `json:"averageSpeed"` // bytes per second, two decimals
}

// TaskResult is built only on success.
type TaskResult struct {
	TaskID       string         `json:"taskId"`
	ResourceID   string         `json:"videoId"`
	File         string         `json:"file"`
	ResourceURL  string         `json:"youtubeUrl"`
	VideoTitle   string         `json:"videoTitle"`
	Artist       string         `json:"artist"`
	Title        string         `json:"title"`
	ThumbnailURL string         `json:"thumbnail,omitempty"`
	TagFormat    string         `json:"tagFormat,omitempty"`
	Stats        *TransferStats `json:"stats,omitempty"`
}

// TaskError is the single failure value produced for a task.
type TaskError struct {
	TaskID     string
	ResourceID string
	Stage      Stage
	Err        error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.ResourceID, e.Err)
}

// Unwrap exposes both the stage sentinel and the cause to [errors.Is].
func (e *TaskError) Unwrap() []error {
	return []error{e.Stage.Sentinel(), e.Err}
}

// NewTaskError tags err with the failing stage. An existing [TaskError] is returned unchanged.
func NewTaskError(task Task, stage Stage, err error) *TaskError {
	var te *TaskError
	if errors.As(err, &te) {
		return te
	}
	return &TaskError{TaskID: task.ID, ResourceID: task.ResourceID, Stage: stage, Err: err}
}

// ConfigurationError reports invalid construction options.
type ConfigurationError struct {
	Option string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// NewConfigurationError wraps a reason with [shared.ErrInvalidConfig] unless it already carries a sentinel.
func NewConfigurationError(option string, err error) *ConfigurationError {
	if !errors.Is(err, shared.ErrInvalidConfig) && !errors.Is(err, shared.ErrMissingExecutable) {
		err = fmt.Errorf("%w: %w", shared.ErrInvalidConfig, err)
	}
	return &ConfigurationError{Option: option, Err: err}
}
