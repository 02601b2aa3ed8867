package repositories

import (
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
)

// EventSource is the subset of the task reporter the recorder listens to.
type EventSource interface {
	OnFinished(fn func(models.TaskResult))
	OnError(fn func(err *models.TaskError, partial *models.TaskResult))
}

// HistoryRecorder persists one [models.Download] per terminal task event.
//
// Write failures are logged and never propagated back into the pipeline.
// Writes are serialized since events arrive from concurrent workers.
type HistoryRecorder struct {
	mu     sync.Mutex
	repo   *DownloadRepository
	logger *log.Logger
}

// NewHistoryRecorder creates a recorder writing through repo.
func NewHistoryRecorder(repo *DownloadRepository, logger *log.Logger) *HistoryRecorder {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &HistoryRecorder{repo: repo, logger: logger}
}

// Attach registers the recorder on src.
func (h *HistoryRecorder) Attach(src EventSource) {
	src.OnFinished(h.RecordFinished)
	src.OnError(h.RecordFailed)
}

// RecordFinished stores a successful result.
func (h *HistoryRecorder) RecordFinished(res models.TaskResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.repo.Create(models.NewFinishedDownload(res)); err != nil {
		h.logger.Warn("failed to record download", "task", res.TaskID, "error", err)
	}
}

// RecordFailed stores a failure along with any partial data.
func (h *HistoryRecorder) RecordFailed(taskErr *models.TaskError, partial *models.TaskResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.repo.Create(models.NewFailedDownload(taskErr, partial)); err != nil {
		h.logger.Warn("failed to record failure", "task", taskErr.TaskID, "error", err)
	}
}
