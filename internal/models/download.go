package models

import (
	"errors"
	"fmt"
	"time"
)

// DownloadStatus is the terminal outcome recorded for a task.
type DownloadStatus string

const (
	DownloadFinished DownloadStatus = "finished"
	DownloadFailed   DownloadStatus = "failed"
)

// Download is the persisted history row for one terminal task event.
type Download struct {
	id        string
	sequence  int
	taskID    string
	resource  string
	status    DownloadStatus
	stage     Stage
	errMsg    string
	title     string
	artist    string
	filePath  string
	url       string
	thumbnail string
	tagFormat string
	stats     TransferStats
	createdAt time.Time
	updatedAt time.Time
	deletedAt *time.Time
}

// NewFinishedDownload builds a history row from a successful result.
func NewFinishedDownload(res TaskResult) *Download {
	d := newDownload(res.TaskID, res.ResourceID, DownloadFinished)
	d.title = res.Title
	d.artist = res.Artist
	d.filePath = res.File
	d.url = res.ResourceURL
	d.thumbnail = res.ThumbnailURL
	d.tagFormat = res.TagFormat
	if res.Stats != nil {
		d.stats = *res.Stats
	}
	return d
}

// NewFailedDownload builds a history row from a task failure and whatever partial data was known.
func NewFailedDownload(taskErr *TaskError, partial *TaskResult) *Download {
	d := newDownload(taskErr.TaskID, taskErr.ResourceID, DownloadFailed)
	d.stage = taskErr.Stage
	d.errMsg = taskErr.Err.Error()
	if partial != nil {
		d.title = partial.Title
		d.artist = partial.Artist
		d.filePath = partial.File
		d.url = partial.ResourceURL
	}
	return d
}

// RestoreDownload rebuilds a row read from storage.
func RestoreDownload(id string, sequence int, taskID, resourceID string, status DownloadStatus, createdAt, updatedAt time.Time) *Download {
	d := newDownload(taskID, resourceID, status)
	d.id = id
	d.sequence = sequence
	d.createdAt = createdAt
	d.updatedAt = updatedAt
	return d
}

func newDownload(taskID, resourceID string, status DownloadStatus) *Download {
	now := time.Now()
	return &Download{taskID: taskID, resource: resourceID, status: status, createdAt: now, updatedAt: now}
}

func (d *Download) ID() string                { return d.id }
func (d *Download) Sequence() int             { return d.sequence }
func (d *Download) TaskID() string            { return d.taskID }
func (d *Download) ResourceID() string        { return d.resource }
func (d *Download) Status() DownloadStatus    { return d.status }
func (d *Download) Stage() Stage              { return d.stage }
func (d *Download) Error() string             { return d.errMsg }
func (d *Download) Title() string             { return d.title }
func (d *Download) Artist() string            { return d.artist }
func (d *Download) FilePath() string          { return d.filePath }
func (d *Download) ResourceURL() string       { return d.url }
func (d *Download) ThumbnailURL() string      { return d.thumbnail }
func (d *Download) TagFormat() string         { return d.tagFormat }
func (d *Download) Stats() TransferStats      { return d.stats }
func (d *Download) CreatedAt() time.Time      { return d.createdAt }
func (d *Download) UpdatedAt() time.Time      { return d.updatedAt }
func (d *Download) DeletedAt() *time.Time     { return d.deletedAt }
func (d *Download) SetID(id string)           { d.id = id }
func (d *Download) SetSequence(seq int)       { d.sequence = seq }
func (d *Download) SetUpdatedAt(t time.Time)  { d.updatedAt = t }
func (d *Download) SetDeletedAt(t *time.Time) { d.deletedAt = t }

// SetDetails fills descriptive columns when restoring from storage.
func (d *Download) SetDetails(stage Stage, errMsg, title, artist, filePath, url, thumbnail, tagFormat string) {
	d.stage = stage
	d.errMsg = errMsg
	d.title = title
	d.artist = artist
	d.filePath = filePath
	d.url = url
	d.thumbnail = thumbnail
	d.tagFormat = tagFormat
}

// SetStats replaces the transfer summary.
func (d *Download) SetStats(s TransferStats) { d.stats = s }

// SetTagFormat records the tag format read back from the written file.
func (d *Download) SetTagFormat(format string) { d.tagFormat = format }

// Validate checks required fields and status consistency.
func (d *Download) Validate() error {
	if d.id == "" {
		return errors.New("download id is required")
	}
	if d.resource == "" {
		return errors.New("resource id is required")
	}
	switch d.status {
	case DownloadFinished:
		if d.filePath == "" {
			return errors.New("finished download requires a file path")
		}
	case DownloadFailed:
		if d.stage == "" {
			return errors.New("failed download requires a stage")
		}
	default:
		return fmt.Errorf("unknown download status %q", d.status)
	}
	return nil
}
