package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

const downloadColumns = `id, sequence, task_id, resource_id, status, stage, error, title, artist, file_path,
	resource_url, thumbnail_url, transferred_bytes, runtime_ms, average_speed, tag_format,
	created_at, updated_at, deleted_at`

// DownloadRepository implements models.Repository[*models.Download] for download history.
type DownloadRepository struct {
	db *sql.DB
}

// NewDownloadRepository creates a new DownloadRepository with the given database connection
func NewDownloadRepository(db *sql.DB) *DownloadRepository {
	return &DownloadRepository{db: db}
}

// Create inserts a new [models.Download] with generated ID and sequence
func (r *DownloadRepository) Create(d *models.Download) error {
	sequence, err := NextSequence(r.db, "downloads")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	d.SetID(shared.GenerateID())
	d.SetSequence(sequence)

	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `INSERT INTO downloads (` + downloadColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stats := d.Stats()
	_, err = r.db.Exec(query,
		d.ID(),
		sequence,
		d.TaskID(),
		d.ResourceID(),
		string(d.Status()),
		string(d.Stage()),
		d.Error(),
		d.Title(),
		d.Artist(),
		d.FilePath(),
		d.ResourceURL(),
		d.ThumbnailURL(),
		stats.TransferredBytes,
		stats.Runtime.Milliseconds(),
		stats.AverageSpeed,
		d.TagFormat(),
		d.CreatedAt(),
		d.UpdatedAt(),
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert download: %w", err)
	}
	return nil
}

// Get retrieves a download by ID, excluding soft-deleted rows
func (r *DownloadRepository) Get(id string) (*models.Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE id = ? AND deleted_at IS NULL`
	d, err := scanDownload(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrDownloadNotFound, id)
	}
	return d, err
}

// GetByTaskID retrieves the history row written for a task
func (r *DownloadRepository) GetByTaskID(taskID string) (*models.Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE task_id = ? AND deleted_at IS NULL LIMIT 1`
	d, err := scanDownload(r.db.QueryRow(query, taskID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: task %s", shared.ErrDownloadNotFound, taskID)
	}
	return d, err
}

// Update rewrites the descriptive columns of an existing download
func (r *DownloadRepository) Update(d *models.Download) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	d.SetUpdatedAt(now)

	query := `
		UPDATE downloads
		SET status = ?, stage = ?, error = ?, title = ?, artist = ?, file_path = ?, tag_format = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(d.Status()),
		string(d.Stage()),
		d.Error(),
		d.Title(),
		d.Artist(),
		d.FilePath(),
		d.TagFormat(),
		now,
		d.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update download: %w", err)
	}
	return expectOneRow(result, d.ID())
}

// Delete soft-deletes a download by ID
func (r *DownloadRepository) Delete(id string) error {
	query := `UPDATE downloads SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete download: %w", err)
	}
	return expectOneRow(result, id)
}

// List retrieves downloads matching the given criteria, excluding soft-deleted rows.
//
// Recognised criteria: "status", "resource_id", "task_id" (string) and "limit" (int).
// With a limit, the most recent rows are returned, still in ascending sequence order.
func (r *DownloadRepository) List(criteria map[string]any) ([]*models.Download, error) {
	query := `SELECT ` + downloadColumns + ` FROM downloads WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}
	if resourceID, ok := criteria["resource_id"].(string); ok && resourceID != "" {
		query += " AND resource_id = ?"
		args = append(args, resourceID)
	}
	if taskID, ok := criteria["task_id"].(string); ok && taskID != "" {
		query += " AND task_id = ?"
		args = append(args, taskID)
	}

	limit, limited := criteria["limit"].(int)
	limited = limited && limit > 0
	if limited {
		query += " ORDER BY sequence DESC LIMIT ?"
		args = append(args, limit)
	} else {
		query += " ORDER BY sequence ASC"
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var downloads []*models.Download
	for rows.Next() {
		d, err := scanDownload(rows)
		if err != nil {
			return nil, err
		}
		downloads = append(downloads, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if limited {
		slices.Reverse(downloads)
	}
	return downloads, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanDownload reads one row from either [sql.Row] or [sql.Rows]
func scanDownload(s scanner) (*models.Download, error) {
	var (
		id, taskID, resourceID, status, stage, errMsg string
		title, artist, filePath, url, thumbnail       string
		tagFormat                                     string
		sequence                                      int
		transferred, runtimeMS                        int64
		averageSpeed                                  float64
		createdAt, updatedAt                          time.Time
		deletedAt                                     sql.NullTime
	)

	err := s.Scan(&id, &sequence, &taskID, &resourceID, &status, &stage, &errMsg, &title, &artist, &filePath,
		&url, &thumbnail, &transferred, &runtimeMS, &averageSpeed, &tagFormat,
		&createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan download: %w", err)
	}

	d := models.RestoreDownload(id, sequence, taskID, resourceID, models.DownloadStatus(status), createdAt, updatedAt)
	d.SetDetails(models.Stage(stage), errMsg, title, artist, filePath, url, thumbnail, tagFormat)
	d.SetStats(models.TransferStats{
		TransferredBytes: transferred,
		Runtime:          time.Duration(runtimeMS) * time.Millisecond,
		AverageSpeed:     averageSpeed,
	})
	if deletedAt.Valid {
		d.SetDeletedAt(&deletedAt.Time)
	}
	return d, nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w or already deleted: %s", shared.ErrDownloadNotFound, id)
	}
	return nil
}
