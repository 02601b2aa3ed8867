// package formatter renders download history to various formats (CSV, Markdown, JSON, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

// Format names an export target.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat accepts a format name or its common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
}

// Record is the serialisable view of a [models.Download].
type Record struct {
	Sequence     int       `json:"sequence"`
	TaskID       string    `json:"taskId"`
	ResourceID   string    `json:"resourceId"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	Error        string    `json:"error,omitempty"`
	Artist       string    `json:"artist,omitempty"`
	Title        string    `json:"title,omitempty"`
	File         string    `json:"file,omitempty"`
	ResourceURL  string    `json:"youtubeUrl,omitempty"`
	ThumbnailURL string    `json:"thumbnail,omitempty"`
	TagFormat    string    `json:"tagFormat,omitempty"`
	Bytes        int64     `json:"transferredBytes"`
	RuntimeMS    int64     `json:"runtimeMs"`
	AverageSpeed float64   `json:"averageSpeed"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewRecord flattens d for export.
func NewRecord(d *models.Download) Record {
	stats := d.Stats()
	return Record{
		Sequence:     d.Sequence(),
		TaskID:       d.TaskID(),
		ResourceID:   d.ResourceID(),
		Status:       string(d.Status()),
		Stage:        string(d.Stage()),
		Error:        d.Error(),
		Artist:       d.Artist(),
		Title:        d.Title(),
		File:         d.FilePath(),
		ResourceURL:  d.ResourceURL(),
		ThumbnailURL: d.ThumbnailURL(),
		TagFormat:    d.TagFormat(),
		Bytes:        stats.TransferredBytes,
		RuntimeMS:    stats.Runtime.Milliseconds(),
		AverageSpeed: stats.AverageSpeed,
		CreatedAt:    d.CreatedAt(),
	}
}

// Records converts a slice of downloads.
func Records(downloads []*models.Download) []Record {
	records := make([]Record, 0, len(downloads))
	for _, d := range downloads {
		records = append(records, NewRecord(d))
	}
	return records
}

// ExportToCSV converts downloads to CSV with columns: Sequence, Task, Resource, Status, Stage, Artist, Title, File, Bytes, Runtime, Error
func ExportToCSV(downloads []*models.Download) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Sequence", "Task", "Resource", "Status", "Stage", "Artist", "Title", "File", "Bytes", "Runtime", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, d := range downloads {
		stats := d.Stats()
		record := []string{
			strconv.Itoa(d.Sequence()),
			d.TaskID(),
			d.ResourceID(),
			string(d.Status()),
			string(d.Stage()),
			d.Artist(),
			d.Title(),
			d.FilePath(),
			strconv.FormatInt(stats.TransferredBytes, 10),
			shared.FormatDuration(stats.Runtime),
			d.Error(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders downloads as a Markdown report.
//
// covers maps a task ID to a local thumbnail filename; tasks without an entry get no image.
func ExportToMarkdown(downloads []*models.Download, title string, covers map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	if title == "" {
		title = "Downloads"
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	finished, failed := countStatus(downloads)
	buf.WriteString(fmt.Sprintf("**Finished**: %d\n", finished))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n\n", failed))

	buf.WriteString("## Tracks\n\n")
	for _, d := range downloads {
		if d.Status() == models.DownloadFailed {
			buf.WriteString(fmt.Sprintf("%d. ~~%s~~ failed at %s: %s\n", d.Sequence(), displayName(d), d.Stage(), d.Error()))
			continue
		}
		stats := d.Stats()
		buf.WriteString(fmt.Sprintf("%d. %s [%s, %s]\n", d.Sequence(), displayName(d),
			shared.FormatBytes(stats.TransferredBytes), shared.FormatDuration(stats.Runtime)))
		if cover := covers[d.TaskID()]; cover != "" {
			buf.WriteString(fmt.Sprintf("   ![Cover](%s)\n", cover))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts downloads to plain text, one line per task
func ExportToText(downloads []*models.Download) ([]byte, error) {
	var buf bytes.Buffer

	finished, failed := countStatus(downloads)
	buf.WriteString(fmt.Sprintf("Downloads: %d (%d finished, %d failed)\n\n", len(downloads), finished, failed))

	for _, d := range downloads {
		switch d.Status() {
		case models.DownloadFailed:
			buf.WriteString(fmt.Sprintf("%d. [failed] %s (%s: %s)\n", d.Sequence(), displayName(d), d.Stage(), d.Error()))
		default:
			buf.WriteString(fmt.Sprintf("%d. %s -> %s\n", d.Sequence(), displayName(d), d.FilePath()))
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes downloads as an array of [Record].
func ExportToJSON(downloads []*models.Download, pretty bool) ([]byte, error) {
	return shared.MarshalJSON(Records(downloads), pretty)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// ExportResult lists the files created by [WriteExport]
type ExportResult struct {
	Format Format
	Files  []string
}

// WriteExport writes downloads in the given format to path.
//
// Markdown exports treat path as a directory holding README.md and, when covers is set,
// one thumbnail per finished task. Other formats write a single file; an empty path
// defaults to downloads.{ext} in the working directory.
func WriteExport(downloads []*models.Download, format Format, path string, covers bool) (*ExportResult, error) {
	if format == FormatMarkdown {
		return writeMarkdownExport(downloads, path, covers)
	}

	var (
		data []byte
		err  error
		ext  string
	)
	switch format {
	case FormatCSV:
		data, err = ExportToCSV(downloads)
		ext = "csv"
	case FormatJSON:
		data, err = ExportToJSON(downloads, true)
		ext = "json"
	case FormatText:
		data, err = ExportToText(downloads)
		ext = "txt"
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if path == "" {
		path = "downloads." + ext
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return &ExportResult{Format: format, Files: []string{path}}, nil
}

func writeMarkdownExport(downloads []*models.Download, outputDir string, withCovers bool) (*ExportResult, error) {
	if outputDir == "" {
		outputDir = "downloads"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &ExportResult{Format: FormatMarkdown, Files: []string{}}
	covers := make(map[string]string)

	if withCovers {
		for _, d := range downloads {
			if d.Status() != models.DownloadFinished || d.ThumbnailURL() == "" {
				continue
			}
			imageData, err := DownloadImage(d.ThumbnailURL())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to download cover for %s: %v\n", d.ResourceID(), err)
				continue
			}
			name := d.ResourceID() + ".jpg"
			coverPath := filepath.Join(outputDir, name)
			if err := os.WriteFile(coverPath, imageData, 0644); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save cover for %s: %v\n", d.ResourceID(), err)
				continue
			}
			covers[d.TaskID()] = name
			result.Files = append(result.Files, coverPath)
		}
	}

	mdData, err := ExportToMarkdown(downloads, "Downloads", covers)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)
	return result, nil
}

func displayName(d *models.Download) string {
	switch {
	case d.Title() == "":
		return d.ResourceID()
	case d.Artist() == "":
		return d.Title()
	}
	return d.Artist() + " - " + d.Title()
}

func countStatus(downloads []*models.Download) (finished, failed int) {
	for _, d := range downloads {
		if d.Status() == models.DownloadFailed {
			failed++
		} else {
			finished++
		}
	}
	return finished, failed
}
