package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/ytmp3/internal/formatter"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/repositories"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/urfave/cli/v3"
)

// History lists recorded downloads, most recent last.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	downloads, err := r.listDownloads(cmd)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.Records(downloads), cmd.Bool("pretty"))
	}

	if len(downloads) == 0 {
		r.writePlain("No downloads recorded\n")
		return nil
	}

	r.writePlainHeader(fmt.Sprintf("Downloads (%d)", len(downloads)))

	headers := []string{"#", "When", "", "Video", "Track", "Size", "Time"}
	aligns := []columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight}
	rows := make([][]string, 0, len(downloads))
	for _, d := range downloads {
		row := []string{
			strconv.Itoa(d.Sequence()),
			d.CreatedAt().Local().Format("2006-01-02 15:04"),
		}
		if d.Status() == models.DownloadFailed {
			row = append(row, "✗", d.ResourceID(), fmt.Sprintf("%s: %s", d.Stage(), d.Error()))
		} else {
			stats := d.Stats()
			row = append(row, "✓", d.ResourceID(), d.Artist()+" - "+d.Title(),
				shared.FormatBytes(stats.TransferredBytes), shared.FormatDuration(stats.Runtime))
		}
		rows = append(rows, row)
	}
	return r.writePlain("%s\n", renderTable(headers, rows, aligns))
}

// Export writes history in the requested format.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	downloads, err := r.listDownloads(cmd)
	if err != nil {
		return err
	}
	if len(downloads) == 0 {
		return fmt.Errorf("%w: no downloads to export", shared.ErrDownloadNotFound)
	}

	result, err := formatter.WriteExport(downloads, format, cmd.String("output"), cmd.Bool("covers"))
	if err != nil {
		return err
	}

	r.logger.Info("export complete", "format", result.Format, "downloads", len(downloads))
	for _, file := range result.Files {
		r.writePlain("%s\n", file)
	}
	return nil
}

func (r *Runner) listDownloads(cmd *cli.Command) ([]*models.Download, error) {
	limit := cmd.Int("limit")
	if limit < 0 {
		return nil, fmt.Errorf("%w: --limit must not be negative", shared.ErrInvalidFlag)
	}
	status := cmd.String("status")
	switch models.DownloadStatus(status) {
	case "", models.DownloadFinished, models.DownloadFailed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidFlag, status)
	}

	db, err := r.openDatabase()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	criteria := map[string]any{
		"status":      status,
		"resource_id": cmd.String("resource"),
	}
	if limit > 0 {
		criteria["limit"] = limit
	}

	downloads, err := repositories.NewDownloadRepository(db).List(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	return downloads, nil
}
