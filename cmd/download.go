package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

// downloadResult is one line of the download summary.
type downloadResult struct {
	TaskID     string             `json:"taskId"`
	ResourceID string             `json:"videoId"`
	Status     string             `json:"status"`
	Result     *models.TaskResult `json:"result,omitempty"`
	Stage      models.Stage       `json:"stage,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// Download enqueues every argument and waits for the batch to finish.
//
// With --server the ids are handed to a running server and the command returns immediately.
func (r *Runner) Download(ctx context.Context, cmd *cli.Command) error {
	ids, err := resourceIDs(cmd.Args().Slice())
	if err != nil {
		return err
	}
	name := cmd.String("name")
	if name != "" && len(ids) > 1 {
		return fmt.Errorf("%w: --name applies to a single download", shared.ErrInvalidArgument)
	}

	if server := cmd.String("server"); server != "" {
		return r.enqueueRemote(ctx, server, ids, name, cmd.Bool("json"))
	}

	db := r.historyDatabase()
	if db != nil {
		defer db.Close()
	}

	downloader, err := r.newDownloader(db)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !cmd.Bool("no-progress") && !cmd.Bool("json") && isTerminal(os.Stderr) {
		bar = newBatchBar(os.Stderr, len(ids))
	}

	var mu sync.Mutex
	results := make([]downloadResult, 0, len(ids))
	reporter := downloader.Reporter()
	reporter.OnProgress(func(ev tasks.ProgressEvent) {
		if bar != nil {
			bar.Describe(fmt.Sprintf("%s %5.1f%%", ev.ResourceID, ev.Sample.Percentage))
		}
	})
	reporter.OnFinished(func(res models.TaskResult) {
		mu.Lock()
		results = append(results, downloadResult{TaskID: res.TaskID, ResourceID: res.ResourceID, Status: "finished", Result: &res})
		mu.Unlock()
		if bar != nil {
			bar.Add(1)
		}
	})
	reporter.OnError(func(taskErr *models.TaskError, partial *models.TaskResult) {
		mu.Lock()
		results = append(results, downloadResult{
			TaskID:     taskErr.TaskID,
			ResourceID: taskErr.ResourceID,
			Status:     "failed",
			Stage:      taskErr.Stage,
			Error:      taskErr.Err.Error(),
		})
		mu.Unlock()
		if bar != nil {
			bar.Add(1)
		}
	})

	for _, id := range ids {
		downloader.Enqueue(id, name)
	}
	if err := downloader.Wait(ctx); err != nil {
		return fmt.Errorf("download interrupted: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	if cmd.Bool("json") {
		if err := r.writeJSON(results, true); err != nil {
			return err
		}
	} else {
		r.printResults(results)
	}

	if cmd.Bool("open") {
		dir, err := r.config.Download.OutputDir()
		if err != nil {
			return err
		}
		if err := shared.OpenPath(dir); err != nil {
			r.logger.Warn("failed to open output directory", "dir", dir, "error", err)
		}
	}

	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(results))
	}
	return nil
}

func (r *Runner) enqueueRemote(ctx context.Context, baseURL string, ids []string, name string, asJSON bool) error {
	client := services.NewQueueClient(baseURL, r.httpClient)

	accepted := make([]*models.EnqueueResponse, 0, len(ids))
	for _, id := range ids {
		resp, err := client.Enqueue(ctx, id, name)
		if err != nil {
			return fmt.Errorf("failed to enqueue %s: %w", id, err)
		}
		r.logger.Debug("enqueued remotely", "task", resp.TaskID, "resource", resp.ResourceID)
		accepted = append(accepted, resp)
	}

	if asJSON {
		return r.writeJSON(accepted, true)
	}
	for _, resp := range accepted {
		r.writePlain("Queued %s as task %s\n", resp.ResourceID, resp.TaskID)
	}
	return nil
}

func (r *Runner) printResults(results []downloadResult) {
	for _, res := range results {
		if res.Status == "failed" {
			r.writePlain("✗ %s failed at %s: %s\n", res.ResourceID, res.Stage, res.Error)
			continue
		}
		r.writePlain("✓ %s - %s -> %s\n", res.Result.Artist, res.Result.Title, res.Result.File)
	}
}

// resourceIDs normalises video ids and URLs, failing on the first invalid input.
func resourceIDs(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one video id or url", shared.ErrMissingArgument)
	}
	ids := make([]string, 0, len(args))
	for _, arg := range args {
		id, err := services.ParseResourceID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func newBatchBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("downloading"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func countFailed(results []downloadResult) int {
	n := 0
	for _, res := range results {
		if res.Status == "failed" {
			n++
		}
	}
	return n
}
