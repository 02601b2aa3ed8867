package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ytmp3/internal/server"
	"github.com/desertthunder/ytmp3/internal/services"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/desertthunder/ytmp3/internal/ui"
	"github.com/urfave/cli/v3"
)

// Monitor launches the terminal UI.
//
// Locally it downloads the given ids and quits once all have finished. With --server it
// watches the server's event stream, enqueueing any given ids there first.
func (r *Runner) Monitor(ctx context.Context, cmd *cli.Command) error {
	args := cmd.Args().Slice()
	serverURL := cmd.String("server")

	var ids []string
	if len(args) > 0 || serverURL == "" {
		var err error
		if ids, err = resourceIDs(args); err != nil {
			return err
		}
	}

	// The UI owns the terminal, so logs go to a file.
	fileLogger, logFile, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return err
	}
	defer logFile.Close()
	shared.SetLogLevel(fileLogger, r.logger.GetLevel())
	r.SetLogger(fileLogger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var events <-chan tasks.Event
	if serverURL != "" {
		if events, err = server.StreamEvents(ctx, serverURL, ""); err != nil {
			return fmt.Errorf("failed to connect to event stream: %w", err)
		}
		client := services.NewQueueClient(serverURL, r.httpClient)
		for _, id := range ids {
			if _, err := client.Enqueue(ctx, id, ""); err != nil {
				return fmt.Errorf("failed to enqueue %s: %w", id, err)
			}
		}
	} else {
		db := r.historyDatabase()
		if db != nil {
			defer db.Close()
		}
		downloader, err := r.newDownloader(db)
		if err != nil {
			return err
		}
		var unsubscribe func()
		events, unsubscribe = downloader.Reporter().Subscribe(eventBuffer)
		defer unsubscribe()
		for _, id := range ids {
			downloader.Enqueue(id, "")
		}
	}

	model := ui.NewModel(events, len(ids))
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	finished, failed := model.Counts()
	r.writePlain("%d finished, %d failed\n", finished, failed)
	return nil
}
