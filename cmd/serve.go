package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytmp3/internal/repositories"
	"github.com/desertthunder/ytmp3/internal/server"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

// eventBuffer sizes the hub's reporter subscription.
const eventBuffer = 256

// Serve runs the queue behind the HTTP API until interrupted.
//
// One server per database: a second instance fails with [shared.ErrAlreadyRunning].
// Tasks still running at shutdown are given until the process exits; waiting tasks are dropped.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	cfg := r.config.Server
	if host := cmd.String("host"); host != "" {
		cfg.Host = host
	}
	if port := cmd.Int("port"); port != 0 {
		cfg.Port = port
	}

	lock := flock.New(r.config.Database.Path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s is locked", shared.ErrAlreadyRunning, lock.Path())
	}
	defer lock.Unlock()

	db := r.historyDatabase()
	if db != nil {
		defer db.Close()
	}

	downloader, err := r.newDownloader(db)
	if err != nil {
		return err
	}

	var history server.History
	if db != nil {
		history = repositories.NewDownloadRepository(db)
	}

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.Logging(r.logger))
	server.NewAPI(downloader, history, r.logger).Register(router)

	hub := server.NewHub(r.logger)
	router.Handler(hub)

	events, unsubscribe := downloader.Reporter().Subscribe(eventBuffer)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx, events)
	}()

	srv := server.New(cfg.Addr(), router, r.logger)
	r.logger.Info("queue ready", "url", cfg.URL(), "history", db != nil)

	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
