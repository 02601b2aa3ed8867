// submodule cmd contains command definitions
package main

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

func init() {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}
}

// app builds the root command. Global flags are inherited by every subcommand.
func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:    "ytmp3",
		Usage:   "Download YouTube audio as tagged MP3 files",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only log errors",
			},
		},
		Before:   r.before,
		Commands: r.register(),
	}
}

// before loads the configuration and applies the log level.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if err := r.loadConfig(cmd.String("config")); err != nil {
		return ctx, err
	}

	level, err := shared.ParseLogLevel(r.config.Log.Level)
	if err != nil {
		return ctx, err
	}
	switch {
	case cmd.Bool("verbose"):
		level = log.DebugLevel
	case cmd.Bool("quiet"):
		level = log.ErrorLevel
	}
	shared.SetLogLevel(r.logger, level)
	return ctx, nil
}

// downloadCommand enqueues downloads locally or on a running server
func downloadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "download",
		Aliases:   []string{"dl"},
		Usage:     "Download one or more videos as MP3",
		ArgsUsage: "<video id or url>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Aliases: []string{"n"},
				Usage:   "Output file name (single download only)",
			},
			&cli.StringFlag{
				Name:  "server",
				Usage: "Enqueue on a running ytmp3 server instead of downloading locally",
			},
			&cli.BoolFlag{
				Name:  "open",
				Usage: "Open the output directory when the batch finishes",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output results as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Hide the progress bar",
			},
		},
		Action: r.Download,
	}
}

// serveCommand runs the HTTP API and event stream
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the download queue as an HTTP service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Listen host (overrides server.host)",
			},
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Listen port (overrides server.port)",
			},
		},
		Action: r.Serve,
	}
}

// monitorCommand opens the terminal queue monitor
func monitorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "monitor",
		Aliases:   []string{"tui"},
		Usage:     "Watch downloads in an interactive terminal UI",
		ArgsUsage: "[video id or url]...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "server",
				Usage: "Watch (and enqueue on) a running ytmp3 server",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "Where to write logs while the UI owns the terminal",
				Value: "./tmp/ytmp3-monitor.log",
			},
		},
		Action: r.Monitor,
	}
}

// historyCommand lists recorded downloads
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded downloads",
		Flags: historyFlags(
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
			},
		),
		Action: r.History,
	}
}

// exportCommand renders history to a file
func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export download history as text, JSON, CSV or Markdown",
		Flags: historyFlags(
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Export format (text, json, csv, markdown)",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file (directory for markdown)",
			},
			&cli.BoolFlag{
				Name:  "covers",
				Usage: "Download thumbnails alongside a markdown export",
			},
		),
		Action: r.Export,
	}
}

func historyFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by status (finished, failed)",
		},
		&cli.StringFlag{
			Name:  "resource",
			Usage: "Filter by video id",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Only the most recent N downloads (0 for all)",
		},
	}, extra...)
}

// setupCommand handles setup operations for configuration, database and cookies.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write an example configuration file",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "revert the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "cookies",
				Usage: "Import session cookies from a browser cURL capture",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "curl",
						Usage: "cURL command from browser DevTools (Copy as cURL)",
					},
					&cli.StringFlag{
						Name:  "curl-file",
						Usage: "Path to .sh file containing cURL command",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "Where to save a --curl capture (default: ~/.ytmp3/cookies.sh)",
					},
				},
				Action: r.SetupCookies,
			},
		},
	}
}

// versionCommand prints version and transcoder information
func versionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version and transcoder information",
		Action: r.Version,
	}
}
