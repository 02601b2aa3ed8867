package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/desertthunder/ytmp3/internal/session"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/transcode"
	"github.com/urfave/cli/v3"
)

// SetupConfig writes the example configuration to the --config path.
func (r *Runner) SetupConfig(ctx context.Context, cmd *cli.Command) error {
	if err := shared.CreateConfigFile(r.configPath); err != nil {
		return err
	}
	r.logger.Info("config file created", "path", r.configPath)
	r.writePlain("✓ Configuration written to %s\n", r.configPath)
	return nil
}

// SetupDatabase initializes the history database and runs pending migrations.
//
// A missing config file is created from the template first. With --rollback
// the most recent migration is reverted instead.
func (r *Runner) SetupDatabase(ctx context.Context, cmd *cli.Command) error {
	if _, err := os.Stat(r.configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", r.configPath)
		if err := shared.CreateConfigFile(r.configPath); err != nil {
			r.logger.Warn("failed to create config file, using defaults", "error", err)
		} else if err := r.loadConfig(r.configPath); err != nil {
			r.logger.Warn("failed to load created config, using defaults", "error", err)
		}
	}

	path := r.config.Database.Path
	r.logger.Info("initializing database", "path", path)

	db, err := shared.NewDatabase(path)
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Bool("rollback") {
		m, err := shared.RollbackMigration(db)
		if err != nil {
			return err
		}
		r.logger.Info("rolled back migration", "migration", m.String())
		r.writePlain("✓ Rolled back %s\n", m)
		return nil
	}

	ran, err := shared.RunMigrations(db)
	if err != nil {
		return err
	}
	for _, m := range ran {
		r.writePlain("✓ Applied %s\n", m)
	}

	version, err := shared.SchemaVersion(db)
	if err != nil {
		return err
	}
	r.logger.Infof("setup complete for database: %v", path)
	r.writePlain("✓ Database ready at %s (schema version %d)\n", path, version)
	return nil
}

// SetupCookies validates a browser cURL capture and reports what it would seed.
//
// A --curl command is saved to disk so that network.cookie_file can point at it.
func (r *Runner) SetupCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")
	outputPath := cmd.String("output")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	if curlCmd != "" {
		if _, err := shared.ParseCurlCommand([]byte(curlCmd)); err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}

		if outputPath == "" {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("failed to get home directory: %w", err)
			}
			outputPath = filepath.Join(homeDir, ".ytmp3", "cookies.sh")
		}
		if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(outputPath, []byte(curlCmd+"\n"), 0600); err != nil {
			return fmt.Errorf("failed to write cURL file: %w", err)
		}
		r.logger.Info("cURL capture saved", "path", outputPath)
		curlFile = outputPath
	}

	sess, err := session.New()
	if err != nil {
		return err
	}
	cookies, err := sess.ImportCurlFile(curlFile)
	if err != nil {
		return fmt.Errorf("failed to parse cURL file: %w", err)
	}
	headers := sess.Headers()

	r.logger.Debug("imported capture", "file", curlFile, "cookies", cookies, "headers", len(headers))

	r.writePlain("✓ Parsed %d cookies and %d headers from %s\n", cookies, len(headers), curlFile)
	if cookies == 0 {
		r.writePlain("Warning: the capture carries no cookies\n")
	}
	r.writePlainln("Next steps:")
	r.writePlain("1. Update %s with: network.cookie_file = \"%s\"\n", r.configPath, curlFile)
	r.writePlain("2. Run 'ytmp3 download <video>' to use the session\n")
	return nil
}

// Version prints the build version and the resolved transcoder.
func (r *Runner) Version(ctx context.Context, cmd *cli.Command) error {
	r.writePlain("ytmp3 %s\n", version)

	ff, err := transcode.NewFFmpeg(r.config.Transcoder.BinaryPath, r.logger)
	if err != nil {
		r.writePlain("ffmpeg: not found (%v)\n", err)
		return nil
	}
	r.writePlain("ffmpeg: %s\n", ff.Binary())
	return nil
}
