package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/repositories"
	"github.com/desertthunder/ytmp3/internal/session"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	deps       tasks.Deps
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Deps       tasks.Deps // collaborators handed to every downloader, mainly for tests
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		deps:       opts.Deps,
	}
}

// SetLogger replaces the logger used by subsequent commands.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, serveCommand, monitorCommand, historyCommand, exportCommand, setupCommand, versionCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the configuration at path, keeping defaults when the file is absent.
func (r *Runner) loadConfig(path string) error {
	r.configPath = path
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	if err := config.Validate(); err != nil {
		return err
	}
	r.config = config
	return nil
}

// openDatabase opens the history database and applies pending migrations.
func (r *Runner) openDatabase() (*sql.DB, error) {
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", r.config.Database.Path, err)
	}
	return db, nil
}

// newDownloader builds a downloader from the loaded configuration.
//
// The session is seeded from network.cookie_file when set. When db is non-nil every
// terminal outcome is recorded in the download history.
func (r *Runner) newDownloader(db *sql.DB) (*tasks.Downloader, error) {
	deps := r.deps
	if deps.Logger == nil {
		deps.Logger = r.logger
	}
	if deps.Session == nil {
		sess, err := session.New()
		if err != nil {
			return nil, err
		}
		if path := r.config.Network.CookieFile; path != "" {
			n, err := sess.ImportCurlFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to import cookie file: %w", err)
			}
			r.logger.Debug("imported session cookies", "file", path, "cookies", n)
		}
		deps.Session = sess
	}

	d, err := tasks.NewDownloader(tasks.OptionsFromConfig(r.config), deps)
	if err != nil {
		return nil, err
	}

	if db != nil {
		repo := repositories.NewDownloadRepository(db)
		repositories.NewHistoryRecorder(repo, r.logger).Attach(d.Reporter())
	}
	return d, nil
}

// historyDatabase opens the database for recording, logging instead of failing when unavailable.
func (r *Runner) historyDatabase() *sql.DB {
	db, err := r.openDatabase()
	if err != nil {
		r.logger.Warn("download history disabled", "error", err)
		return nil
	}
	return db
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
