package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/repositories"
	"github.com/desertthunder/ytmp3/internal/shared"
	"github.com/desertthunder/ytmp3/internal/tasks"
	tu "github.com/desertthunder/ytmp3/internal/testing"
)

// testEnv is a config file pointing every path into a temp directory.
type testEnv struct {
	dir        string
	configPath string
	musicDir   string
	dbPath     string
}

func newTestEnv(t *testing.T, extra string) testEnv {
	t.Helper()
	dir := t.TempDir()
	env := testEnv{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		musicDir:   filepath.Join(dir, "music"),
		dbPath:     filepath.Join(dir, "ytmp3.db"),
	}

	config := fmt.Sprintf(`
[download]
output_directory = %q

[database]
path = %q
max_open_conns = 1
max_idle_conns = 1

[server]
host = "127.0.0.1"
port = 0

[transcoder]
binary_path = %q
%s`, env.musicDir, env.dbPath, filepath.Join(dir, "no-ffmpeg"), extra)

	if err := os.WriteFile(env.configPath, []byte(config), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return env
}

func newTestRunner(output *bytes.Buffer, deps tasks.Deps) *Runner {
	return NewRunner(RunnerOpts{
		Output: output,
		Logger: log.New(&bytes.Buffer{}),
		Deps:   deps,
	})
}

func run(t *testing.T, r *Runner, args ...string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return r.app().Run(ctx, append([]string{"ytmp3"}, args...))
}

func seedHistory(t *testing.T, dbPath string, downloads ...*models.Download) {
	t.Helper()
	db, err := shared.OpenDatabase(shared.DatabaseConfig{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	repo := repositories.NewDownloadRepository(db)
	for _, d := range downloads {
		if err := repo.Create(d); err != nil {
			t.Fatalf("failed to seed download: %v", err)
		}
	}
}

func finishedDownload(taskID, resourceID string) *models.Download {
	return models.NewFinishedDownload(models.TaskResult{
		TaskID:     taskID,
		ResourceID: resourceID,
		File:       "/music/" + resourceID + ".mp3",
		Artist:     "Artist",
		Title:      "Song " + resourceID,
		Stats:      &models.TransferStats{TransferredBytes: 2048, Runtime: 2 * time.Second},
	})
}

func failedDownload(taskID, resourceID string) *models.Download {
	return models.NewFailedDownload(
		&models.TaskError{TaskID: taskID, ResourceID: resourceID, Stage: models.StageResolve, Err: errors.New("video unavailable")},
		&models.TaskResult{TaskID: taskID, ResourceID: resourceID},
	)
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Fatal("expected default config")
			}
			if runner.config.Download.MaxConcurrency != 1 {
				t.Errorf("expected default concurrency 1, got %d", runner.config.Download.MaxConcurrency)
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				HTTPClient: nil,
			})

			if runner.httpClient != http.DefaultClient {
				t.Error("expected httpClient to default to http.DefaultClient")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			if err := runner.writeJSON(data, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil || !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil || !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("Hello %s, count: %d\n", "World", 42); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := "Hello World, count: 42\n"
			if result := output.String(); result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("writePlainln surrounds with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			runner.writePlainln("Next steps:")
			if result := output.String(); result != "\nNext steps:\n" {
				t.Errorf("expected surrounding newlines, got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			if err := runner.writePlain("test"); err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"download", "serve", "monitor", "history", "export", "setup", "version"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("expected command %d to be %s, got %s", i, name, commands[i].Name)
			}
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("loads config and level", func(t *testing.T) {
		env := newTestEnv(t, "\n[log]\nlevel = \"warn\"\n")
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "version"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.config.Database.Path != env.dbPath {
			t.Errorf("expected database path %s, got %s", env.dbPath, runner.config.Database.Path)
		}
		if runner.logger.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", runner.logger.GetLevel())
		}
	})

	t.Run("verbose overrides config", func(t *testing.T) {
		env := newTestEnv(t, "")
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "--verbose", "version"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.logger.GetLevel() != log.DebugLevel {
			t.Errorf("expected debug level, got %v", runner.logger.GetLevel())
		}
	})

	t.Run("missing config keeps defaults", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", filepath.Join(t.TempDir(), "absent.toml"), "-q", "version"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.config.Server.Port != 3000 {
			t.Errorf("expected default port, got %d", runner.config.Server.Port)
		}
		if runner.logger.GetLevel() != log.ErrorLevel {
			t.Errorf("expected error level, got %v", runner.logger.GetLevel())
		}
	})

	t.Run("invalid config fails", func(t *testing.T) {
		env := newTestEnv(t, "\n[log]\nlevel = \"chatty\"\n")
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "version"); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestDownload(t *testing.T) {
	src := func() *tu.MockSource {
		return &tu.MockSource{
			Resources: map[string]*models.Resource{
				"dQw4w9WgXcQ": tu.NewResource("dQw4w9WgXcQ", "Artist - Song", 128),
			},
			Payload: []byte("audio payload"),
		}
	}

	t.Run("records finished and failed tasks", func(t *testing.T) {
		env := newTestEnv(t, "")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{Source: src(), Transcoder: &tu.MockTranscoder{}})

		err := run(t, runner, "-c", env.configPath, "download", "--no-progress",
			"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "9bZkp7q19f0")
		if err == nil || !strings.Contains(err.Error(), "1 of 2 downloads failed") {
			t.Fatalf("expected partial failure, got %v", err)
		}

		result := output.String()
		if !strings.Contains(result, "✓ Artist - Song -> "+filepath.Join(env.musicDir, "Artist - Song.mp3")) {
			t.Errorf("expected finished line, got %s", result)
		}
		if !strings.Contains(result, "✗ 9bZkp7q19f0 failed at resolve") {
			t.Errorf("expected failed line, got %s", result)
		}
		tu.AssertFileExists(t, filepath.Join(env.musicDir, "Artist - Song.mp3"))

		output.Reset()
		if err := run(t, runner, "-c", env.configPath, "history", "--json"); err != nil {
			t.Fatalf("history failed: %v", err)
		}
		var records []map[string]any
		if err := json.Unmarshal(output.Bytes(), &records); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("expected 2 recorded downloads, got %d", len(records))
		}
	})

	t.Run("json output", func(t *testing.T) {
		env := newTestEnv(t, "")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{Source: src(), Transcoder: &tu.MockTranscoder{}})

		if err := run(t, runner, "-c", env.configPath, "download", "--json", "--name", "custom.mp3", "dQw4w9WgXcQ"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var results []downloadResult
		if err := json.Unmarshal(output.Bytes(), &results); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(results) != 1 || results[0].Status != "finished" {
			t.Fatalf("expected one finished result, got %+v", results)
		}
		if want := filepath.Join(env.musicDir, "custom.mp3"); results[0].Result.File != want {
			t.Errorf("expected %s, got %s", want, results[0].Result.File)
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		env := newTestEnv(t, "")
		tests := []struct {
			name string
			args []string
			want error
		}{
			{"no ids", []string{"download"}, shared.ErrMissingArgument},
			{"invalid id", []string{"download", "abc"}, shared.ErrInvalidInput},
			{"name with several ids", []string{"download", "--name", "x.mp3", "dQw4w9WgXcQ", "9bZkp7q19f0"}, shared.ErrInvalidArgument},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{Source: src(), Transcoder: &tu.MockTranscoder{}})
				err := run(t, runner, append([]string{"-c", env.configPath}, tt.args...)...)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})

	t.Run("remote enqueue", func(t *testing.T) {
		var got []models.EnqueueRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req models.EnqueueRequest
			json.NewDecoder(r.Body).Decode(&req)
			got = append(got, req)
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(models.EnqueueResponse{TaskID: "task-" + req.ResourceID, ResourceID: req.ResourceID})
		}))
		defer srv.Close()

		env := newTestEnv(t, "")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "download", "--server", srv.URL, "https://youtu.be/dQw4w9WgXcQ"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 1 || got[0].ResourceID != "dQw4w9WgXcQ" {
			t.Errorf("expected normalised id to be posted, got %+v", got)
		}
		if !strings.Contains(output.String(), "Queued dQw4w9WgXcQ as task task-dQw4w9WgXcQ") {
			t.Errorf("expected queued line, got %s", output.String())
		}
	})

	t.Run("remote enqueue rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(models.ErrorResponse{Error: "invalid input"})
		}))
		defer srv.Close()

		env := newTestEnv(t, "")
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		err := run(t, runner, "-c", env.configPath, "download", "--server", srv.URL, "dQw4w9WgXcQ")
		if !errors.Is(err, shared.ErrUnexpectedStatus) {
			t.Errorf("expected ErrUnexpectedStatus, got %v", err)
		}
	})
}

func TestHistoryAndExport(t *testing.T) {
	env := newTestEnv(t, "")
	seedHistory(t, env.dbPath,
		finishedDownload("t1", "aaaaaaaaaaa"),
		failedDownload("t2", "bbbbbbbbbbb"),
		finishedDownload("t3", "ccccccccccc"),
	)

	t.Run("history text", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "history"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		result := output.String()
		for _, want := range []string{
			"Downloads (3)",
			"Artist - Song aaaaaaaaaaa",
			"resolve: video unavailable",
			"2.0 KiB",
			"0:02",
		} {
			if !strings.Contains(result, want) {
				t.Errorf("expected %q in output, got %s", want, result)
			}
		}
	})

	t.Run("history filters", func(t *testing.T) {
		tests := []struct {
			args []string
			want []string
		}{
			{[]string{"--status", "failed"}, []string{"t2"}},
			{[]string{"--limit", "2"}, []string{"t2", "t3"}},
			{[]string{"--resource", "aaaaaaaaaaa"}, []string{"t1"}},
		}
		for _, tt := range tests {
			t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
				output := &bytes.Buffer{}
				runner := newTestRunner(output, tasks.Deps{})

				args := append([]string{"-c", env.configPath, "history", "--json"}, tt.args...)
				if err := run(t, runner, args...); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}

				var records []struct {
					TaskID string `json:"taskId"`
				}
				if err := json.Unmarshal(output.Bytes(), &records); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				ids := make([]string, len(records))
				for i, rec := range records {
					ids[i] = rec.TaskID
				}
				if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
					t.Errorf("expected %v, got %v", tt.want, ids)
				}
			})
		}
	})

	t.Run("history rejects bad flags", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "history", "--status", "running"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if err := run(t, runner, "-c", env.configPath, "history", "--limit", "-1"); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})

	t.Run("export csv", func(t *testing.T) {
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})
		path := filepath.Join(t.TempDir(), "history.csv")

		if err := run(t, runner, "-c", env.configPath, "export", "-f", "csv", "-o", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.TrimSpace(output.String()) != path {
			t.Errorf("expected written path, got %q", output.String())
		}
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "3,t3,ccccccccccc,finished") {
			t.Errorf("expected CSV rows, got %s", content)
		}
	})

	t.Run("export markdown", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})
		dir := filepath.Join(t.TempDir(), "report")

		if err := run(t, runner, "-c", env.configPath, "export", "--format", "md", "--output", dir); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, filepath.Join(dir, "README.md"))
	})

	t.Run("export unknown format", func(t *testing.T) {
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "export", "-f", "xml"); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("export empty history", func(t *testing.T) {
		empty := newTestEnv(t, "")
		runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

		if err := run(t, runner, "-c", empty.configPath, "export"); !errors.Is(err, shared.ErrDownloadNotFound) {
			t.Errorf("expected ErrDownloadNotFound, got %v", err)
		}
	})
}

func TestSetup(t *testing.T) {
	t.Run("config", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.toml")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})

		if err := run(t, runner, "-c", path, "setup", "config"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if !strings.Contains(output.String(), "Configuration written to "+path) {
			t.Errorf("expected confirmation, got %s", output.String())
		}

		if err := run(t, runner, "-c", path, "setup", "config"); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("database", func(t *testing.T) {
		env := newTestEnv(t, "")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, env.dbPath)
		if !strings.Contains(output.String(), "Applied 0000_create_downloads") {
			t.Errorf("expected applied migration, got %s", output.String())
		}
		if !strings.Contains(output.String(), "Database ready at "+env.dbPath+" (schema version 0)") {
			t.Errorf("expected confirmation, got %s", output.String())
		}

		output.Reset()
		if err := run(t, runner, "-c", env.configPath, "setup", "database"); err != nil {
			t.Fatalf("expected no error on second run, got %v", err)
		}
		if strings.Contains(output.String(), "Applied") {
			t.Errorf("expected no migrations on second run, got %s", output.String())
		}
	})

	t.Run("database rollback", func(t *testing.T) {
		env := newTestEnv(t, "")
		output := &bytes.Buffer{}
		runner := newTestRunner(output, tasks.Deps{})

		if err := run(t, runner, "-c", env.configPath, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		output.Reset()
		if err := run(t, runner, "-c", env.configPath, "setup", "database", "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Rolled back 0000_create_downloads") {
			t.Errorf("expected rollback confirmation, got %s", output.String())
		}

		err := run(t, runner, "-c", env.configPath, "setup", "database", "--rollback")
		if !errors.Is(err, shared.ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
	})

	t.Run("cookies", func(t *testing.T) {
		env := newTestEnv(t, "")
		capture := `curl 'https://www.youtube.com/watch?v=dQw4w9WgXcQ' -H 'Cookie: VISITOR_INFO1_LIVE=abc; PREF=f6=40000000' -H 'Accept-Language: en-US'`

		t.Run("from file", func(t *testing.T) {
			curlFile := filepath.Join(env.dir, "capture.sh")
			if err := os.WriteFile(curlFile, []byte(capture), 0600); err != nil {
				t.Fatal(err)
			}
			output := &bytes.Buffer{}
			runner := newTestRunner(output, tasks.Deps{})

			if err := run(t, runner, "-c", env.configPath, "setup", "cookies", "--curl-file", curlFile); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), "Parsed 2 cookies and 1 headers") {
				t.Errorf("expected cookie count, got %s", output.String())
			}
			if !strings.Contains(output.String(), `network.cookie_file = "`+curlFile+`"`) {
				t.Errorf("expected next steps, got %s", output.String())
			}
		})

		t.Run("from command saves capture", func(t *testing.T) {
			saved := filepath.Join(env.dir, "saved", "cookies.sh")
			runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

			if err := run(t, runner, "-c", env.configPath, "setup", "cookies", "--curl", capture, "--output", saved); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if content := tu.MustReadFile(t, saved); !strings.Contains(content, "VISITOR_INFO1_LIVE=abc") {
				t.Errorf("expected saved capture, got %s", content)
			}
		})

		t.Run("argument errors", func(t *testing.T) {
			runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{})

			if err := run(t, runner, "-c", env.configPath, "setup", "cookies"); !errors.Is(err, shared.ErrMissingArgument) {
				t.Errorf("expected ErrMissingArgument, got %v", err)
			}
			err := run(t, runner, "-c", env.configPath, "setup", "cookies", "--curl", capture, "--curl-file", "x.sh")
			if !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument, got %v", err)
			}
			if err := run(t, runner, "-c", env.configPath, "setup", "cookies", "--curl", "curl https://example.com"); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	})
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t, "")
	output := &bytes.Buffer{}
	runner := newTestRunner(output, tasks.Deps{})

	if err := run(t, runner, "-c", env.configPath, "version"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	result := output.String()
	if !strings.HasPrefix(result, "ytmp3 "+version+"\n") {
		t.Errorf("expected version line, got %s", result)
	}
	if !strings.Contains(result, "ffmpeg: not found") {
		t.Errorf("expected missing transcoder, got %s", result)
	}
}

func TestServe(t *testing.T) {
	env := newTestEnv(t, "")
	runner := newTestRunner(&bytes.Buffer{}, tasks.Deps{Source: &tu.MockSource{}, Transcoder: &tu.MockTranscoder{}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runner.app().Run(ctx, []string{"ytmp3", "-c", env.configPath, "serve"})
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(env.dbPath + ".lock"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("serve never acquired its lock")
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Run("second instance refused", func(t *testing.T) {
		second := newTestRunner(&bytes.Buffer{}, tasks.Deps{Source: &tu.MockSource{}, Transcoder: &tu.MockTranscoder{}})
		if err := run(t, second, "-c", env.configPath, "serve"); !errors.Is(err, shared.ErrAlreadyRunning) {
			t.Errorf("expected ErrAlreadyRunning, got %v", err)
		}
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}
