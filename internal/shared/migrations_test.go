package shared

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"testing/fstest"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := NewDatabase(MemoryDatabase)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestParseMigrations(t *testing.T) {
	t.Run("embedded scripts", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 {
			t.Fatal("expected at least one migration")
		}
		if got := migrations[0].String(); got != "0000_create_downloads" {
			t.Errorf("expected 0000_create_downloads, got %s", got)
		}
		for i := 1; i < len(migrations); i++ {
			if migrations[i].Version <= migrations[i-1].Version {
				t.Errorf("migrations not sorted: version %d comes after %d", migrations[i].Version, migrations[i-1].Version)
			}
		}
	})

	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []string
		wantErr bool
	}{
		{
			name: "sorted by version, unrelated files ignored",
			files: fstest.MapFS{
				"sql/0002_add_album_up.sql":          {Data: []byte("ALTER TABLE downloads ADD COLUMN album TEXT;")},
				"sql/0002_add_album_down.sql":        {Data: []byte("ALTER TABLE downloads DROP COLUMN album;")},
				"sql/0001_create_downloads_up.sql":   {Data: []byte("CREATE TABLE downloads (id TEXT);")},
				"sql/0001_create_downloads_down.sql": {Data: []byte("DROP TABLE downloads;")},
				"sql/README.md":                      {Data: []byte("notes")},
			},
			want: []string{"0001_create_downloads", "0002_add_album"},
		},
		{
			name: "missing down script",
			files: fstest.MapFS{
				"sql/0001_create_downloads_up.sql": {Data: []byte("CREATE TABLE downloads (id TEXT);")},
			},
			wantErr: true,
		},
		{
			name: "conflicting names for one version",
			files: fstest.MapFS{
				"sql/0001_create_downloads_up.sql": {Data: []byte("CREATE TABLE downloads (id TEXT);")},
				"sql/0001_create_history_down.sql": {Data: []byte("DROP TABLE downloads;")},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrations, err := parseMigrations(tt.files, "sql")
			if tt.wantErr {
				if !errors.Is(err, ErrMigration) {
					t.Fatalf("expected ErrMigration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got := make([]string, len(migrations))
			for i, m := range migrations {
				got[i] = m.String()
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- history table
CREATE TABLE downloads (
    id TEXT PRIMARY KEY -- uuid
);

INSERT INTO downloads_sequence (id, value) VALUES (1, 0);
`
	got := splitStatements(script)
	want := []string{
		"CREATE TABLE downloads (\nid TEXT PRIMARY KEY\n)",
		"INSERT INTO downloads_sequence (id, value) VALUES (1, 0)",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestMigrationRunner(t *testing.T) {
	t.Run("run then roll back", func(t *testing.T) {
		db := openMemory(t)

		version, err := SchemaVersion(db)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if version != noVersion {
			t.Errorf("expected no version on a fresh database, got %d", version)
		}

		ran, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
		if len(ran) == 0 {
			t.Fatal("expected at least one migration to be applied")
		}
		if _, err := db.Exec("SELECT 1 FROM downloads LIMIT 1"); err != nil {
			t.Errorf("downloads table should exist after migrations: %v", err)
		}

		version, _ = SchemaVersion(db)
		if last := ran[len(ran)-1]; version != last.Version {
			t.Errorf("expected schema version %d, got %d", last.Version, version)
		}

		var name string
		if err := db.QueryRow("SELECT name FROM schema_migrations WHERE version = ?", version).Scan(&name); err != nil {
			t.Fatalf("failed to read migration record: %v", err)
		}
		if name != ran[len(ran)-1].Name {
			t.Errorf("expected recorded name %s, got %s", ran[len(ran)-1].Name, name)
		}

		rolled, err := RollbackMigration(db)
		if err != nil {
			t.Fatalf("failed to roll back: %v", err)
		}
		if rolled.Version != version {
			t.Errorf("expected version %d rolled back, got %d", version, rolled.Version)
		}
		if len(ran) == 1 {
			if _, err := db.Exec("SELECT 1 FROM downloads LIMIT 1"); err == nil {
				t.Error("expected downloads table to be dropped")
			}
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		db := openMemory(t)
		if _, err := RunMigrations(db); err != nil {
			t.Fatalf("failed to run migrations first time: %v", err)
		}
		ran, err := RunMigrations(db)
		if err != nil {
			t.Fatalf("failed to run migrations second time: %v", err)
		}
		if len(ran) != 0 {
			t.Errorf("expected nothing to apply on second run, got %v", ran)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("failed to query schema_migrations: %v", err)
		}
		migrations, _ := loadMigrations()
		if count != len(migrations) {
			t.Errorf("expected %d migrations to be applied, got %d", len(migrations), count)
		}
	})

	t.Run("rollback on empty schema", func(t *testing.T) {
		db := openMemory(t)
		if _, err := RollbackMigration(db); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
	})
}

func TestOpenDatabase(t *testing.T) {
	t.Run("creates parent directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", "history.db")
		db, err := OpenDatabase(DatabaseConfig{Path: path, MaxOpenConns: 2, MaxIdleConns: 1})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected database file at %s: %v", path, err)
		}
		if got := db.Stats().MaxOpenConnections; got != 2 {
			t.Errorf("expected 2 max open connections, got %d", got)
		}
	})

	t.Run("memory database keeps one connection", func(t *testing.T) {
		db, err := OpenDatabase(DatabaseConfig{Path: MemoryDatabase, MaxOpenConns: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer db.Close()

		if got := db.Stats().MaxOpenConnections; got != 1 {
			t.Errorf("expected 1 max open connection, got %d", got)
		}
		if _, err := db.Exec("SELECT 1 FROM downloads LIMIT 1"); err != nil {
			t.Errorf("expected migrated schema: %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		if _, err := OpenDatabase(DatabaseConfig{}); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}
