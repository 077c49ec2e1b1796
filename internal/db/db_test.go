package db

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

const failedToInitDB = "Failed to initialize database: %v"

func TestNewSQLite(t *testing.T) {
	db := NewSQLite(":memory:")

	if db == nil {
		t.Fatal("Expected non-nil SQLite instance")
	}
	if db.conn != nil {
		t.Error("Expected connection to be nil initially")
	}
	if err := db.Close(); err != nil {
		t.Errorf("Expected closing an unopened database to succeed, got %v", err)
	}
}

func TestSQLiteBasicOperations(t *testing.T) {
	SetLogger(zerolog.New(os.Stdout).Level(zerolog.ErrorLevel))

	path := filepath.Join(t.TempDir(), "test.db")
	db := NewSQLite(path)
	defer db.Close()

	t.Run("InitDb creates tables", func(t *testing.T) {
		if err := db.InitDb(); err != nil {
			t.Fatalf(failedToInitDB, err)
		}
		if err := db.Get().Ping(); err != nil {
			t.Errorf("Failed to ping database: %v", err)
		}
	})

	t.Run("Verify tables are created", func(t *testing.T) {
		for _, table := range []string{"sites", "elements"} {
			var name string
			err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
			if err != nil {
				t.Errorf("Expected table %s to exist: %v", table, err)
			}
		}
	})

	t.Run("InitDb is idempotent", func(t *testing.T) {
		if err := db.InitDb(); err != nil {
			t.Errorf("Expected second InitDb to succeed, got %v", err)
		}
	})

	t.Run("Elements cascade with their site", func(t *testing.T) {
		if _, err := db.Exec(`INSERT INTO sites (id, name, template) VALUES (?, ?, ?)`, "s1", "Trattoria", "restaurant"); err != nil {
			t.Fatalf("Failed to insert site: %v", err)
		}
		if _, err := db.Exec(`INSERT INTO elements (id, site_id, kind, name) VALUES (?, ?, ?, ?)`, "e1", "s1", "image", "hero"); err != nil {
			t.Fatalf("Failed to insert element: %v", err)
		}

		if _, err := db.Exec(`DELETE FROM sites WHERE id = ?`, "s1"); err != nil {
			t.Fatalf("Failed to delete site: %v", err)
		}

		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM elements`).Scan(&count); err != nil {
			t.Fatalf("Failed to count elements: %v", err)
		}
		if count != 0 {
			t.Errorf("Expected elements to be deleted with their site, got %d", count)
		}
	})
}

func TestInitDbBadPath(t *testing.T) {
	db := NewSQLite(filepath.Join(t.TempDir(), "missing", "dir", "test.db"))
	defer db.Close()

	if err := db.InitDb(); err == nil {
		t.Error("Expected error for a database in a missing directory")
	}
}
