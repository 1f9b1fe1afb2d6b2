package database

import (
	"path/filepath"
	"testing"
)

func TestOpenRunsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	v, err := Version(db)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 4 {
		t.Errorf("version = %d, want 4", v)
	}

	for _, table := range []string{"users", "tasks", "history", "rewards", "redemptions", "messages"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
	db.Close()

	// Reopening an up-to-date database is a no-op.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	if v, _ := Version(db); v != 4 {
		t.Errorf("version after reopen = %d, want 4", v)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected an error for an empty path")
	}
}
