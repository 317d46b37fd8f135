package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	for _, table := range []string{"Objects", "Dependencies"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_SetsSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("query user_version failed: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestOpen_EnablesWALMode(t *testing.T) {
	s := createTestStore(t)

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("query journal_mode failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}
}

func TestIdentityIndexRejectsDuplicates(t *testing.T) {
	s := createTestStore(t)

	putRow(t, s, snapshotRow("u1", "Score", "abc", "{}"))

	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.UpsertRow(snapshotRow("u2", "Score", "abc", "{}"))
	})
	if err == nil {
		t.Fatal("expected unique constraint violation for duplicate (className, objectId)")
	}
}

func TestIdentityIndexAllowsManyUnsavedRows(t *testing.T) {
	s := createTestStore(t)

	// NULL objectId rows are outside the partial unique index.
	putRow(t, s, snapshotRow("u1", "Score", "", "{}"))
	putRow(t, s, snapshotRow("u2", "Score", "", "{}"))
	putRow(t, s, snapshotRow("u3", "Score", "", "{}"))
}

func TestChunks(t *testing.T) {
	list := []string{"a", "b", "c", "d", "e"}

	got := chunks(list, 2)
	if len(got) != 3 {
		t.Fatalf("chunks() returned %d chunks, want 3", len(got))
	}
	if len(got[0]) != 2 || len(got[1]) != 2 || len(got[2]) != 1 {
		t.Errorf("chunk sizes = %d,%d,%d, want 2,2,1", len(got[0]), len(got[1]), len(got[2]))
	}

	if got := chunks(nil, 10); got != nil {
		t.Errorf("chunks(nil) = %v, want nil", got)
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(1); got != "?" {
		t.Errorf("placeholders(1) = %q, want %q", got, "?")
	}
	if got := placeholders(3); got != "?, ?, ?" {
		t.Errorf("placeholders(3) = %q, want %q", got, "?, ?, ?")
	}
}
