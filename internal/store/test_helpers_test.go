package store

import (
	"context"
	"path/filepath"
	"testing"
)

// createTestStore creates a file-backed store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// putRow upserts a full row in its own transaction.
func putRow(t *testing.T, s *Store, row Row) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.UpsertRow(row)
	})
	if err != nil {
		t.Fatalf("UpsertRow(%s) failed: %v", row.UUID, err)
	}
}

// addEdge adds a group membership edge in its own transaction.
func addEdge(t *testing.T, s *Store, group, uuid string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx *Tx) error {
		return tx.AddEdge(group, uuid)
	})
	if err != nil {
		t.Fatalf("AddEdge(%s, %s) failed: %v", group, uuid, err)
	}
}

func snapshotRow(uuid, className, objectID, snapshot string) Row {
	return Row{
		UUID:        uuid,
		ClassName:   className,
		ObjectID:    objectID,
		Snapshot:    snapshot,
		HasSnapshot: true,
	}
}
