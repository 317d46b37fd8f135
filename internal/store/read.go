package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Row is one persisted object record.
type Row struct {
	UUID      string
	ClassName string

	// ObjectID is the server-assigned id, "" until confirmed saved.
	ObjectID string

	// Snapshot is the serialized document; HasSnapshot is false for
	// placeholder rows that have been keyed but never written.
	Snapshot    string
	HasSnapshot bool

	// PendingDelete marks rows scheduled for eventual deletion. Such rows
	// are excluded from query candidate selection.
	PendingDelete bool
}

const rowColumns = "uuid, className, objectId, json, isDeletingEventually"

func scanRow(scan func(dest ...any) error) (Row, error) {
	var (
		row      Row
		objectID sql.NullString
		snapshot sql.NullString
		deleting int
	)
	if err := scan(&row.UUID, &row.ClassName, &objectID, &snapshot, &deleting); err != nil {
		return Row{}, err
	}
	row.ObjectID = objectID.String
	row.Snapshot = snapshot.String
	row.HasSnapshot = snapshot.Valid
	row.PendingDelete = deleting != 0
	return row, nil
}

// GetRow reads the row for an opaque key. A missing row is a cache miss.
func (s *Store) GetRow(ctx context.Context, uuid string) (Row, error) {
	var row Row
	err := s.serialize(ctx, func() error {
		r := s.db.QueryRowContext(ctx, "SELECT "+rowColumns+" FROM Objects WHERE uuid = ?", uuid)
		var err error
		row, err = scanRow(r.Scan)
		if err == sql.ErrNoRows {
			return NewCacheMiss("no row for key %s", uuid)
		}
		if err != nil {
			return fmt.Errorf("get row: %w", err)
		}
		return nil
	})
	return row, err
}

// RowByIdentity reads the row for a (className, objectId) pair.
// A missing row is a cache miss: the object was never cached.
func (s *Store) RowByIdentity(ctx context.Context, className, objectID string) (Row, error) {
	var row Row
	err := s.serialize(ctx, func() error {
		r := s.db.QueryRowContext(ctx,
			"SELECT "+rowColumns+" FROM Objects WHERE className = ? AND objectId = ?",
			className, objectID)
		var err error
		row, err = scanRow(r.Scan)
		if err == sql.ErrNoRows {
			return NewCacheMiss("no row for %s:%s", className, objectID)
		}
		if err != nil {
			return fmt.Errorf("row by identity: %w", err)
		}
		return nil
	})
	return row, err
}

// RowsByClass returns all non-pending-delete rows of a class. This is the
// candidate set for unscoped queries.
func (s *Store) RowsByClass(ctx context.Context, className string) ([]Row, error) {
	return s.queryRows(ctx,
		"SELECT "+rowColumns+" FROM Objects WHERE className = ? AND isDeletingEventually = 0",
		className)
}

// RowsInGroup returns the non-pending-delete rows of a class that belong to
// the named group, joining Objects to Dependencies. This is the candidate
// set for pin-scoped queries.
func (s *Store) RowsInGroup(ctx context.Context, group, className string) ([]Row, error) {
	return s.queryRows(ctx, `
		SELECT `+rowColumns+` FROM Objects
		JOIN Dependencies USING (uuid)
		WHERE Dependencies.key = ? AND className = ? AND isDeletingEventually = 0
	`, group, className)
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]Row, error) {
	var out []Row
	err := s.serialize(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query rows: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			row, err := scanRow(rows.Scan)
			if err != nil {
				return fmt.Errorf("scan row: %w", err)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	return out, err
}

// ClassNames returns the distinct class names present in the store.
func (s *Store) ClassNames(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "SELECT DISTINCT className FROM Objects ORDER BY className")
}

// GroupNames returns the distinct group ("pin") names present in the store.
func (s *Store) GroupNames(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, "SELECT DISTINCT key FROM Dependencies ORDER BY key")
}

func (s *Store) queryStrings(ctx context.Context, query string) ([]string, error) {
	var out []string
	err := s.serialize(ctx, func() error {
		rows, err := s.db.QueryContext(ctx, query)
		if err != nil {
			return fmt.Errorf("query strings: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var s string
			if err := rows.Scan(&s); err != nil {
				return fmt.Errorf("scan string: %w", err)
			}
			out = append(out, s)
		}
		return rows.Err()
	})
	return out, err
}
