package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// InsertPlaceholder writes the placeholder row backing a freshly allocated
// opaque key. Uses ON CONFLICT(uuid) DO NOTHING for idempotency: the key
// allocator coalesces concurrent callers, but a replayed allocation must
// not fail.
func (s *Store) InsertPlaceholder(ctx context.Context, uuid, className, objectID string) error {
	return s.serialize(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO Objects (uuid, className, objectId)
			VALUES (?, ?, ?)
			ON CONFLICT(uuid) DO NOTHING
		`, uuid, className, nullable(objectID))
		if err != nil {
			return fmt.Errorf("insert placeholder: %w", err)
		}
		return nil
	})
}

// Tx exposes the store's mutations inside a transaction. All multi-row
// operations (save-graph, unpin, delete) go through Update so that either
// every row/edge mutation commits or none do.
type Tx struct {
	ctx context.Context
	tx  *sql.Tx
}

// Update runs fn inside a single transaction on the executor goroutine.
// A non-nil error from fn rolls the transaction back.
//
// fn runs on the storage executor: it must use the Tx it is given and must
// never call back into Store methods, which would deadlock.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	return s.serialize(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() // No-op if committed

		if err := fn(&Tx{ctx: ctx, tx: tx}); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// UpsertRow writes the full row state, replacing any prior snapshot.
func (t *Tx) UpsertRow(row Row) error {
	var snapshot any
	if row.HasSnapshot {
		snapshot = row.Snapshot
	}
	deleting := 0
	if row.PendingDelete {
		deleting = 1
	}
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO Objects (uuid, className, objectId, json, isDeletingEventually)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(uuid) DO UPDATE SET
			className = excluded.className,
			objectId = excluded.objectId,
			json = excluded.json,
			isDeletingEventually = excluded.isDeletingEventually
	`, row.UUID, row.ClassName, nullable(row.ObjectID), snapshot, deleting)
	if err != nil {
		return fmt.Errorf("upsert row: %w", err)
	}
	return nil
}

// SetObjectID records a server-assigned id on an existing row.
func (t *Tx) SetObjectID(uuid, objectID string) error {
	_, err := t.tx.ExecContext(t.ctx,
		"UPDATE Objects SET objectId = ? WHERE uuid = ?", nullable(objectID), uuid)
	if err != nil {
		return fmt.Errorf("set objectId: %w", err)
	}
	return nil
}

// AddEdge adds a group membership edge. Idempotent: pinning the same key
// under the same group twice leaves exactly one edge.
func (t *Tx) AddEdge(group, uuid string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO Dependencies (key, uuid) VALUES (?, ?)
		ON CONFLICT(key, uuid) DO NOTHING
	`, group, uuid)
	if err != nil {
		return fmt.Errorf("add edge: %w", err)
	}
	return nil
}

// DeleteEdges removes every edge for a group and returns the keys that were
// members.
func (t *Tx) DeleteEdges(group string) ([]string, error) {
	members, err := t.EdgeKeys(group)
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM Dependencies WHERE key = ?", group); err != nil {
		return nil, fmt.Errorf("delete edges: %w", err)
	}
	return members, nil
}

// DeleteEdgesForKeys removes the edges for specific keys in a group,
// chunked under the bound parameter limit.
func (t *Tx) DeleteEdgesForKeys(group string, uuids []string) error {
	for _, chunk := range chunks(uuids, maxSQLVariables-1) {
		query := "DELETE FROM Dependencies WHERE key = ? AND uuid IN (" + placeholders(len(chunk)) + ")"
		all := append([]any{group}, args(chunk)...)
		if _, err := t.tx.ExecContext(t.ctx, query, all...); err != nil {
			return fmt.Errorf("delete edges for keys: %w", err)
		}
	}
	return nil
}

// EdgeKeys returns the opaque keys currently in a group.
func (t *Tx) EdgeKeys(group string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, "SELECT uuid FROM Dependencies WHERE key = ?", group)
	if err != nil {
		return nil, fmt.Errorf("edge keys: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, fmt.Errorf("scan edge key: %w", err)
		}
		out = append(out, uuid)
	}
	return out, rows.Err()
}

// OrphanedAmong filters uuids down to those with no remaining group
// membership edges. Input lists are chunked to respect the SQLite bound
// parameter limit.
func (t *Tx) OrphanedAmong(uuids []string) ([]string, error) {
	referenced := make(map[string]bool)
	for _, chunk := range chunks(uuids, maxSQLVariables) {
		query := "SELECT DISTINCT uuid FROM Dependencies WHERE uuid IN (" + placeholders(len(chunk)) + ")"
		rows, err := t.tx.QueryContext(t.ctx, query, args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("orphaned among: %w", err)
		}
		for rows.Next() {
			var uuid string
			if err := rows.Scan(&uuid); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan referenced key: %w", err)
			}
			referenced[uuid] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	var orphans []string
	for _, uuid := range uuids {
		if !referenced[uuid] {
			orphans = append(orphans, uuid)
		}
	}
	return orphans, nil
}

// DeleteRows physically removes rows by opaque key, chunked under the
// bound parameter limit.
func (t *Tx) DeleteRows(uuids []string) error {
	for _, chunk := range chunks(uuids, maxSQLVariables) {
		query := "DELETE FROM Objects WHERE uuid IN (" + placeholders(len(chunk)) + ")"
		if _, err := t.tx.ExecContext(t.ctx, query, args(chunk)...); err != nil {
			return fmt.Errorf("delete rows: %w", err)
		}
	}
	return nil
}

// nullable maps "" to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// chunks splits list into slices of at most size elements.
func chunks(list []string, size int) [][]string {
	var out [][]string
	for len(list) > size {
		out = append(out, list[:size])
		list = list[size:]
	}
	if len(list) > 0 {
		out = append(out, list)
	}
	return out
}

// placeholders returns "?, ?, ..." with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func args(list []string) []any {
	out := make([]any, len(list))
	for i, s := range list {
		out[i] = s
	}
	return out
}
