package offline

import (
	"context"

	"offstore/internal/codec"
	"offstore/internal/object"
	"offstore/internal/store"
)

// SaveOne persists a single object's current state under a group.
//
// An object that already has a server id, no pending operations, and
// nothing new to persist is skipped entirely. Otherwise its key is
// allocated or reused, its state serialized (resolving nested references,
// allocating keys for unsaved ones), and its row written; the group edge
// is added idempotently.
func (s *Store) SaveOne(ctx context.Context, group string, obj *object.Object) error {
	if obj.ObjectID() != "" && !obj.IsDirty() {
		return nil
	}
	return s.saveSet(ctx, group, []*object.Object{obj}, false)
}

// SaveGraph persists the given roots - and, when includeChildren is set,
// every object reachable from them - under a group, atomically.
//
// Each object in the collected set is fetched from the cache first, so a
// partial in-memory state never clobbers previously cached sibling fields.
// Any prior membership set under the group is replaced. All row and edge
// mutations commit in a single transaction.
func (s *Store) SaveGraph(ctx context.Context, group string, roots []*object.Object, includeChildren bool) error {
	objects := roots
	if includeChildren {
		objects = collectReachable(roots)
	}

	for _, obj := range objects {
		if _, err := s.FetchLocally(ctx, obj); err != nil && !store.IsCacheMiss(err) {
			return err
		}
	}

	return s.saveSet(ctx, group, objects, true)
}

// Pin adds objects (with their reachable graphs) to a group without
// disturbing the group's existing membership.
func (s *Store) Pin(ctx context.Context, group string, roots ...*object.Object) error {
	objects := collectReachable(roots)
	for _, obj := range objects {
		if _, err := s.FetchLocally(ctx, obj); err != nil && !store.IsCacheMiss(err) {
			return err
		}
	}
	return s.saveSet(ctx, group, objects, false)
}

// saveSet allocates keys and serializes every object before opening the
// transaction: serialization may itself allocate keys for referenced
// unsaved objects, and those placeholder writes must not run on the
// storage executor while the transaction holds it.
func (s *Store) saveSet(ctx context.Context, group string, objects []*object.Object, replaceEdges bool) error {
	pending := make([]store.Row, 0, len(objects))
	for _, obj := range objects {
		key, err := s.reg.GetOrCreateKey(ctx, obj)
		if err != nil {
			return err
		}
		snapshot, err := codec.EncodeSnapshot(ctx, obj, s)
		if err != nil {
			return err
		}
		pending = append(pending, store.Row{
			UUID:        key,
			ClassName:   obj.ClassName(),
			ObjectID:    obj.ObjectID(),
			Snapshot:    snapshot,
			HasSnapshot: true,
		})
	}

	return s.rows.Update(ctx, func(tx *store.Tx) error {
		if replaceEdges && group != "" {
			if _, err := tx.DeleteEdges(group); err != nil {
				return err
			}
		}
		for _, row := range pending {
			if err := tx.UpsertRow(row); err != nil {
				return err
			}
			if group != "" {
				if err := tx.AddEdge(group, row.UUID); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// UnpinAllByName removes every membership edge for a group. Rows left with
// no remaining edges anywhere are orphaned: they are physically deleted
// and their instances evicted from the identity registry, so a later fetch
// of the same identity is a cache miss.
func (s *Store) UnpinAllByName(ctx context.Context, group string) error {
	var orphans []string
	err := s.rows.Update(ctx, func(tx *store.Tx) error {
		members, err := tx.DeleteEdges(group)
		if err != nil {
			return err
		}
		orphans, err = tx.OrphanedAmong(members)
		if err != nil {
			return err
		}
		return tx.DeleteRows(orphans)
	})
	if err != nil {
		return err
	}
	s.reg.Evict(orphans)
	return nil
}

// UnpinAll removes specific objects from a group, with the same orphan
// cleanup as UnpinAllByName. Objects without keys were never pinned and
// are ignored.
func (s *Store) UnpinAll(ctx context.Context, group string, objects ...*object.Object) error {
	var keys []string
	for _, obj := range objects {
		if key, ok := obj.LocalKey(); ok {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return nil
	}

	var orphans []string
	err := s.rows.Update(ctx, func(tx *store.Tx) error {
		if err := tx.DeleteEdgesForKeys(group, keys); err != nil {
			return err
		}
		var err error
		orphans, err = tx.OrphanedAmong(keys)
		if err != nil {
			return err
		}
		return tx.DeleteRows(orphans)
	})
	if err != nil {
		return err
	}
	s.reg.Evict(orphans)
	return nil
}

// collectReachable gathers the full object graph reachable from the roots
// by depth-first traversal. The visited set is keyed by instance identity,
// so cyclic graphs terminate and each node appears once.
func collectReachable(roots []*object.Object) []*object.Object {
	visited := make(map[*object.Object]bool)
	var out []*object.Object

	var visitValue func(v any)
	var visit func(obj *object.Object)

	visitValue = func(v any) {
		switch t := v.(type) {
		case *object.Object:
			visit(t)
		case []any:
			for _, item := range t {
				visitValue(item)
			}
		case map[string]any:
			for _, item := range t {
				visitValue(item)
			}
		}
	}

	visit = func(obj *object.Object) {
		if visited[obj] {
			return
		}
		visited[obj] = true
		out = append(out, obj)
		for _, v := range obj.EstimatedData() {
			visitValue(v)
		}
	}

	for _, root := range roots {
		visit(root)
	}
	return out
}
