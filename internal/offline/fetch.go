package offline

import (
	"context"

	"offstore/internal/codec"
	"offstore/internal/object"
	"offstore/internal/store"
	"offstore/internal/task"
)

// FetchLocally populates obj from its cached snapshot, if any.
//
// The per-instance fetch is coalesced: concurrent callers for the same
// instance attach to one in-flight fetch and observe identical results.
// An instance whose data is already available returns immediately.
//
// Outcomes by identity state:
//
//   - no server id, no opaque key: nothing was ever cached; resolves
//     successfully with no data merged (callers speculatively fetch
//     objects that were never cached, so this is not an error)
//   - opaque key only: the row must exist - keys are never handed out
//     without a backing row - so absence is ILLEGAL_STATE
//   - server id: a missing row is a recoverable CACHE_MISS meaning the
//     object was never pinned
//
// A found snapshot has every embedded reference resolved to a live
// instance before it is merged, and merging never overwrites pending local
// changes - only the base state underneath them.
func (s *Store) FetchLocally(ctx context.Context, obj *object.Object) (*object.Object, error) {
	if obj.IsDataAvailable() {
		return obj, nil
	}

	s.mu.Lock()
	if f, ok := s.fetches[obj]; ok {
		s.mu.Unlock()
		return f.Await(ctx)
	}
	f := task.New[*object.Object]()
	s.fetches[obj] = f
	s.mu.Unlock()

	result, err := s.fetchRow(ctx, obj)

	s.mu.Lock()
	delete(s.fetches, obj)
	s.mu.Unlock()

	f.Resolve(result, err)
	return result, err
}

func (s *Store) fetchRow(ctx context.Context, obj *object.Object) (*object.Object, error) {
	var (
		row store.Row
		err error
	)

	key, hasKey := obj.LocalKey()
	switch {
	case obj.ObjectID() != "":
		row, err = s.rows.RowByIdentity(ctx, obj.ClassName(), obj.ObjectID())
		if err != nil {
			// A missing row here means "never cached": recoverable.
			return nil, err
		}
		if !hasKey {
			if err := s.reg.AdoptKey(row.UUID, obj); err != nil {
				return nil, err
			}
		}
	case hasKey:
		row, err = s.rows.GetRow(ctx, key)
		if store.IsCacheMiss(err) {
			// The registry handed out this key, so the row must exist.
			return nil, store.NewIllegalState("key %s bound but row is gone", key)
		}
		if err != nil {
			return nil, err
		}
	default:
		// Never durably touched; nothing to fetch and nothing to merge.
		return obj, nil
	}

	if !row.HasSnapshot {
		// Placeholder row: the object is referenced but was never saved
		// with data. Nothing to merge.
		return obj, nil
	}

	state, err := codec.DecodeSnapshot(ctx, row.Snapshot, s)
	if err != nil {
		return nil, err
	}
	hadID := obj.ObjectID() != ""
	obj.MergeServer(state)
	if !hadID && obj.ObjectID() != "" {
		if err := s.reg.RegisterServerIdentity(obj); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
