// Package offline is the store facade: it ties the row store, identity
// registry, snapshot codec, and query evaluator together into the public
// fetch/save/query surface.
//
// Components are wired explicitly: a Store owns its row store handle and
// identity registry, and its lifecycle (Close, Reset) is explicit. There
// are no process-wide singletons.
package offline

import (
	"context"
	"sync"

	"offstore/internal/codec"
	"offstore/internal/object"
	"offstore/internal/registry"
	"offstore/internal/store"
	"offstore/internal/task"
)

// Store is the offline object store.
//
// Public methods block the calling goroutine until the underlying storage
// chain completes. They must never be called from inside the row store's
// transaction callbacks, which run on the storage executor.
type Store struct {
	rows *store.Store
	reg  *registry.Registry

	// mu guards fetches only. It is never held across I/O; in-flight
	// fetch coalescing hands waiters a shared future instead.
	mu      sync.Mutex
	fetches map[*object.Object]*task.Future[*object.Object]
}

// Open opens (or creates) the offline store at the given SQLite path.
func Open(path string) (*Store, error) {
	rows, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	return &Store{
		rows:    rows,
		reg:     registry.New(rows),
		fetches: make(map[*object.Object]*task.Future[*object.Object]),
	}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.rows.Close()
}

// Rows exposes the row store for inspection tooling.
func (s *Store) Rows() *store.Store {
	return s.rows
}

// Registry exposes the identity registry.
func (s *Store) Registry() *registry.Registry {
	return s.reg
}

// Reset simulates a process restart: every in-memory identity mapping and
// in-flight fetch is invalidated wholesale. Durable rows are untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	s.fetches = make(map[*object.Object]*task.Future[*object.Object])
	s.mu.Unlock()
	s.reg.Reset()
}

// UpdateServerIdentity moves obj to a new server id once a save round-trip
// has assigned one, updating the identity registry and the backing row.
func (s *Store) UpdateServerIdentity(ctx context.Context, obj *object.Object, newID string) error {
	return s.reg.UpdateServerIdentity(ctx, obj, newID)
}

// EncodeReference implements codec.ReferenceEncoder: objects with a
// confirmed server id serialize as Pointer documents; everything else gets
// an opaque key (allocated on demand) and serializes as an OfflineObject
// document.
func (s *Store) EncodeReference(ctx context.Context, obj *object.Object) (map[string]any, error) {
	if id := obj.ObjectID(); id != "" {
		return map[string]any{
			codec.TypeKey: codec.TypePointer,
			"className":   obj.ClassName(),
			"objectId":    id,
		}, nil
	}
	key, err := s.reg.GetOrCreateKey(ctx, obj)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		codec.TypeKey: codec.TypeOfflineObject,
		"uuid":        key,
	}, nil
}

// DecodePointer implements codec.ReferenceDecoder via the canonical
// server-identity map.
func (s *Store) DecodePointer(ctx context.Context, className, objectID string) (*object.Object, error) {
	return s.reg.GetOrCreateInstance(className, objectID), nil
}

// DecodeOfflineReference implements codec.ReferenceDecoder via the
// opaque-key map. Resolution never touches the network.
func (s *Store) DecodeOfflineReference(ctx context.Context, uuid string) (*object.Object, error) {
	return s.reg.ResolveByKey(ctx, uuid)
}
