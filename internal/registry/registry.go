// Package registry maintains the identity mapping between in-memory
// objects, opaque cache keys, and server identities.
//
// Two maps enforce single-instance-per-identity:
//
//   - opaque key -> instance
//   - (className, objectId) -> instance
//
// Both hold weak pointers so an object no one else references can be
// reclaimed; runtime cleanups prune the stale entries. The registry's mutex
// is a coarse leaf-adjacent lock: it is never held across storage I/O or a
// future wait, only across O(1) map mutation.
package registry

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/google/uuid"

	"offstore/internal/object"
	"offstore/internal/store"
	"offstore/internal/task"
)

type identity struct {
	className string
	objectID  string
}

// Registry is the in-memory identity registry. One per offline store
// context; cleared wholesale by Reset to simulate a process restart.
type Registry struct {
	rows *store.Store

	mu      sync.Mutex
	byKey   map[string]weak.Pointer[object.Object]
	byIdent map[identity]weak.Pointer[object.Object]

	// pending holds one in-flight key allocation per instance, so
	// concurrent GetOrCreateKey callers share a single placeholder write.
	// Entries are transient: removed as soon as the allocation resolves.
	pending map[*object.Object]*task.Future[string]
}

// New creates a Registry backed by the given row store.
func New(rows *store.Store) *Registry {
	return &Registry{
		rows:    rows,
		byKey:   make(map[string]weak.Pointer[object.Object]),
		byIdent: make(map[identity]weak.Pointer[object.Object]),
		pending: make(map[*object.Object]*task.Future[string]),
	}
}

// GetOrCreateKey returns the instance's opaque key, allocating one (and
// durably inserting its placeholder row) on first use.
//
// Concurrent callers for the same instance observe the same key and exactly
// one placeholder write: late callers await the in-flight allocation rather
// than racing a second one.
func (r *Registry) GetOrCreateKey(ctx context.Context, obj *object.Object) (string, error) {
	if key, ok := obj.LocalKey(); ok {
		return key, nil
	}

	r.mu.Lock()
	// An allocation may have completed between the unlocked check and here;
	// the bound key wins over starting a second placeholder write.
	if key, ok := obj.LocalKey(); ok {
		r.mu.Unlock()
		return key, nil
	}
	if f, ok := r.pending[obj]; ok {
		r.mu.Unlock()
		return f.Await(ctx)
	}
	f := task.New[string]()
	r.pending[obj] = f
	r.mu.Unlock()

	key := uuid.NewString()
	err := r.rows.InsertPlaceholder(ctx, key, obj.ClassName(), obj.ObjectID())
	if err == nil {
		err = obj.BindLocalKey(key)
	}

	r.mu.Lock()
	delete(r.pending, obj)
	if err == nil {
		r.registerKeyLocked(key, obj)
	}
	r.mu.Unlock()

	if err != nil {
		f.Resolve("", err)
		return "", err
	}
	f.Resolve(key, nil)
	return key, nil
}

// ResolveByKey returns the live instance for an opaque key, constructing an
// unfetched reference from the backing row if none is live.
//
// Keys are never handed out without a backing row, so a missing row here is
// an internal invariant violation, not a cache miss.
func (r *Registry) ResolveByKey(ctx context.Context, key string) (*object.Object, error) {
	r.mu.Lock()
	if obj := liveLocked(r.byKey, key); obj != nil {
		r.mu.Unlock()
		return obj, nil
	}
	r.mu.Unlock()

	row, err := r.rows.GetRow(ctx, key)
	if store.IsCacheMiss(err) {
		return nil, store.NewIllegalState("key %s has no backing row", key)
	}
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another goroutine may have resolved the same key while we read.
	if obj := liveLocked(r.byKey, key); obj != nil {
		return obj, nil
	}

	var obj *object.Object
	if row.ObjectID != "" {
		obj = r.instanceLocked(row.ClassName, row.ObjectID)
	} else {
		obj = object.NewUnfetched(row.ClassName)
	}
	if err := obj.BindLocalKey(key); err != nil {
		return nil, store.NewIllegalState("resolve key %s: %v", key, err)
	}
	r.registerKeyLocked(key, obj)
	return obj, nil
}

// AdoptKey binds an existing row's key to an instance discovered through a
// server-identity lookup, registering it in the key map.
func (r *Registry) AdoptKey(key string, obj *object.Object) error {
	if err := obj.BindLocalKey(key); err != nil {
		return store.NewIllegalState("adopt key %s: %v", key, err)
	}
	r.mu.Lock()
	r.registerKeyLocked(key, obj)
	r.mu.Unlock()
	return nil
}

// GetOrCreateInstance returns the canonical live instance for a server
// identity, creating an unfetched reference if none exists.
func (r *Registry) GetOrCreateInstance(className, objectID string) *object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.instanceLocked(className, objectID)
}

// LookupByServerIdentity returns the live instance claiming a server
// identity, if any.
func (r *Registry) LookupByServerIdentity(className, objectID string) (*object.Object, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	obj := liveLocked(r.byIdent, identity{className, objectID})
	return obj, obj != nil
}

// RegisterServerIdentity claims obj's (className, objectId) slot.
// Fails with ILLEGAL_STATE if a different live instance already claims it:
// two instances for one identity means the single-instance invariant broke.
func (r *Registry) RegisterServerIdentity(obj *object.Object) error {
	id := identity{obj.ClassName(), obj.ObjectID()}
	if id.objectID == "" {
		return store.NewIllegalState("cannot register %s without objectId", id.className)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing := liveLocked(r.byIdent, id); existing != nil && existing != obj {
		return store.NewIllegalState("identity %s:%s already claimed by another live instance",
			id.className, id.objectID)
	}
	r.registerIdentLocked(id, obj)
	return nil
}

// UpdateServerIdentity moves obj from its current server identity to a new
// one. Used when an unsaved object gains an id after a save round-trip, and
// when a singleton entity is re-created server-side under a fresh id. The
// backing row, if any, is updated in the same call.
func (r *Registry) UpdateServerIdentity(ctx context.Context, obj *object.Object, newID string) error {
	oldID := obj.ObjectID()
	if oldID == newID {
		return nil
	}

	r.mu.Lock()
	newIdent := identity{obj.ClassName(), newID}
	if existing := liveLocked(r.byIdent, newIdent); existing != nil && existing != obj {
		r.mu.Unlock()
		return store.NewIllegalState("identity %s:%s already claimed by another live instance",
			newIdent.className, newID)
	}
	if oldID != "" {
		oldIdent := identity{obj.ClassName(), oldID}
		if liveLocked(r.byIdent, oldIdent) == obj {
			delete(r.byIdent, oldIdent)
		}
	}
	obj.SetObjectID(newID)
	if newID != "" {
		r.registerIdentLocked(newIdent, obj)
	}
	r.mu.Unlock()

	key, ok := obj.LocalKey()
	if !ok {
		return nil
	}
	return r.rows.Update(ctx, func(tx *store.Tx) error {
		return tx.SetObjectID(key, newID)
	})
}

// Evict removes the given keys' instances from both maps and unbinds their
// local keys. Called after their rows are physically deleted.
func (r *Registry) Evict(keys []string) {
	r.mu.Lock()
	var unbind []*object.Object
	for _, key := range keys {
		obj := liveLocked(r.byKey, key)
		delete(r.byKey, key)
		if obj == nil {
			continue
		}
		if id := (identity{obj.ClassName(), obj.ObjectID()}); id.objectID != "" {
			if liveLocked(r.byIdent, id) == obj {
				delete(r.byIdent, id)
			}
		}
		unbind = append(unbind, obj)
	}
	r.mu.Unlock()

	for _, obj := range unbind {
		obj.UnbindLocalKey()
	}
}

// Reset invalidates every mapping wholesale, simulating a process restart.
// Rows on disk are untouched; previously live instances are orphaned.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey = make(map[string]weak.Pointer[object.Object])
	r.byIdent = make(map[identity]weak.Pointer[object.Object])
	r.pending = make(map[*object.Object]*task.Future[string])
}

func (r *Registry) instanceLocked(className, objectID string) *object.Object {
	id := identity{className, objectID}
	if obj := liveLocked(r.byIdent, id); obj != nil {
		return obj
	}
	obj := object.NewReference(className, objectID)
	r.registerIdentLocked(id, obj)
	return obj
}

func (r *Registry) registerKeyLocked(key string, obj *object.Object) {
	wp := weak.Make(obj)
	r.byKey[key] = wp
	runtime.AddCleanup(obj, func(k string) {
		r.mu.Lock()
		if r.byKey[k] == wp {
			delete(r.byKey, k)
		}
		r.mu.Unlock()
	}, key)
}

func (r *Registry) registerIdentLocked(id identity, obj *object.Object) {
	wp := weak.Make(obj)
	r.byIdent[id] = wp
	runtime.AddCleanup(obj, func(id identity) {
		r.mu.Lock()
		if r.byIdent[id] == wp {
			delete(r.byIdent, id)
		}
		r.mu.Unlock()
	}, id)
}

// liveLocked dereferences a weak map entry, returning nil for missing or
// already-collected instances.
func liveLocked[K comparable](m map[K]weak.Pointer[object.Object], k K) *object.Object {
	wp, ok := m[k]
	if !ok {
		return nil
	}
	return wp.Value()
}
