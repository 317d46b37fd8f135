package object

import (
	"fmt"
	"sync"
	"time"
)

// Reserved field names. They are stored outside the regular field map and
// surfaced through Value for query/sort purposes.
const (
	KeyObjectID  = "objectId"
	KeyCreatedAt = "createdAt"
	KeyUpdatedAt = "updatedAt"
	KeyACL       = "ACL"
)

// Object is a mutable domain object. See the package comment for the
// server-data / operations / estimated-data model.
//
// All exported methods are safe for concurrent use. The object's lock is a
// leaf lock: no method calls out to other components while holding it, so
// it can be taken regardless of what registry or store locks the caller
// holds.
type Object struct {
	mu sync.RWMutex

	className string
	objectID  string

	serverData map[string]any
	operations map[string]Op
	estimated  map[string]any

	createdAt time.Time
	updatedAt time.Time

	// fetched reports whether serverData reflects a real server or cache
	// state, as opposed to a bare reference created from a pointer.
	fetched bool

	// localKey is the opaque cache key bound by the identity registry.
	// Empty until the object is first durably referenced.
	localKey string
}

// New creates a fresh, unsaved object of the given class. A new object is
// considered fetched: its (empty) state is complete by construction.
func New(className string) *Object {
	return &Object{
		className:  className,
		serverData: make(map[string]any),
		operations: make(map[string]Op),
		estimated:  make(map[string]any),
		fetched:    true,
	}
}

// NewReference creates a stub pointing at an existing server entity.
// The stub has no data until fetched.
func NewReference(className, objectID string) *Object {
	o := New(className)
	o.objectID = objectID
	o.fetched = false
	return o
}

// NewUnfetched creates a stub for a cached row that has no server id yet:
// it carries no data and no identity until its snapshot is fetched.
func NewUnfetched(className string) *Object {
	o := New(className)
	o.fetched = false
	return o
}

// ClassName returns the object's logical type.
func (o *Object) ClassName() string {
	return o.className
}

// ObjectID returns the server-assigned id, or "" if the object has never
// been confirmed saved.
func (o *Object) ObjectID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.objectID
}

// SetObjectID records a server-assigned id. Changing an already-set id is
// an error except through the identity registry's remapping path, which
// uses this same method after validating the transition.
func (o *Object) SetObjectID(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objectID = id
}

// LocalKey returns the opaque cache key, if one has been bound.
func (o *Object) LocalKey() (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.localKey, o.localKey != ""
}

// BindLocalKey binds the opaque cache key. Binding is idempotent for the
// same key and an error for a different one: a live object never migrates
// between cache rows.
func (o *Object) BindLocalKey(key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.localKey != "" && o.localKey != key {
		return fmt.Errorf("object already bound to key %s", o.localKey)
	}
	o.localKey = key
	return nil
}

// UnbindLocalKey removes the key binding. Called when the backing row is
// physically deleted during unpin cleanup.
func (o *Object) UnbindLocalKey() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.localKey = ""
}

// IsDataAvailable reports whether the object's fields can be read.
// False only for unfetched references.
func (o *Object) IsDataAvailable() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.fetched
}

// IsDirty reports whether the object carries unsaved local operations.
func (o *Object) IsDirty() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.operations) > 0
}

// CreatedAt returns the server creation timestamp, if known.
func (o *Object) CreatedAt() (time.Time, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.createdAt, !o.createdAt.IsZero()
}

// UpdatedAt returns the server update timestamp, if known.
func (o *Object) UpdatedAt() (time.Time, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.updatedAt, !o.updatedAt.IsZero()
}

// Value returns the estimated value of a field. The synthetic keys
// objectId, createdAt and updatedAt resolve to their metadata counterparts.
func (o *Object) Value(key string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	switch key {
	case KeyObjectID:
		if o.objectID == "" {
			return nil, false
		}
		return o.objectID, true
	case KeyCreatedAt:
		if o.createdAt.IsZero() {
			return nil, false
		}
		return o.createdAt, true
	case KeyUpdatedAt:
		if o.updatedAt.IsZero() {
			return nil, false
		}
		return o.updatedAt, true
	}
	v, ok := o.estimated[key]
	return v, ok
}

// Set replaces a field's value.
func (o *Object) Set(key string, value any) {
	o.applyLocked(key, SetOp{Value: value})
}

// Unset removes a field.
func (o *Object) Unset(key string) {
	o.applyLocked(key, UnsetOp{})
}

// Increment adds amount to a numeric field, treating a missing field as 0.
func (o *Object) Increment(key string, amount float64) {
	o.applyLocked(key, IncrementOp{Amount: amount})
}

// Relation returns the relation stored at key, creating an empty one if
// the field is unset. A non-relation value at key returns nil.
func (o *Object) Relation(key string) *Relation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.estimated[key]
	if !ok {
		return NewRelation("")
	}
	rel, _ := v.(*Relation)
	return rel
}

// AddRelation records a pending relation-add of targets at key.
func (o *Object) AddRelation(key string, targets ...*Object) {
	op := RelationOp{Adds: targets}
	if len(targets) > 0 {
		op.TargetClass = targets[0].ClassName()
	}
	o.applyLocked(key, op)
}

// RemoveRelation records a pending relation-remove of targets at key.
func (o *Object) RemoveRelation(key string, targets ...*Object) {
	op := RelationOp{Removes: targets}
	if len(targets) > 0 {
		op.TargetClass = targets[0].ClassName()
	}
	o.applyLocked(key, op)
}

// ACL returns the object's access control list, or nil if none is set.
func (o *Object) ACL() *ACL {
	v, ok := o.Value(KeyACL)
	if !ok {
		return nil
	}
	acl, _ := v.(*ACL)
	return acl
}

// SetACL sets the object's access control list.
func (o *Object) SetACL(acl *ACL) {
	o.Set(KeyACL, acl)
}

func (o *Object) applyLocked(key string, op Op) {
	o.mu.Lock()
	defer o.mu.Unlock()
	merged := mergeOps(o.operations[key], op)
	o.operations[key] = merged
	next, exists := applyOp(merged, o.serverData[key], o.serverDataHas(key))
	if exists {
		o.estimated[key] = next
	} else {
		delete(o.estimated, key)
	}
}

func (o *Object) serverDataHas(key string) bool {
	_, ok := o.serverData[key]
	return ok
}

// EstimatedData returns a shallow copy of the estimated field map.
// Values are shared; callers must treat them as read-only.
func (o *Object) EstimatedData() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.estimated))
	for k, v := range o.estimated {
		out[k] = v
	}
	return out
}

// ServerState is a decoded base state to merge into an object.
type ServerState struct {
	ObjectID  string
	CreatedAt time.Time
	UpdatedAt time.Time
	Data      map[string]any
	Complete  bool
}

// MergeServer applies a decoded server or cache snapshot as the object's
// new base state. Pending local operations survive: they are re-applied on
// top of the incoming data, so a field the user edited while the snapshot
// was loading keeps its edited value.
func (o *Object) MergeServer(state ServerState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if state.ObjectID != "" {
		o.objectID = state.ObjectID
	}
	if !state.CreatedAt.IsZero() {
		o.createdAt = state.CreatedAt
	}
	if !state.UpdatedAt.IsZero() {
		o.updatedAt = state.UpdatedAt
	}

	if state.Complete {
		o.serverData = make(map[string]any, len(state.Data))
	}
	for k, v := range state.Data {
		o.serverData[k] = v
	}
	if state.Complete {
		o.fetched = true
	}
	o.rebuildEstimated()
}

// Revert discards all pending local operations, restoring the estimated
// view to the server base state.
func (o *Object) Revert() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.operations = make(map[string]Op)
	o.rebuildEstimated()
}

// ClearOperations drops pending operations after a successful save, folding
// their effect into the server base state.
func (o *Object) ClearOperations() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k := range o.operations {
		if v, ok := o.estimated[k]; ok {
			o.serverData[k] = v
		} else {
			delete(o.serverData, k)
		}
	}
	o.operations = make(map[string]Op)
}

func (o *Object) rebuildEstimated() {
	o.estimated = make(map[string]any, len(o.serverData)+len(o.operations))
	for k, v := range o.serverData {
		o.estimated[k] = v
	}
	for k, op := range o.operations {
		prev, had := o.estimated[k]
		next, exists := applyOp(op, prev, had)
		if exists {
			o.estimated[k] = next
		} else {
			delete(o.estimated, k)
		}
	}
}
