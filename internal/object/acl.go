package object

// PublicKey is the ACL entry granting access to everyone.
const PublicKey = "*"

type aclEntry struct {
	Read  bool
	Write bool
}

// ACL is a per-object access control list mapping actor ids (user object
// ids, or PublicKey) to read/write grants. The zero value grants nothing.
//
// Role-based entries ("role:name") can be stored and round-trip through
// encoding, but the query-side read check does not evaluate role
// membership; see Query's ACL filtering for the documented limitation.
type ACL struct {
	entries map[string]aclEntry
}

// NewACL returns an empty ACL.
func NewACL() *ACL {
	return &ACL{entries: make(map[string]aclEntry)}
}

// SetReadAccess grants or revokes read access for the given actor id.
func (a *ACL) SetReadAccess(id string, allowed bool) {
	a.set(id, func(e *aclEntry) { e.Read = allowed })
}

// SetWriteAccess grants or revokes write access for the given actor id.
func (a *ACL) SetWriteAccess(id string, allowed bool) {
	a.set(id, func(e *aclEntry) { e.Write = allowed })
}

// SetPublicReadAccess grants or revokes read access for everyone.
func (a *ACL) SetPublicReadAccess(allowed bool) {
	a.SetReadAccess(PublicKey, allowed)
}

// SetPublicWriteAccess grants or revokes write access for everyone.
func (a *ACL) SetPublicWriteAccess(allowed bool) {
	a.SetWriteAccess(PublicKey, allowed)
}

// ReadAccess reports whether the given actor id has read access.
// It does not consider the public entry; use PublicReadAccess for that.
func (a *ACL) ReadAccess(id string) bool {
	return a.entries[id].Read
}

// WriteAccess reports whether the given actor id has write access.
func (a *ACL) WriteAccess(id string) bool {
	return a.entries[id].Write
}

// PublicReadAccess reports whether everyone has read access.
func (a *ACL) PublicReadAccess() bool {
	return a.entries[PublicKey].Read
}

// PublicWriteAccess reports whether everyone has write access.
func (a *ACL) PublicWriteAccess() bool {
	return a.entries[PublicKey].Write
}

func (a *ACL) set(id string, mutate func(*aclEntry)) {
	if a.entries == nil {
		a.entries = make(map[string]aclEntry)
	}
	e := a.entries[id]
	mutate(&e)
	if !e.Read && !e.Write {
		delete(a.entries, id)
		return
	}
	a.entries[id] = e
}

// Encode renders the ACL as the permission document stored in snapshots:
// {"id": {"read": true, "write": true}, ...} with false grants omitted.
func (a *ACL) Encode() map[string]any {
	out := make(map[string]any, len(a.entries))
	for id, e := range a.entries {
		perm := make(map[string]any, 2)
		if e.Read {
			perm["read"] = true
		}
		if e.Write {
			perm["write"] = true
		}
		out[id] = perm
	}
	return out
}

// DecodeACL parses a permission document produced by Encode.
// Unknown permission names are ignored.
func DecodeACL(doc map[string]any) *ACL {
	a := NewACL()
	for id, raw := range doc {
		perm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if read, _ := perm["read"].(bool); read {
			a.SetReadAccess(id, true)
		}
		if write, _ := perm["write"].(bool); write {
			a.SetWriteAccess(id, true)
		}
	}
	return a
}

// clone returns an independent copy.
func (a *ACL) clone() *ACL {
	c := NewACL()
	for id, e := range a.entries {
		c.entries[id] = e
	}
	return c
}
