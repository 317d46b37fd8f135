package query

import "offstore/internal/object"

// ReadAccessible reports whether the querying actor may read a candidate.
//
// A candidate passes when it is the actor itself, carries no ACL, grants
// public read access, or grants the actor's id read access.
//
// Role-based ACL entries are not evaluated offline: a candidate readable
// only through a role grant is dropped. This is a documented limitation of
// the offline evaluator, chosen over silently treating role grants as
// public.
func ReadAccessible(user, candidate *object.Object) bool {
	if candidate == user {
		return true
	}
	acl := candidate.ACL()
	if acl == nil {
		return true
	}
	if acl.PublicReadAccess() {
		return true
	}
	if user != nil {
		if id := user.ObjectID(); id != "" && acl.ReadAccess(id) {
			return true
		}
	}
	return false
}
