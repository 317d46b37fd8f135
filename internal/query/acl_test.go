package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"offstore/internal/object"
)

func TestReadAccessible(t *testing.T) {
	user := object.NewReference("_User", "u1")
	other := object.NewReference("_User", "u2")

	noACL := object.New("Score")
	assert.True(t, ReadAccessible(user, noACL))
	assert.True(t, ReadAccessible(nil, noACL))

	publicRead := object.New("Score")
	acl := object.NewACL()
	acl.SetPublicReadAccess(true)
	publicRead.SetACL(acl)
	assert.True(t, ReadAccessible(user, publicRead))
	assert.True(t, ReadAccessible(nil, publicRead))

	ownerOnly := object.New("Score")
	acl = object.NewACL()
	acl.SetReadAccess("u1", true)
	ownerOnly.SetACL(acl)
	assert.True(t, ReadAccessible(user, ownerOnly))
	assert.False(t, ReadAccessible(other, ownerOnly))
	assert.False(t, ReadAccessible(nil, ownerOnly))

	// Write-only grants do not confer read access.
	writeOnly := object.New("Score")
	acl = object.NewACL()
	acl.SetWriteAccess("u1", true)
	writeOnly.SetACL(acl)
	assert.False(t, ReadAccessible(user, writeOnly))

	// The candidate is always readable by itself.
	assert.True(t, ReadAccessible(user, user))

	// Role grants are not evaluated offline.
	roleOnly := object.New("Score")
	acl = object.NewACL()
	acl.SetReadAccess("role:admins", true)
	roleOnly.SetACL(acl)
	assert.False(t, ReadAccessible(user, roleOnly))
}
