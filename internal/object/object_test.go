package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewObjectIsCompleteAndClean(t *testing.T) {
	o := New("Score")
	assert.True(t, o.IsDataAvailable())
	assert.False(t, o.IsDirty())
	assert.Equal(t, "Score", o.ClassName())
	assert.Equal(t, "", o.ObjectID())
}

func TestReferenceIsUnfetched(t *testing.T) {
	o := NewReference("Score", "abc123")
	assert.False(t, o.IsDataAvailable())
	assert.Equal(t, "abc123", o.ObjectID())
}

func TestSetUnsetIncrement(t *testing.T) {
	o := New("Score")

	o.Set("points", 10.0)
	v, ok := o.Value("points")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)
	assert.True(t, o.IsDirty())

	o.Increment("points", 5)
	v, _ = o.Value("points")
	assert.Equal(t, 15.0, v)

	o.Unset("points")
	_, ok = o.Value("points")
	assert.False(t, ok)
}

func TestIncrementOnMissingFieldStartsAtZero(t *testing.T) {
	o := New("Score")
	o.Increment("streak", 3)
	v, ok := o.Value("streak")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestSyntheticKeys(t *testing.T) {
	o := New("Score")

	_, ok := o.Value(KeyObjectID)
	assert.False(t, ok, "unsaved object has no objectId")

	created := time.Date(2023, 4, 1, 12, 0, 0, 0, time.UTC)
	updated := created.Add(time.Hour)
	o.MergeServer(ServerState{
		ObjectID:  "xyz",
		CreatedAt: created,
		UpdatedAt: updated,
		Data:      map[string]any{},
		Complete:  true,
	})

	v, ok := o.Value(KeyObjectID)
	require.True(t, ok)
	assert.Equal(t, "xyz", v)
	v, ok = o.Value(KeyCreatedAt)
	require.True(t, ok)
	assert.Equal(t, created, v)
	v, ok = o.Value(KeyUpdatedAt)
	require.True(t, ok)
	assert.Equal(t, updated, v)
}

func TestMergeServerKeepsPendingEdits(t *testing.T) {
	o := NewReference("Score", "xyz")
	o.Set("points", 99.0)

	o.MergeServer(ServerState{
		ObjectID: "xyz",
		Data:     map[string]any{"points": 10.0, "player": "ann"},
		Complete: true,
	})

	v, _ := o.Value("points")
	assert.Equal(t, 99.0, v, "local edit survives a merge")
	v, _ = o.Value("player")
	assert.Equal(t, "ann", v)
	assert.True(t, o.IsDataAvailable())
	assert.True(t, o.IsDirty())
}

func TestMergeIncompleteDoesNotMarkFetched(t *testing.T) {
	o := NewReference("Score", "xyz")
	o.MergeServer(ServerState{
		Data: map[string]any{"points": 1.0},
	})
	assert.False(t, o.IsDataAvailable())
	v, ok := o.Value("points")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestRevertDiscardsOperations(t *testing.T) {
	o := New("Score")
	o.MergeServer(ServerState{
		Data:     map[string]any{"points": 10.0},
		Complete: true,
	})
	o.Set("points", 50.0)
	o.Set("extra", true)

	o.Revert()

	assert.False(t, o.IsDirty())
	v, _ := o.Value("points")
	assert.Equal(t, 10.0, v)
	_, ok := o.Value("extra")
	assert.False(t, ok)
}

func TestClearOperationsFoldsIntoBase(t *testing.T) {
	o := New("Score")
	o.Set("points", 7.0)
	o.ClearOperations()

	assert.False(t, o.IsDirty())
	v, ok := o.Value("points")
	require.True(t, ok)
	assert.Equal(t, 7.0, v, "saved value becomes part of the base state")

	o.Revert()
	v, ok = o.Value("points")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
}

func TestIncrementOverSetMergesToSet(t *testing.T) {
	o := New("Score")
	o.Set("points", 10.0)
	o.Increment("points", 2)
	o.Increment("points", 3)

	v, _ := o.Value("points")
	assert.Equal(t, 15.0, v)

	// A single merged operation remains for the field.
	o.mu.RLock()
	op := o.operations["points"]
	o.mu.RUnlock()
	set, ok := op.(SetOp)
	require.True(t, ok)
	assert.Equal(t, 15.0, set.Value)
}

func TestBindLocalKey(t *testing.T) {
	o := New("Score")
	_, ok := o.LocalKey()
	assert.False(t, ok)

	require.NoError(t, o.BindLocalKey("k1"))
	require.NoError(t, o.BindLocalKey("k1"), "rebinding the same key is fine")
	assert.Error(t, o.BindLocalKey("k2"))

	key, ok := o.LocalKey()
	require.True(t, ok)
	assert.Equal(t, "k1", key)

	o.UnbindLocalKey()
	_, ok = o.LocalKey()
	assert.False(t, ok)
}

func TestRelationEdits(t *testing.T) {
	post := New("Post")
	a := NewReference("Comment", "c1")
	b := NewReference("Comment", "c2")

	post.AddRelation("comments", a, b)
	rel := post.Relation("comments")
	require.NotNil(t, rel)
	assert.Equal(t, "Comment", rel.TargetClass())
	assert.True(t, rel.Knows(a))
	assert.True(t, rel.Knows(b))

	post.RemoveRelation("comments", b)
	rel = post.Relation("comments")
	assert.True(t, rel.Knows(a))
	assert.False(t, rel.Knows(b))
}

func TestRelationAddCancelsPendingRemove(t *testing.T) {
	post := New("Post")
	c := NewReference("Comment", "c1")

	post.AddRelation("comments", c)
	post.RemoveRelation("comments", c)
	post.AddRelation("comments", c)

	post.mu.RLock()
	op := post.operations["comments"].(RelationOp)
	post.mu.RUnlock()
	assert.Len(t, op.Adds, 1)
	assert.Empty(t, op.Removes)
}

func TestACLRoundTrip(t *testing.T) {
	o := New("Score")
	assert.Nil(t, o.ACL())

	acl := NewACL()
	acl.SetPublicReadAccess(true)
	acl.SetWriteAccess("u1", true)
	o.SetACL(acl)

	got := o.ACL()
	require.NotNil(t, got)
	assert.True(t, got.PublicReadAccess())
	assert.True(t, got.WriteAccess("u1"))
	assert.False(t, got.ReadAccess("u1"))
}

func TestNumericValue(t *testing.T) {
	for _, v := range []any{int(3), int64(3), float32(3), float64(3), uint8(3)} {
		f, ok := NumericValue(v)
		require.True(t, ok, "%T", v)
		assert.Equal(t, 3.0, f)
	}
	_, ok := NumericValue("3")
	assert.False(t, ok)
}

func TestGeoPointDistances(t *testing.T) {
	sf := GeoPoint{Latitude: 37.7749, Longitude: -122.4194}
	ny := GeoPoint{Latitude: 40.7128, Longitude: -74.0060}

	km := sf.KilometersTo(ny)
	assert.InDelta(t, 4129, km, 20)
	assert.InDelta(t, km/EarthRadiusKM, sf.RadiansTo(ny), 1e-9)
	assert.Zero(t, sf.RadiansTo(sf))
}
