package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"offstore/internal/object"
)

// score builds a fetched instance with the given fields.
func score(fields map[string]any) *object.Object {
	o := object.New("Score")
	for k, v := range fields {
		o.Set(k, v)
	}
	return o
}

// match compiles q and evaluates it against candidate.
func match(t *testing.T, q *Query, candidate *object.Object) bool {
	t.Helper()
	m, err := Compile(q, nil)
	require.NoError(t, err)
	ok, err := m(context.Background(), candidate)
	require.NoError(t, err)
	return ok
}

func TestEqual(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("points", Equal{Value: 10.0})

	assert.True(t, match(t, q, score(map[string]any{"points": 10.0})))
	assert.False(t, match(t, q, score(map[string]any{"points": 9.0})))
	assert.False(t, match(t, q, score(map[string]any{})), "missing field never equals")

	// Integer-valued fields compare numerically.
	assert.True(t, match(t, q, score(map[string]any{"points": 10})))
}

func TestEqual_ArrayContainment(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("tags", Equal{Value: "go"})

	assert.True(t, match(t, q, score(map[string]any{"tags": []any{"go", "db"}})))
	assert.False(t, match(t, q, score(map[string]any{"tags": []any{"db"}})))

	// An array constraint against an array field is whole-value equality.
	qa := (&Query{ClassName: "Score"}).WhereField("tags", Equal{Value: []any{"go", "db"}})
	assert.True(t, match(t, qa, score(map[string]any{"tags": []any{"go", "db"}})))
	assert.False(t, match(t, qa, score(map[string]any{"tags": []any{"db", "go"}})))
}

func TestNotEqual(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("points", NotEqual{Value: 10.0})

	assert.False(t, match(t, q, score(map[string]any{"points": 10.0})))
	assert.True(t, match(t, q, score(map[string]any{"points": 9.0})))
	assert.True(t, match(t, q, score(map[string]any{})), "missing field is not equal")
}

func TestComparisons(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("score", GreaterThan{Value: 7.0})
	assert.True(t, match(t, q, score(map[string]any{"score": 8.0})))
	assert.False(t, match(t, q, score(map[string]any{"score": 7.0})))
	assert.False(t, match(t, q, score(map[string]any{})))

	q = (&Query{ClassName: "Score"}).WhereField("score", LessThanOrEqual{Value: 7.0})
	assert.True(t, match(t, q, score(map[string]any{"score": 7.0})))
	assert.False(t, match(t, q, score(map[string]any{"score": 7.5})))

	q = (&Query{ClassName: "Score"}).WhereField("name", GreaterThanOrEqual{Value: "m"})
	assert.True(t, match(t, q, score(map[string]any{"name": "zed"})))
	assert.False(t, match(t, q, score(map[string]any{"name": "ann"})))
}

func TestComparison_TypeMismatchFails(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("score", GreaterThan{Value: 7.0})
	m, err := Compile(q, nil)
	require.NoError(t, err)

	_, err = m(context.Background(), score(map[string]any{"score": "high"}))
	assert.True(t, IsInvalidQuery(err), "error = %v", err)
}

func TestContainedIn(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("name", ContainedIn{Values: []any{"ann", "bob"}})
	assert.True(t, match(t, q, score(map[string]any{"name": "ann"})))
	assert.False(t, match(t, q, score(map[string]any{"name": "cid"})))
	assert.False(t, match(t, q, score(map[string]any{})))

	qn := (&Query{ClassName: "Score"}).WhereField("name", NotContainedIn{Values: []any{"ann"}})
	assert.False(t, match(t, qn, score(map[string]any{"name": "ann"})))
	assert.True(t, match(t, qn, score(map[string]any{"name": "cid"})))
	assert.True(t, match(t, qn, score(map[string]any{})), "missing field is not contained")
}

func TestContainsAll(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("tags", ContainsAll{Values: []any{"go", "db"}})
	assert.True(t, match(t, q, score(map[string]any{"tags": []any{"db", "go", "web"}})))
	assert.False(t, match(t, q, score(map[string]any{"tags": []any{"go"}})))
	assert.False(t, match(t, q, score(map[string]any{"tags": "go"})), "scalar field never contains all")
}

func TestContainsAll_StartsWith(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("tags", ContainsAll{
		Values: []any{StartsWith{Prefix: "data"}},
	})
	assert.True(t, match(t, q, score(map[string]any{"tags": []any{"database", "web"}})))
	assert.False(t, match(t, q, score(map[string]any{"tags": []any{"web"}})))
}

func TestExists(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("name", Exists{Want: true})
	assert.True(t, match(t, q, score(map[string]any{"name": "ann"})))
	assert.False(t, match(t, q, score(map[string]any{})))

	qn := (&Query{ClassName: "Score"}).WhereField("name", Exists{Want: false})
	assert.False(t, match(t, qn, score(map[string]any{"name": "ann"})))
	assert.True(t, match(t, qn, score(map[string]any{})))
}

func TestMatches(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("name", Matches{Pattern: "^an"})
	assert.True(t, match(t, q, score(map[string]any{"name": "ann"})))
	assert.False(t, match(t, q, score(map[string]any{"name": "bob"})))
	assert.False(t, match(t, q, score(map[string]any{"name": 3.0})), "non-string never matches")

	qi := (&Query{ClassName: "Score"}).WhereField("name", Matches{Pattern: "^AN", Flags: "i"})
	assert.True(t, match(t, qi, score(map[string]any{"name": "ann"})))
}

func TestMatches_InvalidPatternFailsAtCompile(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("name", Matches{Pattern: "("})
	_, err := Compile(q, nil)
	assert.True(t, IsInvalidQuery(err), "error = %v", err)

	q = (&Query{ClassName: "Score"}).WhereField("name", Matches{Pattern: "a", Flags: "z"})
	_, err = Compile(q, nil)
	assert.True(t, IsInvalidQuery(err), "error = %v", err)
}

func TestNearSphere(t *testing.T) {
	base := object.GeoPoint{Latitude: 40, Longitude: -30}
	near := object.GeoPoint{Latitude: 40.001, Longitude: -30.001}
	far := object.GeoPoint{Latitude: -40, Longitude: 100}

	// Without a max distance every geo value matches.
	q := (&Query{ClassName: "Place"}).WhereField("location", NearSphere{Point: base})
	assert.True(t, match(t, q, score(map[string]any{"location": far})))
	assert.False(t, match(t, q, score(map[string]any{"location": "nope"})))

	limited := (&Query{ClassName: "Place"}).WhereField("location", NearSphere{
		Point: base, MaxDistance: 0.01, HasMax: true,
	})
	assert.True(t, match(t, limited, score(map[string]any{"location": near})))
	assert.False(t, match(t, limited, score(map[string]any{"location": far})))
}

func TestWithinBox(t *testing.T) {
	q := (&Query{ClassName: "Place"}).WhereField("location", WithinBox{
		Southwest: object.GeoPoint{Latitude: 30, Longitude: -40},
		Northeast: object.GeoPoint{Latitude: 50, Longitude: -20},
	})
	assert.True(t, match(t, q, score(map[string]any{"location": object.GeoPoint{Latitude: 40, Longitude: -30}})))
	assert.False(t, match(t, q, score(map[string]any{"location": object.GeoPoint{Latitude: 60, Longitude: -30}})))
}

func TestWithinBox_Validation(t *testing.T) {
	inverted := (&Query{ClassName: "Place"}).WhereField("location", WithinBox{
		Southwest: object.GeoPoint{Latitude: 50, Longitude: -40},
		Northeast: object.GeoPoint{Latitude: 30, Longitude: -20},
	})
	_, err := Compile(inverted, nil)
	assert.True(t, IsInvalidQuery(err), "error = %v", err)

	crossing := (&Query{ClassName: "Place"}).WhereField("location", WithinBox{
		Southwest: object.GeoPoint{Latitude: 30, Longitude: 170},
		Northeast: object.GeoPoint{Latitude: 50, Longitude: -170},
	})
	_, err = Compile(crossing, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "International Date Line")

	tooWide := (&Query{ClassName: "Place"}).WhereField("location", WithinBox{
		Southwest: object.GeoPoint{Latitude: 30, Longitude: -90},
		Northeast: object.GeoPoint{Latitude: 50, Longitude: 90},
	})
	_, err = Compile(tooWide, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "180 degrees")
}

func TestWithinPolygon(t *testing.T) {
	triangle := []object.GeoPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 10, Longitude: 0},
		{Latitude: 0, Longitude: 10},
	}
	q := (&Query{ClassName: "Place"}).WhereField("location", WithinPolygon{Points: triangle})
	assert.True(t, match(t, q, score(map[string]any{"location": object.GeoPoint{Latitude: 2, Longitude: 2}})))
	assert.False(t, match(t, q, score(map[string]any{"location": object.GeoPoint{Latitude: 9, Longitude: 9}})))

	degenerate := (&Query{ClassName: "Place"}).WhereField("location", WithinPolygon{
		Points: triangle[:2],
	})
	_, err := Compile(degenerate, nil)
	assert.True(t, IsInvalidQuery(err), "error = %v", err)
}

func TestIntersectsPoint(t *testing.T) {
	triangle := []any{
		object.GeoPoint{Latitude: 0, Longitude: 0},
		object.GeoPoint{Latitude: 10, Longitude: 0},
		object.GeoPoint{Latitude: 0, Longitude: 10},
	}
	q := (&Query{ClassName: "Zone"}).WhereField("bounds", IntersectsPoint{
		Point: object.GeoPoint{Latitude: 2, Longitude: 2},
	})
	assert.True(t, match(t, q, score(map[string]any{"bounds": triangle})))

	outside := (&Query{ClassName: "Zone"}).WhereField("bounds", IntersectsPoint{
		Point: object.GeoPoint{Latitude: 9, Longitude: 9},
	})
	assert.False(t, match(t, outside, score(map[string]any{"bounds": triangle})))
	assert.False(t, match(t, outside, score(map[string]any{"bounds": "nope"})))
}

func TestOrBranches(t *testing.T) {
	q := &Query{ClassName: "Score"}
	q.Where.Or = []Clause{
		{Fields: map[string][]Condition{"points": {GreaterThan{Value: 100.0}}}},
		{Fields: map[string][]Condition{"name": {Equal{Value: "ann"}}}},
	}

	assert.True(t, match(t, q, score(map[string]any{"points": 150.0})))
	assert.True(t, match(t, q, score(map[string]any{"points": 10.0, "name": "ann"})))
	assert.False(t, match(t, q, score(map[string]any{"points": 10.0, "name": "bob"})))
}

func TestOrCombinesWithFields(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("active", Equal{Value: true})
	q.Where.Or = []Clause{
		{Fields: map[string][]Condition{"points": {GreaterThan{Value: 100.0}}}},
		{Fields: map[string][]Condition{"name": {Equal{Value: "ann"}}}},
	}

	assert.True(t, match(t, q, score(map[string]any{"active": true, "points": 150.0})))
	assert.False(t, match(t, q, score(map[string]any{"active": false, "points": 150.0})),
		"top-level fields still apply alongside $or")
}

func TestRelatedTo(t *testing.T) {
	post := object.New("Post")
	in := object.NewReference("Comment", "c1")
	out := object.NewReference("Comment", "c2")
	post.AddRelation("comments", in)

	q := &Query{ClassName: "Comment"}
	q.Where.Related = &RelatedTo{Parent: post, Key: "comments"}

	assert.True(t, match(t, q, in))
	assert.False(t, match(t, q, out))
}

// fakeRunner returns a fixed result set and counts invocations.
type fakeRunner struct {
	calls   int
	results []*object.Object
}

func (f *fakeRunner) RunSubquery(_ context.Context, _ *Query) ([]*object.Object, error) {
	f.calls++
	return f.results, nil
}

func TestMatchesQuery(t *testing.T) {
	game := object.NewReference("Game", "g1")
	runner := &fakeRunner{results: []*object.Object{game}}

	q := (&Query{ClassName: "Score"}).WhereField("game", MatchesQuery{
		Query: &Query{ClassName: "Game"},
	})
	m, err := Compile(q, runner)
	require.NoError(t, err)

	ctx := context.Background()
	ok, err := m(ctx, score(map[string]any{"game": game}))
	require.NoError(t, err)
	assert.True(t, ok)

	// Pointer equality by server identity, not just instance.
	ok, err = m(ctx, score(map[string]any{"game": object.NewReference("Game", "g1")}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m(ctx, score(map[string]any{"game": object.NewReference("Game", "g2")}))
	require.NoError(t, err)
	assert.False(t, ok)

	// The sub-query ran exactly once for all three candidates.
	assert.Equal(t, 1, runner.calls)
}

func TestNotMatchesQuery(t *testing.T) {
	game := object.NewReference("Game", "g1")
	runner := &fakeRunner{results: []*object.Object{game}}

	q := (&Query{ClassName: "Score"}).WhereField("game", NotMatchesQuery{
		Query: &Query{ClassName: "Game"},
	})
	m, err := Compile(q, runner)
	require.NoError(t, err)

	ok, err := m(context.Background(), score(map[string]any{"game": game}))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = m(context.Background(), score(map[string]any{"game": object.NewReference("Game", "g2")}))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesKeyInQuery(t *testing.T) {
	winner := object.New("Player")
	winner.Set("name", "ann")
	runner := &fakeRunner{results: []*object.Object{winner}}

	q := (&Query{ClassName: "Score"}).WhereField("playerName", MatchesKeyInQuery{
		Key:   "name",
		Query: &Query{ClassName: "Player"},
	})
	m, err := Compile(q, runner)
	require.NoError(t, err)

	ok, err := m(context.Background(), score(map[string]any{"playerName": "ann"}))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m(context.Background(), score(map[string]any{"playerName": "bob"}))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSubqueryWithoutRunnerFails(t *testing.T) {
	q := (&Query{ClassName: "Score"}).WhereField("game", MatchesQuery{
		Query: &Query{ClassName: "Game"},
	})
	m, err := Compile(q, nil)
	require.NoError(t, err)

	_, err = m(context.Background(), score(map[string]any{"game": "x"}))
	assert.True(t, IsInvalidQuery(err), "error = %v", err)
}

func TestEmptyClauseMatchesEverything(t *testing.T) {
	q := &Query{ClassName: "Score"}
	assert.True(t, match(t, q, score(map[string]any{})))
	assert.True(t, match(t, q, score(map[string]any{"anything": 1.0})))
}
