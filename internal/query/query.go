// Package query implements the in-process query evaluator: a declarative
// constraint tree compiled into composable matcher predicates, plus the
// sorting, windowing, and access-control rules of the full query pipeline.
//
// The evaluator reproduces the remote service's filter semantics entirely
// offline. Candidate selection and include expansion need the row store and
// fetch engine and therefore live with the store facade; everything that can
// be evaluated against already-loaded instances lives here.
package query

import (
	"sync"

	"offstore/internal/object"
)

// Clause is a conjunction of per-field constraints, optional OR branches,
// and an optional relation constraint. The zero value matches everything.
//
// A Clause is immutable once a query executes.
type Clause struct {
	// Fields maps a (possibly dotted) field path to the conditions it
	// must satisfy. All conditions on all fields must hold.
	Fields map[string][]Condition

	// Or, when non-empty, requires at least one branch to match; it is
	// evaluated in addition to Fields.
	Or []Clause

	// Related, when set, requires the candidate to be a locally-known
	// member of the parent object's relation.
	Related *RelatedTo
}

// RelatedTo constrains candidates to membership in a relation's
// locally-known-object cache.
type RelatedTo struct {
	Parent *object.Object
	Key    string
}

// Query is an executable offline query. Construct it declaratively; it
// must not be mutated after execution starts.
type Query struct {
	ClassName string
	Where     Clause

	// Order lists sort keys in priority order; a "-" prefix sorts
	// descending. A NearSphere constraint overrides these with ascending
	// distance, explicit keys breaking ties.
	Order []string

	// Skip and Limit window the sorted result set. Limit <= 0 means no
	// limit; Skip beyond the result set clamps to its size.
	Skip  int
	Limit int

	// Includes lists dotted paths whose referenced objects are fetched
	// as part of the results.
	Includes []string

	// Pin scopes candidate selection to a named group; empty means all
	// cached rows of the class.
	Pin string

	// IgnoreACLs disables the read-access filter.
	IgnoreACLs bool

	// User is the querying actor for ACL checks; may be nil.
	User *object.Object
}

// WhereField appends a condition on a field path, returning the query for
// chaining.
func (q *Query) WhereField(path string, cond Condition) *Query {
	if q.Where.Fields == nil {
		q.Where.Fields = make(map[string][]Condition)
	}
	q.Where.Fields[path] = append(q.Where.Fields[path], cond)
	return q
}

// subquery carries the memoized evaluation state of an embedded sub-query:
// it runs at most once regardless of how many candidates are tested, and
// every candidate observes the identical result set.
type subquery struct {
	query *Query

	once    sync.Once
	results []*object.Object
	err     error
}
