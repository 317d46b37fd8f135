package query

import "offstore/internal/object"

// Condition represents one operator constraint on a field.
//
// This is a sealed interface - only types in this package implement it.
// The closed set replaces a stringly-keyed operator map with a tagged union,
// so the compiler can exhaustively switch over operator kinds and each
// operand carries its natural type.
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Equal matches when the field equals the value, or when the field is a
// collection containing it.
type Equal struct {
	Value any
}

func (Equal) conditionNode() {}

// NotEqual is the negation of Equal.
type NotEqual struct {
	Value any
}

func (NotEqual) conditionNode() {}

// LessThan matches when the field compares strictly below the value.
// Comparison is typed: Date vs Date, String vs String, Number vs Number.
type LessThan struct {
	Value any
}

func (LessThan) conditionNode() {}

// LessThanOrEqual matches when the field compares at or below the value.
type LessThanOrEqual struct {
	Value any
}

func (LessThanOrEqual) conditionNode() {}

// GreaterThan matches when the field compares strictly above the value.
type GreaterThan struct {
	Value any
}

func (GreaterThan) conditionNode() {}

// GreaterThanOrEqual matches when the field compares at or above the value.
type GreaterThanOrEqual struct {
	Value any
}

func (GreaterThanOrEqual) conditionNode() {}

// ContainedIn matches when the field (or any element of a collection
// field) equals one of the supplied values.
type ContainedIn struct {
	Values []any
}

func (ContainedIn) conditionNode() {}

// NotContainedIn is the negation of ContainedIn.
type NotContainedIn struct {
	Values []any
}

func (NotContainedIn) conditionNode() {}

// ContainsAll matches collection fields containing every supplied value.
// A value may be a StartsWith marker, matching any element with the given
// prefix; this mirrors the batch starts-with form of the $all operator and
// is deliberately narrow rather than a general regex feature.
type ContainsAll struct {
	Values []any
}

func (ContainsAll) conditionNode() {}

// StartsWith is a prefix-match element usable inside ContainsAll.Values.
type StartsWith struct {
	Prefix string
}

// Exists matches on field presence (Want true) or absence (Want false).
type Exists struct {
	Want bool
}

func (Exists) conditionNode() {}

// Matches applies a regular expression to a string field. Flags is a
// subset of "imxs": case-insensitive, multi-line, extended (whitespace and
// #-comments ignored), and dot-matches-newline.
type Matches struct {
	Pattern string
	Flags   string
}

func (Matches) conditionNode() {}

// NearSphere matches geo point fields within MaxDistance radians of Point
// (all points when HasMax is false), and additionally overrides explicit
// sort keys with ascending distance order.
type NearSphere struct {
	Point       object.GeoPoint
	MaxDistance float64
	HasMax      bool
}

func (NearSphere) conditionNode() {}

// WithinBox matches geo point fields inside an axis-aligned box given by
// its southwest and northeast corners. Boxes may not cross the
// antimeridian, span 180 degrees of longitude or more, or invert corners.
type WithinBox struct {
	Southwest object.GeoPoint
	Northeast object.GeoPoint
}

func (WithinBox) conditionNode() {}

// WithinPolygon matches geo point fields inside a polygon of at least
// three vertices, by ray casting.
type WithinPolygon struct {
	Points []object.GeoPoint
}

func (WithinPolygon) conditionNode() {}

// IntersectsPoint matches polygon fields containing the given point.
type IntersectsPoint struct {
	Point object.GeoPoint
}

func (IntersectsPoint) conditionNode() {}

// MatchesQuery matches object-reference fields whose target is in the
// embedded sub-query's result set. The sub-query executes at most once per
// outer query execution; its result set is memoized across candidates.
type MatchesQuery struct {
	Query *Query
}

func (MatchesQuery) conditionNode() {}

// NotMatchesQuery is the negation of MatchesQuery.
type NotMatchesQuery struct {
	Query *Query
}

func (NotMatchesQuery) conditionNode() {}

// MatchesKeyInQuery matches when the field equals the value at Key in any
// of the embedded sub-query's results. Memoized like MatchesQuery.
type MatchesKeyInQuery struct {
	Key   string
	Query *Query
}

func (MatchesKeyInQuery) conditionNode() {}

// NotMatchesKeyInQuery is the negation of MatchesKeyInQuery.
type NotMatchesKeyInQuery struct {
	Key   string
	Query *Query
}

func (NotMatchesKeyInQuery) conditionNode() {}
