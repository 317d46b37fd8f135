package query

import (
	"context"
	"strings"

	"offstore/internal/object"
)

// Matcher is a compiled predicate evaluated per candidate instance.
type Matcher func(ctx context.Context, candidate *object.Object) (bool, error)

// SubqueryRunner executes an embedded sub-query and returns its matching
// instances. The facade implements this with the full find pipeline.
type SubqueryRunner interface {
	RunSubquery(ctx context.Context, q *Query) ([]*object.Object, error)
}

// Compile translates a query's constraint tree into a single matcher:
// an AND of per-field matchers, each an AND of per-operator matchers, with
// OR branches short-circuiting on the first true branch.
//
// Structural validation (geo box rules, polygon arity, regex syntax)
// happens here, so a malformed query fails before any candidate is read.
func Compile(q *Query, runner SubqueryRunner) (Matcher, error) {
	return compileClause(q.Where, runner)
}

func compileClause(c Clause, runner SubqueryRunner) (Matcher, error) {
	var matchers []Matcher

	for path, conds := range c.Fields {
		for _, cond := range conds {
			m, err := compileCondition(path, cond, runner)
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
		}
	}

	if len(c.Or) > 0 {
		branches := make([]Matcher, len(c.Or))
		for i, branch := range c.Or {
			m, err := compileClause(branch, runner)
			if err != nil {
				return nil, err
			}
			branches[i] = m
		}
		matchers = append(matchers, anyOf(branches))
	}

	if c.Related != nil {
		matchers = append(matchers, compileRelated(c.Related))
	}

	return allOf(matchers), nil
}

func allOf(matchers []Matcher) Matcher {
	return func(ctx context.Context, candidate *object.Object) (bool, error) {
		for _, m := range matchers {
			ok, err := m(ctx, candidate)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

func anyOf(branches []Matcher) Matcher {
	return func(ctx context.Context, candidate *object.Object) (bool, error) {
		for _, m := range branches {
			ok, err := m(ctx, candidate)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

func compileRelated(rel *RelatedTo) Matcher {
	return func(ctx context.Context, candidate *object.Object) (bool, error) {
		relation := rel.Parent.Relation(rel.Key)
		if relation == nil {
			return false, nil
		}
		return relation.Knows(candidate), nil
	}
}

// fieldMatcher wraps a per-value predicate with path resolution. The
// predicate receives the resolved value and whether the path resolved.
func fieldMatcher(path string, match func(value any, ok bool) (bool, error)) Matcher {
	return func(ctx context.Context, candidate *object.Object) (bool, error) {
		value, ok, err := PathValue(candidate, path)
		if err != nil {
			return false, err
		}
		return match(value, ok)
	}
}

func compileCondition(path string, cond Condition, runner SubqueryRunner) (Matcher, error) {
	switch c := cond.(type) {
	case Equal:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			return ok && matchesEqual(c.Value, v), nil
		}), nil

	case NotEqual:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			return !(ok && matchesEqual(c.Value, v)), nil
		}), nil

	case LessThan:
		return compareMatcher(path, c.Value, func(cmp int) bool { return cmp < 0 }), nil
	case LessThanOrEqual:
		return compareMatcher(path, c.Value, func(cmp int) bool { return cmp <= 0 }), nil
	case GreaterThan:
		return compareMatcher(path, c.Value, func(cmp int) bool { return cmp > 0 }), nil
	case GreaterThanOrEqual:
		return compareMatcher(path, c.Value, func(cmp int) bool { return cmp >= 0 }), nil

	case ContainedIn:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			if !ok {
				return false, nil
			}
			return containedIn(c.Values, v), nil
		}), nil

	case NotContainedIn:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			if !ok {
				return true, nil
			}
			return !containedIn(c.Values, v), nil
		}), nil

	case ContainsAll:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			if !ok {
				return false, nil
			}
			list, isList := v.([]any)
			if !isList {
				return false, nil
			}
			return containsAll(c.Values, list), nil
		}), nil

	case Exists:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			return ok == c.Want, nil
		}), nil

	case Matches:
		re, err := compileRegex(c.Pattern, c.Flags)
		if err != nil {
			return nil, err
		}
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			s, isString := v.(string)
			return ok && isString && re.MatchString(s), nil
		}), nil

	case NearSphere:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			p, isPoint := v.(object.GeoPoint)
			if !ok || !isPoint {
				return false, nil
			}
			if !c.HasMax {
				return true, nil
			}
			return c.Point.RadiansTo(p) <= c.MaxDistance, nil
		}), nil

	case WithinBox:
		if err := validateBox(c.Southwest, c.Northeast); err != nil {
			return nil, err
		}
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			p, isPoint := v.(object.GeoPoint)
			return ok && isPoint && pointInBox(p, c.Southwest, c.Northeast), nil
		}), nil

	case WithinPolygon:
		if err := validatePolygon(c.Points); err != nil {
			return nil, err
		}
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			p, isPoint := v.(object.GeoPoint)
			return ok && isPoint && pointInPolygon(p, c.Points), nil
		}), nil

	case IntersectsPoint:
		return fieldMatcher(path, func(v any, ok bool) (bool, error) {
			if !ok {
				return false, nil
			}
			polygon, isPolygon := toPolygon(v)
			if !isPolygon {
				return false, nil
			}
			return pointInPolygon(c.Point, polygon), nil
		}), nil

	case MatchesQuery:
		sub := &subquery{query: c.Query}
		return fieldMatcher2(path, runner, sub, matchesInResults), nil

	case NotMatchesQuery:
		sub := &subquery{query: c.Query}
		return fieldMatcher2(path, runner, sub, func(v any, ok bool, results []*object.Object) bool {
			return !matchesInResults(v, ok, results)
		}), nil

	case MatchesKeyInQuery:
		sub := &subquery{query: c.Query}
		return fieldMatcher2(path, runner, sub, keyInResults(c.Key)), nil

	case NotMatchesKeyInQuery:
		sub := &subquery{query: c.Query}
		inner := keyInResults(c.Key)
		return fieldMatcher2(path, runner, sub, func(v any, ok bool, results []*object.Object) bool {
			return !inner(v, ok, results)
		}), nil
	}

	return nil, NewInvalidQuery("unsupported condition %T on %q", cond, path)
}

func compareMatcher(path string, operand any, accept func(int) bool) Matcher {
	return fieldMatcher(path, func(v any, ok bool) (bool, error) {
		if !ok {
			return false, nil
		}
		cmp, err := compareValues(v, operand)
		if err != nil {
			return false, err
		}
		return accept(cmp), nil
	})
}

func containedIn(values []any, fieldValue any) bool {
	for _, cv := range values {
		if matchesEqual(cv, fieldValue) {
			return true
		}
	}
	return false
}

// containsAll requires every constraint value to be present in the field's
// collection. StartsWith markers match any element with the given prefix.
func containsAll(required []any, list []any) bool {
	for _, rv := range required {
		found := false
		if sw, isPrefix := rv.(StartsWith); isPrefix {
			for _, item := range list {
				if s, isString := item.(string); isString && strings.HasPrefix(s, sw.Prefix) {
					found = true
					break
				}
			}
		} else {
			for _, item := range list {
				if valueEquals(rv, item) {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func toPolygon(v any) ([]object.GeoPoint, bool) {
	switch poly := v.(type) {
	case []object.GeoPoint:
		return poly, len(poly) >= 3
	case []any:
		points := make([]object.GeoPoint, 0, len(poly))
		for _, item := range poly {
			p, ok := item.(object.GeoPoint)
			if !ok {
				return nil, false
			}
			points = append(points, p)
		}
		return points, len(points) >= 3
	}
	return nil, false
}

// fieldMatcher2 wraps a predicate that additionally needs a memoized
// sub-query result set. The sub-query runs on first use only; all
// candidates share the one result set.
func fieldMatcher2(path string, runner SubqueryRunner, sub *subquery,
	match func(v any, ok bool, results []*object.Object) bool) Matcher {
	return func(ctx context.Context, candidate *object.Object) (bool, error) {
		sub.once.Do(func() {
			if runner == nil {
				sub.err = NewInvalidQuery("sub-query constraints require a query runner")
				return
			}
			sub.results, sub.err = runner.RunSubquery(ctx, sub.query)
		})
		if sub.err != nil {
			return false, sub.err
		}
		value, ok, err := PathValue(candidate, path)
		if err != nil {
			return false, err
		}
		return match(value, ok, sub.results), nil
	}
}

// matchesInResults reports whether the field's object reference points at
// one of the sub-query's results.
func matchesInResults(v any, ok bool, results []*object.Object) bool {
	if !ok {
		return false
	}
	for _, result := range results {
		if valueEquals(v, result) {
			return true
		}
	}
	return false
}

// keyInResults matches the field value against the value at key in each
// sub-query result.
func keyInResults(key string) func(v any, ok bool, results []*object.Object) bool {
	return func(v any, ok bool, results []*object.Object) bool {
		if !ok {
			return false
		}
		for _, result := range results {
			if rv, has := result.Value(key); has && matchesEqual(rv, v) {
				return true
			}
		}
		return false
	}
}
