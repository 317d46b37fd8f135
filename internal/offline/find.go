package offline

import (
	"context"
	"strings"

	"offstore/internal/object"
	"offstore/internal/query"
	"offstore/internal/store"
)

// Find executes a query against the local cache.
//
// Pipeline: candidate selection (all rows of the class, or the rows in the
// query's pin group) -> predicate matching -> ACL filter -> sort ->
// skip/limit -> include expansion. The first failure during matching
// surfaces as the query's failure; there are no partial results.
func (s *Store) Find(ctx context.Context, q *query.Query) ([]*object.Object, error) {
	results, err := s.findMatches(ctx, q)
	if err != nil {
		return nil, err
	}
	for _, include := range q.Includes {
		if err := s.expandInclude(ctx, results, include); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// Count executes the find pipeline minus include expansion and returns the
// result count.
func (s *Store) Count(ctx context.Context, q *query.Query) (int, error) {
	results, err := s.findMatches(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// RunSubquery implements query.SubqueryRunner. Sub-queries run the full
// matching pipeline but skip include expansion; their results exist only
// to be tested against.
func (s *Store) RunSubquery(ctx context.Context, q *query.Query) ([]*object.Object, error) {
	return s.findMatches(ctx, q)
}

func (s *Store) findMatches(ctx context.Context, q *query.Query) ([]*object.Object, error) {
	matcher, err := query.Compile(q, s)
	if err != nil {
		return nil, err
	}

	var rows []store.Row
	if q.Pin != "" {
		rows, err = s.rows.RowsInGroup(ctx, q.Pin, q.ClassName)
	} else {
		rows, err = s.rows.RowsByClass(ctx, q.ClassName)
	}
	if err != nil {
		return nil, err
	}

	var results []*object.Object
	for _, row := range rows {
		if !row.HasSnapshot {
			// Placeholder rows are referenced-but-never-saved; they have
			// no matchable state.
			continue
		}
		candidate, err := s.reg.ResolveByKey(ctx, row.UUID)
		if err != nil {
			return nil, err
		}
		if _, err := s.FetchLocally(ctx, candidate); err != nil {
			return nil, err
		}

		ok, err := matcher(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if !q.IgnoreACLs && !query.ReadAccessible(q.User, candidate) {
			continue
		}
		results = append(results, candidate)
	}

	if err := query.Sort(q, results); err != nil {
		return nil, err
	}
	return query.Window(results, q.Skip, q.Limit), nil
}

// expandInclude ensures every domain object reachable along one dotted
// include path is fetched from the cache. Null and missing values along
// the path are swallowed; descending into a non-traversable value fails
// with INVALID_NESTED_KEY. An object along the path that was never cached
// stays an unfetched stub.
func (s *Store) expandInclude(ctx context.Context, results []*object.Object, path string) error {
	segments := strings.Split(path, ".")
	for _, result := range results {
		if err := s.includeValue(ctx, result, segments); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) includeValue(ctx context.Context, v any, segments []string) error {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		// Arrays are transparent: the path applies to every element.
		for _, item := range t {
			if err := s.includeValue(ctx, item, segments); err != nil {
				return err
			}
		}
		return nil
	case *object.Object:
		if _, err := s.FetchLocally(ctx, t); err != nil {
			if store.IsCacheMiss(err) {
				return nil
			}
			return err
		}
		if len(segments) == 0 {
			return nil
		}
		if !t.IsDataAvailable() {
			return nil
		}
		next, ok := t.Value(segments[0])
		if !ok {
			return nil
		}
		return s.includeValue(ctx, next, segments[1:])
	case map[string]any:
		if len(segments) == 0 {
			return nil
		}
		next, ok := t[segments[0]]
		if !ok {
			return nil
		}
		return s.includeValue(ctx, next, segments[1:])
	default:
		if len(segments) == 0 {
			return nil
		}
		return query.NewInvalidNestedKey(
			"include path segment %q descends into a non-traversable value", segments[0])
	}
}
