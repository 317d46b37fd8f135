package query

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"offstore/internal/object"
)

// sortKeyPattern is the shape of a legal sort key, with an optional
// descending prefix.
var sortKeyPattern = regexp.MustCompile(`^-?[A-Za-z][A-Za-z0-9_]*$`)

// Synthetic timestamp keys accepted in wire form alongside their canonical
// field names.
var syntheticKeys = map[string]string{
	"_created_at": object.KeyCreatedAt,
	"_updated_at": object.KeyUpdatedAt,
}

type sortKey struct {
	field      string
	descending bool
}

func parseSortKeys(order []string) ([]sortKey, error) {
	keys := make([]sortKey, 0, len(order))
	for _, raw := range order {
		key := raw
		descending := strings.HasPrefix(key, "-")
		if descending {
			key = key[1:]
		}
		if canonical, ok := syntheticKeys[key]; ok {
			key = canonical
		} else if !sortKeyPattern.MatchString(key) {
			return nil, NewInvalidKeyName("invalid sort key %q", raw)
		}
		keys = append(keys, sortKey{field: key, descending: descending})
	}
	return keys, nil
}

// Sort orders results in place by the query's sort keys.
//
// A NearSphere constraint on a field overrides the explicit keys: results
// sort by ascending great-circle distance from the constraint's point
// first, with explicit keys breaking ties. Sorting is stable.
func Sort(q *Query, results []*object.Object) error {
	keys, err := parseSortKeys(q.Order)
	if err != nil {
		return err
	}

	nearField, near, hasNear := findNearSphere(q.Where)
	if !hasNear && len(keys) == 0 {
		return nil
	}

	distances := make(map[*object.Object]float64, len(results))
	if hasNear {
		for _, candidate := range results {
			distances[candidate] = math.Inf(1)
			if v, ok, err := PathValue(candidate, nearField); err == nil && ok {
				if p, isPoint := v.(object.GeoPoint); isPoint {
					distances[candidate] = near.Point.RadiansTo(p)
				}
			}
		}
	}

	var sortErr error
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if hasNear {
			da, db := distances[a], distances[b]
			if da != db {
				return da < db
			}
		}
		for _, key := range keys {
			av, aok, err := PathValue(a, key.field)
			if err != nil && sortErr == nil {
				sortErr = err
			}
			bv, bok, err := PathValue(b, key.field)
			if err != nil && sortErr == nil {
				sortErr = err
			}
			if !aok && !bok {
				continue
			}
			// A missing value sorts before any present value.
			if !aok || !bok {
				return aok == key.descending
			}
			cmp, err := compareValues(av, bv)
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if cmp == 0 {
				continue
			}
			if key.descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	return sortErr
}

// findNearSphere locates the first NearSphere constraint at the top level
// of the clause. Nested OR branches do not influence sorting.
func findNearSphere(c Clause) (string, NearSphere, bool) {
	for path, conds := range c.Fields {
		for _, cond := range conds {
			if near, ok := cond.(NearSphere); ok {
				return path, near, true
			}
		}
	}
	return "", NearSphere{}, false
}

// Window applies skip and limit to the sorted result set. Skip clamps to
// the set size; limit <= 0 means unlimited.
func Window(results []*object.Object, skip, limit int) []*object.Object {
	if skip > 0 {
		if skip > len(results) {
			skip = len(results)
		}
		results = results[skip:]
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}
