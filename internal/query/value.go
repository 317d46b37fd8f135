package query

import (
	"strings"
	"time"

	"offstore/internal/object"
)

// PathValue resolves a dotted field path against a candidate instance.
// Traversal descends through nested maps; descending into another domain
// object requires that object to already be fetched and continues through
// its fields. The boolean reports whether the path resolved to a value.
//
// Descending into a value that is neither a map nor an object is an
// INVALID_NESTED_KEY usage error; a missing key along the way is not.
func PathValue(obj *object.Object, path string) (any, bool, error) {
	segments := strings.Split(path, ".")

	var current any = obj
	for i, segment := range segments {
		switch holder := current.(type) {
		case *object.Object:
			if !holder.IsDataAvailable() {
				return nil, false, NewInvalidNestedKey(
					"cannot traverse into unfetched object at %q", strings.Join(segments[:i], "."))
			}
			v, ok := holder.Value(segment)
			if !ok {
				return nil, false, nil
			}
			current = v
		case map[string]any:
			v, ok := holder[segment]
			if !ok {
				return nil, false, nil
			}
			current = v
		default:
			return nil, false, NewInvalidNestedKey(
				"key %q is not traversable in path %q", segments[i-1], path)
		}
	}
	return current, true, nil
}

// valueEquals is the evaluator's equality relation: numerics compare by
// value across integer/float representations, dates by instant, object
// references by instance or by server identity.
func valueEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if fa, ok := object.NumericValue(a); ok {
		fb, ok := object.NumericValue(b)
		return ok && fa == fb
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case object.GeoPoint:
		bv, ok := b.(object.GeoPoint)
		return ok && av == bv
	case *object.Object:
		bv, ok := b.(*object.Object)
		if !ok {
			return false
		}
		if av == bv {
			return true
		}
		return av.ObjectID() != "" && av.ObjectID() == bv.ObjectID() &&
			av.ClassName() == bv.ClassName()
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !valueEquals(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !valueEquals(v, w) {
				return false
			}
		}
		return true
	}
	return a == b
}

// matchesEqual implements equality with array-containment semantics: a
// constraint value matches if it equals the field, or if the field is a
// collection containing it.
func matchesEqual(constraint, fieldValue any) bool {
	if list, ok := fieldValue.([]any); ok {
		if _, constraintIsList := constraint.([]any); !constraintIsList {
			for _, item := range list {
				if valueEquals(constraint, item) {
					return true
				}
			}
			return false
		}
	}
	return valueEquals(constraint, fieldValue)
}

// compareValues orders two values of the same comparable type family.
// Returns <0, 0, >0. Mismatched or unordered types are a usage error:
// offline comparison is typed (Date vs Date, String vs String, Number vs
// Number) and never coerces.
func compareValues(a, b any) (int, error) {
	if fa, aNum := object.NumericValue(a); aNum {
		fb, bNum := object.NumericValue(b)
		if !bNum {
			return 0, NewInvalidQuery("cannot compare number with %T", b)
		}
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		}
		return 0, nil
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, NewInvalidQuery("cannot compare string with %T", b)
		}
		return strings.Compare(av, bv), nil
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, NewInvalidQuery("cannot compare date with %T", b)
		}
		return av.Compare(bv), nil
	}
	return 0, NewInvalidQuery("values of type %T are not comparable", a)
}
