package object

// Op represents one pending field operation.
//
// This is a sealed interface - only types in this package implement it.
// The closed set keeps operation merging and application exhaustive:
//
//   - SetOp: replace the field with a value
//   - UnsetOp: remove the field
//   - IncrementOp: add a numeric delta to the field
//   - RelationOp: add/remove objects on a relation field
type Op interface {
	opNode() // Marker method - seals interface to this package
}

// SetOp replaces the field's value outright.
type SetOp struct {
	Value any
}

func (SetOp) opNode() {}

// UnsetOp removes the field.
type UnsetOp struct{}

func (UnsetOp) opNode() {}

// IncrementOp adds Amount to the field's current numeric value.
// Applying it to a missing field treats the previous value as zero.
type IncrementOp struct {
	Amount float64
}

func (IncrementOp) opNode() {}

// RelationOp edits a relation field's membership. Adds and Removes are
// disjoint; adding an object cancels a pending remove of it and vice versa.
type RelationOp struct {
	TargetClass string
	Adds        []*Object
	Removes     []*Object
}

func (RelationOp) opNode() {}

// mergeOps combines a previous pending operation with a newer one into the
// single operation that has the same effect. previous may be nil.
func mergeOps(previous, next Op) Op {
	if previous == nil {
		return next
	}
	switch n := next.(type) {
	case SetOp:
		return n
	case UnsetOp:
		return n
	case IncrementOp:
		switch p := previous.(type) {
		case SetOp:
			return SetOp{Value: addNumbers(p.Value, n.Amount)}
		case UnsetOp:
			return SetOp{Value: n.Amount}
		case IncrementOp:
			return IncrementOp{Amount: p.Amount + n.Amount}
		}
		return n
	case RelationOp:
		p, ok := previous.(RelationOp)
		if !ok {
			// Relation edits replace any non-relation pending op; mixing
			// the two on one field is a caller bug we resolve in favor of
			// the relation edit.
			return n
		}
		return mergeRelationOps(p, n)
	}
	return next
}

func mergeRelationOps(p, n RelationOp) RelationOp {
	merged := RelationOp{TargetClass: p.TargetClass}
	if merged.TargetClass == "" {
		merged.TargetClass = n.TargetClass
	}

	adds := make(map[*Object]bool)
	removes := make(map[*Object]bool)
	for _, o := range p.Adds {
		adds[o] = true
	}
	for _, o := range p.Removes {
		removes[o] = true
	}
	for _, o := range n.Adds {
		delete(removes, o)
		adds[o] = true
	}
	for _, o := range n.Removes {
		delete(adds, o)
		removes[o] = true
	}
	for o := range adds {
		merged.Adds = append(merged.Adds, o)
	}
	for o := range removes {
		merged.Removes = append(merged.Removes, o)
	}
	return merged
}

// apply computes the field value produced by op over previous.
// The boolean reports whether the field exists afterwards.
func applyOp(op Op, previous any, hadPrevious bool) (any, bool) {
	switch o := op.(type) {
	case SetOp:
		return o.Value, true
	case UnsetOp:
		return nil, false
	case IncrementOp:
		if !hadPrevious {
			return o.Amount, true
		}
		return addNumbers(previous, o.Amount), true
	case RelationOp:
		rel, ok := previous.(*Relation)
		if !ok || rel == nil {
			rel = NewRelation(o.TargetClass)
		}
		next := rel.clone()
		for _, obj := range o.Adds {
			next.add(obj)
		}
		for _, obj := range o.Removes {
			next.remove(obj)
		}
		return next, true
	}
	return previous, hadPrevious
}

// addNumbers adds delta to v, preserving float64 as the canonical numeric
// type for estimated data. Non-numeric previous values are replaced.
func addNumbers(v any, delta float64) any {
	f, ok := NumericValue(v)
	if !ok {
		return delta
	}
	return f + delta
}

// NumericValue normalizes any supported numeric type to float64.
func NumericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
