package cli

import (
	"context"
	"fmt"

	"offstore/internal/codec"
	"offstore/internal/object"
	"offstore/internal/offline"
	"offstore/internal/query"
)

// parseWhere translates a wire-format where document - the JSON constraint
// dialect of {"field": {"$op": operand}} maps plus "$or" branches - into
// the evaluator's typed condition tree. Tagged value documents (Date,
// GeoPoint, Pointer) are decoded through the store's reference resolver.
func parseWhere(ctx context.Context, s *offline.Store, raw map[string]any) (query.Clause, error) {
	clause := query.Clause{Fields: make(map[string][]query.Condition)}

	for field, rawValue := range raw {
		switch field {
		case "$or":
			branches, ok := rawValue.([]any)
			if !ok {
				return clause, fmt.Errorf("$or requires an array of clauses")
			}
			for _, rawBranch := range branches {
				doc, ok := rawBranch.(map[string]any)
				if !ok {
					return clause, fmt.Errorf("$or branch must be an object")
				}
				branch, err := parseWhere(ctx, s, doc)
				if err != nil {
					return clause, err
				}
				clause.Or = append(clause.Or, branch)
			}
		case "$relatedTo":
			related, err := parseRelatedTo(ctx, s, rawValue)
			if err != nil {
				return clause, err
			}
			clause.Related = related
		default:
			conds, err := parseFieldConstraint(ctx, s, rawValue)
			if err != nil {
				return clause, fmt.Errorf("field %q: %w", field, err)
			}
			clause.Fields[field] = conds
		}
	}
	return clause, nil
}

// parseFieldConstraint parses one field's constraint: either an operator
// map or a bare value meaning equality.
func parseFieldConstraint(ctx context.Context, s *offline.Store, rawValue any) ([]query.Condition, error) {
	doc, ok := rawValue.(map[string]any)
	if !ok || !hasOperators(doc) {
		value, err := decodeOperand(ctx, s, rawValue)
		if err != nil {
			return nil, err
		}
		return []query.Condition{query.Equal{Value: value}}, nil
	}

	var conds []query.Condition
	for op, rawOperand := range doc {
		if op == "$options" || op == "$maxDistance" {
			continue // consumed by their carrier operators below
		}
		cond, err := parseOperator(ctx, s, op, rawOperand, doc)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func parseOperator(ctx context.Context, s *offline.Store, op string, rawOperand any, doc map[string]any) (query.Condition, error) {
	switch op {
	case "$ne":
		v, err := decodeOperand(ctx, s, rawOperand)
		return query.NotEqual{Value: v}, err
	case "$lt":
		v, err := decodeOperand(ctx, s, rawOperand)
		return query.LessThan{Value: v}, err
	case "$lte":
		v, err := decodeOperand(ctx, s, rawOperand)
		return query.LessThanOrEqual{Value: v}, err
	case "$gt":
		v, err := decodeOperand(ctx, s, rawOperand)
		return query.GreaterThan{Value: v}, err
	case "$gte":
		v, err := decodeOperand(ctx, s, rawOperand)
		return query.GreaterThanOrEqual{Value: v}, err
	case "$in":
		values, err := decodeOperandList(ctx, s, rawOperand)
		return query.ContainedIn{Values: values}, err
	case "$nin":
		values, err := decodeOperandList(ctx, s, rawOperand)
		return query.NotContainedIn{Values: values}, err
	case "$all":
		values, err := decodeAllOperand(ctx, s, rawOperand)
		return query.ContainsAll{Values: values}, err
	case "$exists":
		want, ok := rawOperand.(bool)
		if !ok {
			return nil, fmt.Errorf("$exists requires a boolean")
		}
		return query.Exists{Want: want}, nil
	case "$regex":
		pattern, ok := rawOperand.(string)
		if !ok {
			return nil, fmt.Errorf("$regex requires a string")
		}
		flags, _ := doc["$options"].(string)
		return query.Matches{Pattern: pattern, Flags: flags}, nil
	case "$nearSphere":
		point, err := decodeGeoPoint(ctx, s, rawOperand)
		if err != nil {
			return nil, err
		}
		cond := query.NearSphere{Point: point}
		if max, ok := doc["$maxDistance"].(float64); ok {
			cond.MaxDistance = max
			cond.HasMax = true
		}
		return cond, nil
	case "$within":
		return parseWithinBox(ctx, s, rawOperand)
	case "$geoWithin":
		return parseGeoWithin(ctx, s, rawOperand)
	case "$geoIntersects":
		return parseGeoIntersects(ctx, s, rawOperand)
	case "$inQuery":
		sub, err := parseSubquery(ctx, s, rawOperand)
		return query.MatchesQuery{Query: sub}, err
	case "$notInQuery":
		sub, err := parseSubquery(ctx, s, rawOperand)
		return query.NotMatchesQuery{Query: sub}, err
	case "$select":
		key, sub, err := parseKeySubquery(ctx, s, rawOperand)
		return query.MatchesKeyInQuery{Key: key, Query: sub}, err
	case "$dontSelect":
		key, sub, err := parseKeySubquery(ctx, s, rawOperand)
		return query.NotMatchesKeyInQuery{Key: key, Query: sub}, err
	}
	return nil, fmt.Errorf("unsupported operator %q", op)
}

func parseWithinBox(ctx context.Context, s *offline.Store, rawOperand any) (query.Condition, error) {
	doc, _ := rawOperand.(map[string]any)
	box, ok := doc["$box"].([]any)
	if !ok || len(box) != 2 {
		return nil, fmt.Errorf("$within requires a $box of two points")
	}
	sw, err := decodeGeoPoint(ctx, s, box[0])
	if err != nil {
		return nil, err
	}
	ne, err := decodeGeoPoint(ctx, s, box[1])
	if err != nil {
		return nil, err
	}
	return query.WithinBox{Southwest: sw, Northeast: ne}, nil
}

func parseGeoWithin(ctx context.Context, s *offline.Store, rawOperand any) (query.Condition, error) {
	doc, _ := rawOperand.(map[string]any)
	rawPoints, ok := doc["$polygon"].([]any)
	if !ok {
		return nil, fmt.Errorf("$geoWithin requires a $polygon")
	}
	points := make([]object.GeoPoint, 0, len(rawPoints))
	for _, rawPoint := range rawPoints {
		p, err := decodeGeoPoint(ctx, s, rawPoint)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return query.WithinPolygon{Points: points}, nil
}

func parseGeoIntersects(ctx context.Context, s *offline.Store, rawOperand any) (query.Condition, error) {
	doc, _ := rawOperand.(map[string]any)
	p, err := decodeGeoPoint(ctx, s, doc["$point"])
	if err != nil {
		return nil, fmt.Errorf("$geoIntersects requires a $point: %w", err)
	}
	return query.IntersectsPoint{Point: p}, nil
}

func parseRelatedTo(ctx context.Context, s *offline.Store, rawValue any) (*query.RelatedTo, error) {
	doc, ok := rawValue.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("$relatedTo requires an object")
	}
	key, _ := doc["key"].(string)
	if key == "" {
		return nil, fmt.Errorf("$relatedTo requires a key")
	}
	parentValue, err := decodeOperand(ctx, s, doc["object"])
	if err != nil {
		return nil, err
	}
	parent, ok := parentValue.(*object.Object)
	if !ok {
		return nil, fmt.Errorf("$relatedTo object must be a pointer")
	}
	return &query.RelatedTo{Parent: parent, Key: key}, nil
}

func parseSubquery(ctx context.Context, s *offline.Store, rawOperand any) (*query.Query, error) {
	doc, ok := rawOperand.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("sub-query must be an object")
	}
	className, _ := doc["className"].(string)
	if className == "" {
		return nil, fmt.Errorf("sub-query requires a className")
	}
	sub := &query.Query{ClassName: className}
	if rawWhere, ok := doc["where"].(map[string]any); ok {
		where, err := parseWhere(ctx, s, rawWhere)
		if err != nil {
			return nil, err
		}
		sub.Where = where
	}
	return sub, nil
}

func parseKeySubquery(ctx context.Context, s *offline.Store, rawOperand any) (string, *query.Query, error) {
	doc, ok := rawOperand.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("$select requires an object")
	}
	key, _ := doc["key"].(string)
	if key == "" {
		return "", nil, fmt.Errorf("$select requires a key")
	}
	sub, err := parseSubquery(ctx, s, doc["query"])
	return key, sub, err
}

// decodeOperand decodes a wire operand, resolving tagged value documents
// through the store. Plain JSON values pass through unchanged.
func decodeOperand(ctx context.Context, s *offline.Store, raw any) (any, error) {
	return codec.DecodeValue(ctx, raw, s)
}

func decodeOperandList(ctx context.Context, s *offline.Store, raw any) ([]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("operator requires an array operand")
	}
	out := make([]any, len(list))
	for i, item := range list {
		decoded, err := decodeOperand(ctx, s, item)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}

// decodeAllOperand decodes a $all array. Elements may be regex documents,
// but only in the starts-with form, which becomes a prefix marker.
func decodeAllOperand(ctx context.Context, s *offline.Store, raw any) ([]any, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("$all requires an array operand")
	}
	out := make([]any, len(list))
	for i, item := range list {
		if doc, ok := item.(map[string]any); ok {
			if pattern, ok := doc["$regex"].(string); ok {
				sw, ok := query.StartsWithPattern(pattern)
				if !ok {
					return nil, fmt.Errorf("$all regex elements must be a starts-with pattern")
				}
				out[i] = sw
				continue
			}
		}
		decoded, err := decodeOperand(ctx, s, item)
		if err != nil {
			return nil, err
		}
		out[i] = decoded
	}
	return out, nil
}

func decodeGeoPoint(ctx context.Context, s *offline.Store, raw any) (object.GeoPoint, error) {
	decoded, err := decodeOperand(ctx, s, raw)
	if err != nil {
		return object.GeoPoint{}, err
	}
	p, ok := decoded.(object.GeoPoint)
	if !ok {
		return object.GeoPoint{}, fmt.Errorf("expected a GeoPoint document")
	}
	return p, nil
}

func hasOperators(doc map[string]any) bool {
	for key := range doc {
		if len(key) > 0 && key[0] == '$' {
			return true
		}
	}
	return false
}
