package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	"offstore/internal/object"
)

// ReferenceEncoder turns a domain object reference into its serialized
// form: a Pointer document when the object has a confirmed server id, or an
// OfflineObject document keyed by opaque cache key otherwise. Implementations
// may allocate a key as a side effect; encoding is not complete until every
// such allocation has resolved, which the synchronous call chain guarantees.
type ReferenceEncoder interface {
	EncodeReference(ctx context.Context, obj *object.Object) (map[string]any, error)
}

// EncodeSnapshot serializes an object's current (estimated) state as a
// snapshot document string.
func EncodeSnapshot(ctx context.Context, obj *object.Object, refs ReferenceEncoder) (string, error) {
	doc := make(map[string]any)

	if id := obj.ObjectID(); id != "" {
		doc[object.KeyObjectID] = id
	}
	if t, ok := obj.CreatedAt(); ok {
		doc[object.KeyCreatedAt] = EncodeDate(t)
	}
	if t, ok := obj.UpdatedAt(); ok {
		doc[object.KeyUpdatedAt] = EncodeDate(t)
	}

	for key, value := range obj.EstimatedData() {
		encoded, err := EncodeValue(ctx, value, refs)
		if err != nil {
			return "", fmt.Errorf("encode field %q: %w", key, err)
		}
		doc[key] = encoded
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	return string(out), nil
}

// EncodeValue serializes a single field value. Strings are NFC normalized
// so that equal-looking strings stored from different sources compare equal
// when matched offline.
func EncodeValue(ctx context.Context, value any, refs ReferenceEncoder) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return norm.NFC.String(v), nil
	case bool:
		return v, nil
	case time.Time:
		return EncodeDate(v), nil
	case []byte:
		return map[string]any{
			TypeKey:  TypeBytes,
			"base64": base64.StdEncoding.EncodeToString(v),
		}, nil
	case object.GeoPoint:
		return map[string]any{
			TypeKey:     TypeGeoPoint,
			"latitude":  v.Latitude,
			"longitude": v.Longitude,
		}, nil
	case *object.ACL:
		return v.Encode(), nil
	case *object.Object:
		return refs.EncodeReference(ctx, v)
	case *object.Relation:
		return encodeRelation(ctx, v, refs), nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			encoded, err := EncodeValue(ctx, item, refs)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			encoded, err := EncodeValue(ctx, item, refs)
			if err != nil {
				return nil, err
			}
			out[key] = encoded
		}
		return out, nil
	}

	if f, ok := object.NumericValue(value); ok {
		return f, nil
	}
	return nil, fmt.Errorf("cannot encode value of type %T", value)
}

// encodeRelation serializes a relation field. The locally-known membership
// cache is best-effort by contract: a member that cannot be encoded without
// side effects (no server id and no cache key yet) is dropped from the
// serialized cache rather than aborting the snapshot.
func encodeRelation(ctx context.Context, rel *object.Relation, refs ReferenceEncoder) map[string]any {
	doc := map[string]any{
		TypeKey:     TypeRelation,
		"className": rel.TargetClass(),
	}
	var members []any
	for _, member := range rel.KnownObjects() {
		if member.ObjectID() == "" {
			if _, ok := member.LocalKey(); !ok {
				continue
			}
		}
		encoded, err := refs.EncodeReference(ctx, member)
		if err != nil {
			continue
		}
		members = append(members, encoded)
	}
	if members != nil {
		doc["objects"] = members
	}
	return doc
}
