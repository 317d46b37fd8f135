package codec

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"offstore/internal/object"
)

// ReferenceDecoder resolves serialized object references back into live
// instances. Pointer documents resolve through the server-identity map;
// OfflineObject documents resolve through the opaque-key map, never through
// the network.
type ReferenceDecoder interface {
	DecodePointer(ctx context.Context, className, objectID string) (*object.Object, error)
	DecodeOfflineReference(ctx context.Context, uuid string) (*object.Object, error)
}

// DecodeSnapshot parses a snapshot document into a base state ready to
// merge into an instance. Every embedded reference is resolved to its live
// instance before the state is returned, so merging never observes a
// half-resolved document.
func DecodeSnapshot(ctx context.Context, snapshot string, refs ReferenceDecoder) (object.ServerState, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(snapshot), &doc); err != nil {
		return object.ServerState{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	state := object.ServerState{
		Data:     make(map[string]any, len(doc)),
		Complete: true,
	}

	for key, raw := range doc {
		switch key {
		case object.KeyObjectID:
			if id, ok := raw.(string); ok {
				state.ObjectID = id
			}
			continue
		case object.KeyCreatedAt, object.KeyUpdatedAt:
			t, err := decodeDateDoc(raw)
			if err != nil {
				return object.ServerState{}, fmt.Errorf("decode %s: %w", key, err)
			}
			if key == object.KeyCreatedAt {
				state.CreatedAt = t
			} else {
				state.UpdatedAt = t
			}
			continue
		case object.KeyACL:
			if perms, ok := raw.(map[string]any); ok {
				state.Data[object.KeyACL] = object.DecodeACL(perms)
			}
			continue
		}

		value, err := DecodeValue(ctx, raw, refs)
		if err != nil {
			return object.ServerState{}, fmt.Errorf("decode field %q: %w", key, err)
		}
		state.Data[key] = value
	}

	return state, nil
}

// DecodeValue deserializes a single field value, resolving tagged documents
// recursively.
func DecodeValue(ctx context.Context, raw any, refs ReferenceDecoder) (any, error) {
	switch v := raw.(type) {
	case map[string]any:
		if _, tagged := v[TypeKey]; tagged {
			return decodeTagged(ctx, v, refs)
		}
		out := make(map[string]any, len(v))
		for key, item := range v {
			decoded, err := DecodeValue(ctx, item, refs)
			if err != nil {
				return nil, err
			}
			out[key] = decoded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			decoded, err := DecodeValue(ctx, item, refs)
			if err != nil {
				return nil, err
			}
			out[i] = decoded
		}
		return out, nil
	}
	return raw, nil
}

func decodeTagged(ctx context.Context, doc map[string]any, refs ReferenceDecoder) (any, error) {
	tag, _ := doc[TypeKey].(string)
	switch tag {
	case TypeDate:
		iso, _ := doc["iso"].(string)
		return DecodeDate(iso)
	case TypeBytes:
		b64, _ := doc["base64"].(string)
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode bytes: %w", err)
		}
		return data, nil
	case TypeGeoPoint:
		lat, _ := doc["latitude"].(float64)
		long, _ := doc["longitude"].(float64)
		return object.GeoPoint{Latitude: lat, Longitude: long}, nil
	case TypePointer:
		className, _ := doc["className"].(string)
		objectID, _ := doc["objectId"].(string)
		if className == "" || objectID == "" {
			return nil, fmt.Errorf("malformed Pointer document")
		}
		return refs.DecodePointer(ctx, className, objectID)
	case TypeOfflineObject:
		uuid, _ := doc["uuid"].(string)
		if uuid == "" {
			return nil, fmt.Errorf("malformed OfflineObject document")
		}
		return refs.DecodeOfflineReference(ctx, uuid)
	case TypeRelation:
		return decodeRelation(ctx, doc, refs)
	}
	return nil, fmt.Errorf("unknown tagged type %q", tag)
}

// decodeRelation restores a relation field. Members that fail to resolve
// are dropped from the known-objects cache: it is a best-effort cache, and
// a stale reference must not poison the whole snapshot.
func decodeRelation(ctx context.Context, doc map[string]any, refs ReferenceDecoder) (*object.Relation, error) {
	className, _ := doc["className"].(string)
	rel := object.NewRelation(className)
	members, _ := doc["objects"].([]any)
	for _, raw := range members {
		decoded, err := DecodeValue(ctx, raw, refs)
		if err != nil {
			continue
		}
		if member, ok := decoded.(*object.Object); ok {
			rel.AddKnown(member)
		}
	}
	return rel, nil
}

func decodeDateDoc(raw any) (time.Time, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return time.Time{}, fmt.Errorf("expected Date document")
	}
	iso, _ := doc["iso"].(string)
	return DecodeDate(iso)
}
