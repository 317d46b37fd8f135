package cli

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"offstore/internal/codec"
	"offstore/internal/object"
)

// displayObject renders an object as a plain document for output. Unlike
// the snapshot encoder this never allocates keys: unsaved references show
// as offline:<key> when keyed and as (unsaved) otherwise.
func displayObject(obj *object.Object) map[string]any {
	doc := make(map[string]any)
	doc["className"] = obj.ClassName()
	if id := obj.ObjectID(); id != "" {
		doc[object.KeyObjectID] = id
	}
	if t, ok := obj.CreatedAt(); ok {
		doc[object.KeyCreatedAt] = t.UTC().Format(codec.DateFormat)
	}
	if t, ok := obj.UpdatedAt(); ok {
		doc[object.KeyUpdatedAt] = t.UTC().Format(codec.DateFormat)
	}
	for key, value := range obj.EstimatedData() {
		doc[key] = displayValue(value)
	}
	return doc
}

func displayValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(codec.DateFormat)
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case object.GeoPoint:
		return fmt.Sprintf("(%g, %g)", t.Latitude, t.Longitude)
	case *object.ACL:
		return t.Encode()
	case *object.Object:
		return displayReference(t)
	case *object.Relation:
		return fmt.Sprintf("relation<%s>", t.TargetClass())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = displayValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for key, item := range t {
			out[key] = displayValue(item)
		}
		return out
	}
	return v
}

func displayReference(obj *object.Object) string {
	if id := obj.ObjectID(); id != "" {
		return fmt.Sprintf("%s#%s", obj.ClassName(), id)
	}
	if key, ok := obj.LocalKey(); ok {
		return fmt.Sprintf("%s@offline:%s", obj.ClassName(), key)
	}
	return fmt.Sprintf("%s@(unsaved)", obj.ClassName())
}

// writeDoc prints a document in the selected output format.
func writeDoc(w io.Writer, format string, doc any) error {
	if format == "json" {
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
		return nil
	}
	writeText(w, doc, "")
	return nil
}

func writeText(w io.Writer, doc any, indent string) {
	switch t := doc.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for key := range t {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			switch t[key].(type) {
			case map[string]any, []any:
				fmt.Fprintf(w, "%s%s:\n", indent, key)
				writeText(w, t[key], indent+"  ")
			default:
				fmt.Fprintf(w, "%s%s: %v\n", indent, key, t[key])
			}
		}
	case []any:
		for _, item := range t {
			writeText(w, item, indent)
		}
	default:
		fmt.Fprintf(w, "%s%v\n", indent, t)
	}
}
