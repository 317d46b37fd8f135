// Package codec serializes object state to and from the snapshot document
// format stored in cache rows.
//
// A snapshot is a flat JSON document: the reserved objectId / createdAt /
// updatedAt / ACL keys plus one entry per field. Non-JSON-native values are
// tagged documents keyed by "__type":
//
//	{"__type":"Date","iso":"2011-08-21T18:02:52.249Z"}
//	{"__type":"Bytes","base64":"..."}
//	{"__type":"GeoPoint","latitude":40.0,"longitude":-30.0}
//	{"__type":"Relation","className":"Target","objects":[...]}
//	{"__type":"Pointer","className":"Game","objectId":"xWMyZ4YEGZ"}
//	{"__type":"OfflineObject","uuid":"..."}
//
// References to other domain objects become Pointer documents once the
// referenced object has a confirmed server id, and OfflineObject documents
// (by opaque cache key) before that. Resolution of those keys is delegated
// to the caller through the Resolver interfaces, so the codec itself stays
// independent of the registry and row store.
package codec

import "time"

// Tagged document type names.
const (
	TypeKey           = "__type"
	TypeDate          = "Date"
	TypeBytes         = "Bytes"
	TypeGeoPoint      = "GeoPoint"
	TypeRelation      = "Relation"
	TypePointer       = "Pointer"
	TypeOfflineObject = "OfflineObject"
)

// DateFormat is the wire layout for Date documents: UTC with millisecond
// precision.
const DateFormat = "2006-01-02T15:04:05.000Z"

// EncodeDate renders t as a Date document.
func EncodeDate(t time.Time) map[string]any {
	return map[string]any{
		TypeKey: TypeDate,
		"iso":   t.UTC().Format(DateFormat),
	}
}

// DecodeDate parses the iso field of a Date document.
func DecodeDate(iso string) (time.Time, error) {
	return time.Parse(DateFormat, iso)
}
