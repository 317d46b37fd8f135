// Package object defines the in-memory domain object model: mutable objects
// with a server-confirmed base state and a set of unsaved local operations
// layered on top, plus the value types that appear in object fields
// (GeoPoint, Relation, ACL).
//
// An Object tracks three things independently:
//
//   - server data: the last state confirmed by (or merged from) the server
//     or the local cache
//   - pending operations: unsaved local mutations (set, unset, increment,
//     relation edits), keyed by field
//   - estimated data: server data with pending operations applied, which is
//     what readers observe
//
// Merging new base state never discards pending operations; it replaces the
// server data underneath them and re-derives the estimated view. This is the
// invariant that lets cached snapshots be merged into an object the user is
// concurrently editing.
package object
