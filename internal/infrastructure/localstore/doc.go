// Package localstore is the durable local tier of the persistence gateway.
//
// It is an embedded BadgerDB holding two keyspaces:
//
//	rec/<kind>/<owner>/<id>   pending gateway mutations, tombstones included
//	snap/<key>                whole-workspace snapshots (studydesk:v1:<user>)
//
// Values are zstd-compressed. Both keyspaces survive restarts, so writes made
// while the remote tier was down are replayed on the next reconcile.
package localstore
