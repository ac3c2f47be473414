// Package content is the notes graph: pages holding an ordered list of
// block ids, and blocks holding typed content.
//
// Every block id listed by a page names an existing block, and a block
// belongs to exactly one page. Mutations preserve this by creating a block
// before referencing it and unreferencing it before deleting it. Deleting a
// page deletes its blocks and moves its child pages up to its parent.
//
// All writes go through persistence gateways, so a page created while the
// remote store is down still appears immediately and is reconciled later.
package content
