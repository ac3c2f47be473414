// Package remote is the authoritative record store behind the persistence
// gateway. It speaks database/sql to PostgreSQL (pgx) in production and to
// SQLite (modernc, pure Go) for single-node installs and tests.
//
// Every entity kind shares one table keyed by (kind, owner, id); bodies are
// the gateway's JSON encoding. Upserts are last-writer-wins by updated_at,
// so a stale replay from a reconciling client never overwrites a newer row.
package remote
