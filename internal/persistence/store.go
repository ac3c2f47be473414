package persistence

import (
	"context"
	"time"
)

// Record is an encoded entity as held by a store
type Record struct {
	Kind      string
	Owner     string
	ID        string
	Body      []byte
	Deleted   bool
	UpdatedAt time.Time
}

// Key returns the record's storage key
func (r Record) Key() string {
	return RecordKey(r.Kind, r.Owner, r.ID)
}

// RecordKey builds the storage key for an entity
func RecordKey(kind, owner, id string) string {
	return kind + "/" + owner + "/" + id
}

// Store is one persistence tier. The remote tier stores live records and
// removes them on Delete; the local tier stores pending mutations, including
// tombstones (Deleted records), and forgets them on Delete.
type Store interface {
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, kind, owner, id string) error
	List(ctx context.Context, kind, owner string) ([]Record, error)
}

// Owner identifies whose entities are being written
type Owner struct {
	ID    string
	Guest bool
}
