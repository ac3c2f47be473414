package persistence

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a Store held in process memory. It backs guest-only
// deployments and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	rec.Body = append([]byte(nil), rec.Body...)

	s.mu.Lock()
	s.records[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, kind, owner, id string) error {
	s.mu.Lock()
	delete(s.records, RecordKey(kind, owner, id))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) List(_ context.Context, kind, owner string) ([]Record, error) {
	prefix := RecordKey(kind, owner, "")

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for key, rec := range s.records {
		if strings.HasPrefix(key, prefix) {
			rec.Body = append([]byte(nil), rec.Body...)
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len returns the number of stored records
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
