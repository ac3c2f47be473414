// Package id provides centralized ID generation for the workspace backend.
//
// IDs are prefixed ULIDs:
//   - Lexicographic sortability: pages and notifications list in creation order
//   - Prefixed types: pg_*, blk_*, ntf_*, usr_*, req_* are readable in logs
//   - Type safety: separate string types prevent passing a block ID as a page ID
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// PageID identifies a notes page
type PageID string

// BlockID identifies a content block inside a page
type BlockID string

// NotificationID identifies a user notification
type NotificationID string

// UserID identifies a signed-in user
type UserID string

// RequestID identifies an API request or trace span
type RequestID string

const (
	PagePrefix         = "pg"
	BlockPrefix        = "blk"
	NotificationPrefix = "ntf"
	UserPrefix         = "usr"
	RequestPrefix      = "req"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic entropy,
// so IDs created within the same millisecond still sort in creation order.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
// Useful for deterministic tests.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewPageID generates a new page ID
func NewPageID() PageID {
	return PageID(Default().GenerateWithPrefix(PagePrefix))
}

// NewBlockID generates a new block ID
func NewBlockID() BlockID {
	return BlockID(Default().GenerateWithPrefix(BlockPrefix))
}

// NewNotificationID generates a new notification ID
func NewNotificationID() NotificationID {
	return NotificationID(Default().GenerateWithPrefix(NotificationPrefix))
}

// NewUserID generates a new user ID
func NewUserID() UserID {
	return UserID(Default().GenerateWithPrefix(UserPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

func (id PageID) String() string         { return string(id) }
func (id BlockID) String() string        { return string(id) }
func (id NotificationID) String() string { return string(id) }
func (id UserID) String() string         { return string(id) }
func (id RequestID) String() string      { return string(id) }

// IsValid checks if an ID string is a valid ULID
func IsValid(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}

// HasPrefix reports whether s is a well-formed ID with the given prefix
func HasPrefix(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"_")
	return ok && IsValid(rest)
}

// Timestamp extracts the creation time from a prefixed or bare ULID
func Timestamp(s string) (time.Time, error) {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	parsed, err := ulid.Parse(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse id %q: %w", s, err)
	}
	return ulid.Time(parsed.Time()), nil
}
