// Package authstore keeps bearer-token sessions. Redis is used when
// configured; a process-local map serves single-node installs and tests.
package authstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/utils"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultTTL is how long a session lives without being renewed
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotFound is returned for unknown or expired tokens
var ErrNotFound = errors.New("session not found or expired")

// Session is a signed-in identity bound to a bearer token
type Session struct {
	Token     string         `json:"-"`
	Identity  types.Identity `json:"identity"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// Store persists sessions
type Store interface {
	Save(ctx context.Context, s Session) error
	Lookup(ctx context.Context, token string) (Session, error)
	Revoke(ctx context.Context, token string) error
	Ping(ctx context.Context) error
	Close() error
}

// NewSession creates a session with a fresh random token
func NewSession(identity types.Identity, ttl time.Duration, now time.Time) Session {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return Session{
		Token:     uuid.NewString(),
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Open returns a Redis store when url is set and reachable, otherwise
// an in-memory store. An unreachable Redis is logged, not fatal.
func Open(ctx context.Context, url string, logger *zap.Logger) Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	if url == "" {
		logger.Info("auth sessions kept in memory")
		return NewMemoryStore()
	}
	rs, err := NewRedisStore(ctx, url)
	if err != nil {
		logger.Warn("redis unavailable, auth sessions kept in memory", zap.Error(err))
		return NewMemoryStore()
	}
	logger.Info("auth sessions kept in redis")
	return rs
}

// RedisStore implements Store on Redis
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "studydesk:session:"}
}

// key stores only a digest of the token
func (s *RedisStore) key(token string) string {
	return s.prefix + utils.TokenDigest(token)
}

// Save stores a session until it expires
func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	data, err := sonic.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := s.client.Set(ctx, s.key(sess.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Lookup returns the session for token
func (s *RedisStore) Lookup(ctx context.Context, token string) (Session, error) {
	data, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var sess Session
	if err := sonic.Unmarshal(data, &sess); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	sess.Token = token
	return sess, nil
}

// Revoke deletes a session
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
	now      func() time.Time
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

// Save stores a session
func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	s.sessions[sess.Token] = sess
	s.mu.Unlock()
	return nil
}

// Lookup returns a live session, dropping it if expired
func (s *MemoryStore) Lookup(_ context.Context, token string) (Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return Session{}, ErrNotFound
	}
	if !sess.ExpiresAt.IsZero() && !s.now().Before(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, ErrNotFound
	}
	return sess, nil
}

// Revoke deletes a session
func (s *MemoryStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }
