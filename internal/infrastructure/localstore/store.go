package localstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	"github.com/bytedance/sonic"
	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

const (
	recordPrefix   = "rec/"
	snapshotPrefix = "snap/"
)

// ErrNotFound is returned when a snapshot does not exist
var ErrNotFound = fmt.Errorf("localstore: %w", persistence.ErrNotFound)

// Config holds configuration for the local store
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM
	InMemory bool
	// SyncWrites fsyncs every commit
	SyncWrites bool
	// Logger receives badger's internal logs; nil silences them
	Logger *zap.Logger
	// GCInterval is how often value log GC runs; 0 disables it
	GCInterval time.Duration
	// GCDiscardRatio is the garbage ratio that triggers a rewrite
	GCDiscardRatio float64
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns a configuration for tests
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store implements persistence.Store on BadgerDB
type Store struct {
	db     *badger.DB
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
	stop   chan struct{}
	done   chan struct{}
}

var _ persistence.Store = (*Store)(nil)

// envelope is the stored form of a record
type envelope struct {
	Body      []byte `json:"b,omitempty"`
	Deleted   bool   `json:"d,omitempty"`
	UpdatedAt int64  `json:"t"`
}

// Open opens the store and starts value log GC if configured
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(badgerLogger{logger.Sugar()})
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	s := &Store{db: db, enc: enc, dec: dec, logger: logger}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenInMemory opens an in-memory store
func OpenInMemory() (*Store, error) {
	return Open(InMemoryConfig())
}

// Close stops GC and closes the database
func (s *Store) Close() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	s.dec.Close()
	if err := s.enc.Close(); err != nil {
		s.logger.Warn("close zstd encoder", zap.Error(err))
	}
	return s.db.Close()
}

// Put stores a pending mutation
func (s *Store) Put(ctx context.Context, rec persistence.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := sonic.Marshal(envelope{Body: rec.Body, Deleted: rec.Deleted, UpdatedAt: rec.UpdatedAt.UnixNano()})
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.Key(), err)
	}
	key := []byte(recordPrefix + rec.Key())
	val := s.enc.EncodeAll(raw, nil)

	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	}); err != nil {
		return fmt.Errorf("put %s: %w", rec.Key(), err)
	}
	return nil
}

// Delete forgets a pending mutation
func (s *Store) Delete(ctx context.Context, kind, owner, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := []byte(recordPrefix + persistence.RecordKey(kind, owner, id))
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// List returns an owner's pending mutations of one kind, ordered by id
func (s *Store) List(ctx context.Context, kind, owner string) ([]persistence.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := []byte(recordPrefix + persistence.RecordKey(kind, owner, ""))

	var out []persistence.Record
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			id := string(bytes.TrimPrefix(item.Key(), prefix))

			var env envelope
			if err := item.Value(func(val []byte) error {
				return s.decode(val, &env)
			}); err != nil {
				return fmt.Errorf("read %s: %w", item.Key(), err)
			}
			out = append(out, persistence.Record{
				Kind:      kind,
				Owner:     owner,
				ID:        id,
				Body:      env.Body,
				Deleted:   env.Deleted,
				UpdatedAt: time.Unix(0, env.UpdatedAt),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveSnapshot stores an opaque snapshot under key
func (s *Store) SaveSnapshot(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val := s.enc.EncodeAll(data, nil)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(snapshotPrefix+key), val)
	}); err != nil {
		return fmt.Errorf("save snapshot %s: %w", key, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot stored under key or ErrNotFound
func (s *Store) LoadSnapshot(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(snapshotPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out, err = s.dec.DecodeAll(val, nil)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return out, nil
}

// DeleteSnapshot removes a snapshot
func (s *Store) DeleteSnapshot(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(snapshotPrefix + key))
	})
}

func (s *Store) decode(val []byte, env *envelope) error {
	raw, err := s.dec.DecodeAll(val, nil)
	if err != nil {
		return fmt.Errorf("decompress: %w", err)
	}
	return sonic.Unmarshal(raw, env)
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err == nil {
				s.logger.Debug("badger value log GC completed")
			} else if !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("badger value log GC error", zap.Error(err))
			}
		}
	}
}

// badgerLogger adapts zap to badger's Logger interface
type badgerLogger struct {
	s *zap.SugaredLogger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.s.Infof(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }
