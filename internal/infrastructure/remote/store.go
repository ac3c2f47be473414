package remote

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/persistence"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// PoolConfig tunes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// DefaultPoolConfig returns pool settings for a shared PostgreSQL server
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnMaxLifetime: 30 * time.Minute,
	}
}

// Store implements persistence.Store over SQL
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ persistence.Store = (*Store)(nil)

// Open connects using a driver name ("postgres" or "sqlite") and migrates
func Open(ctx context.Context, driver, dsn string, pool PoolConfig) (*Store, error) {
	switch strings.ToLower(driver) {
	case "postgres", "pgx", "postgresql":
		return OpenPostgres(ctx, dsn, pool)
	case "sqlite", "sqlite3":
		return OpenSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported remote driver %q", driver)
	}
}

// OpenPostgres connects to PostgreSQL through pgx and migrates
func OpenPostgres(ctx context.Context, databaseURL string, pool PoolConfig) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetMaxOpenConns(pool.MaxOpenConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return newStore(ctx, db, Postgres)
}

// OpenSQLite opens (or creates) a SQLite database at path and migrates
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one connection; an in-memory database is per connection
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}
	return newStore(ctx, db, SQLite)
}

// NewMemory creates an in-memory SQLite store for testing
func NewMemory(ctx context.Context) (*Store, error) {
	return OpenSQLite(ctx, ":memory:")
}

func newStore(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Put upserts a record unless the stored row is newer
func (s *Store) Put(ctx context.Context, rec persistence.Record) error {
	const q = `
		INSERT INTO records (kind, owner, id, body, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (kind, owner, id) DO UPDATE
		SET body = excluded.body, updated_at = excluded.updated_at
		WHERE records.updated_at <= excluded.updated_at`

	_, err := s.db.ExecContext(ctx, s.rebind(q),
		rec.Kind, rec.Owner, rec.ID, string(rec.Body), rec.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Key(), err)
	}
	return nil
}

// Delete removes a record; deleting a missing record is not an error
func (s *Store) Delete(ctx context.Context, kind, owner, id string) error {
	const q = `DELETE FROM records WHERE kind = $1 AND owner = $2 AND id = $3`

	if _, err := s.db.ExecContext(ctx, s.rebind(q), kind, owner, id); err != nil {
		return fmt.Errorf("delete %s: %w", persistence.RecordKey(kind, owner, id), err)
	}
	return nil
}

// List returns an owner's records of one kind, ordered by id
func (s *Store) List(ctx context.Context, kind, owner string) ([]persistence.Record, error) {
	const q = `SELECT id, body, updated_at FROM records WHERE kind = $1 AND owner = $2 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, s.rebind(q), kind, owner)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", kind, owner, err)
	}
	defer rows.Close()

	var out []persistence.Record
	for rows.Next() {
		var (
			id, body string
			updated  int64
		)
		if err := rows.Scan(&id, &body, &updated); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, persistence.Record{
			Kind:      kind,
			Owner:     owner,
			ID:        id,
			Body:      []byte(body),
			UpdatedAt: time.Unix(0, updated),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// rebind rewrites $n placeholders to ? for SQLite. Queries in this package
// use each placeholder once and in order.
func (s *Store) rebind(q string) string {
	if s.dialect != SQLite {
		return q
	}
	var b strings.Builder
	b.Grow(len(q))
	for i := 0; i < len(q); i++ {
		if q[i] == '$' {
			j := i + 1
			for j < len(q) && q[j] >= '0' && q[j] <= '9' {
				j++
			}
			if j > i+1 {
				b.WriteByte('?')
				i = j - 1
				continue
			}
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS records (
		kind       TEXT NOT NULL,
		owner      TEXT NOT NULL,
		id         TEXT NOT NULL,
		body       TEXT NOT NULL,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (kind, owner, id)
	)`,
	`CREATE INDEX IF NOT EXISTS records_owner_idx ON records (owner, kind)`,
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at BIGINT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}

	for i, stmt := range migrations {
		version := fmt.Sprintf("%04d", i+1)

		var exists int
		err := s.db.QueryRowContext(ctx,
			s.rebind(`SELECT 1 FROM schema_migrations WHERE version = $1`), version).Scan(&exists)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", version, err)
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx,
			s.rebind(`INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`),
			version, time.Now().Unix()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}
	return nil
}

// Version returns the number of applied migrations
func (s *Store) Version(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count migrations: %w", err)
	}
	return n, nil
}

// String describes the store for logs
func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// Dialect returns the SQL dialect in use
func (s *Store) Dialect() Dialect {
	return s.dialect
}

