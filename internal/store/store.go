// Package store is the embedded SQLite database shared by coldguard plugins.
// Each plugin owns its tables and migrates them through a common ledger.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HerbHall/coldguard/pkg/plugin"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

// Compile-time interface guard.
var _ plugin.Store = (*SQLiteStore)(nil)

// SQLiteStore implements plugin.Store on modernc.org/sqlite.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	readOnly bool

	mu   sync.Mutex // serializes migrations
	once sync.Once
}

type options struct {
	readOnly    bool
	busyTimeout time.Duration
	cacheKiB    int
}

// Option tunes how a database is opened.
type Option func(*options)

// ReadOnly opens an existing database without write access. Used by
// tooling that inspects a database a running server may hold open.
func ReadOnly() Option { return func(o *options) { o.readOnly = true } }

// WithBusyTimeout sets how long a statement waits on a locked database.
func WithBusyTimeout(d time.Duration) Option { return func(o *options) { o.busyTimeout = d } }

// New opens or creates the database at path. ":memory:" gives a private
// in-memory database, useful in tests.
func New(path string, opts ...Option) (*SQLiteStore, error) {
	o := options{busyTimeout: 5 * time.Second, cacheKiB: 20000}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := path
	if o.readOnly {
		if path == ":memory:" {
			return nil, fmt.Errorf("open sqlite: read-only mode needs a database file")
		}
		dsn = "file:" + path + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: writes serialize, and an in-memory database is per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %q: %w", path, err)
	}

	// modernc.org/sqlite takes pragmas as statements rather than DSN params.
	for _, p := range o.pragmas() {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec %q: %w", p, err)
		}
	}

	return &SQLiteStore{db: db, path: path, readOnly: o.readOnly}, nil
}

func (o options) pragmas() []string {
	p := []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", o.busyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA cache_size=-%d", o.cacheKiB),
	}
	if o.readOnly {
		return append(p, "PRAGMA query_only=ON")
	}
	return append(p,
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	)
}

// DB returns the underlying *sql.DB for direct queries.
func (s *SQLiteStore) DB() *sql.DB { return s.db }

// Path is the path the store was opened with.
func (s *SQLiteStore) Path() string { return s.path }

// Tx runs fn in a transaction, committing when fn returns nil.
func (s *SQLiteStore) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original: %w)", rbErr, err)
		}
		return err
	}
	return tx.Commit()
}

// Optimize lets SQLite refresh query planner statistics and, when the
// write-ahead log has grown, folds it back into the main file. The detector
// calls it after pruning old readings.
func (s *SQLiteStore) Optimize(ctx context.Context) error {
	if s.readOnly {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("optimize: %w", err)
	}
	if strings.HasPrefix(s.path, ":memory:") {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("wal checkpoint: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
