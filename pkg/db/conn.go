// Package db owns the embedded SQLite store: connection lifecycle and the
// version-gated schema migrations.
package db

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory store.
const MemoryPath = ":memory:"

// Opener opens a raw handle for path. Migration is done by Conn.
type Opener func(ctx context.Context, path string) (*sqlx.DB, error)

// Option configures a Conn.
type Option func(*Conn)

// WithOpener replaces the default SQLite opener.
func WithOpener(open Opener) Option {
	return func(c *Conn) { c.open = open }
}

// WithClock overrides the clock used for migration backfills.
func WithClock(now func() time.Time) Option {
	return func(c *Conn) { c.now = now }
}

// Conn guards a single shared connection to the store. Concurrent first
// callers of EnsureReady share one initialization attempt.
type Conn struct {
	path string
	open Opener
	now  func() time.Time

	init singleflight.Group

	mu sync.Mutex
	db *sqlx.DB
}

// NewConn creates a lazily opened connection for path.
func NewConn(path string, opts ...Option) *Conn {
	c := &Conn{
		path: path,
		open: DefaultOpener,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// dsnParams apply to file and in-memory databases alike.
const dsnParams = "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate"

// DefaultOpener opens path with modernc.org/sqlite, creating the parent
// directory if needed.
func DefaultOpener(ctx context.Context, path string) (*sqlx.DB, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create database directory")
		}
	}
	dsn := path + "?" + dsnParams

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// One connection: SQLite is a single-writer file and :memory: is per-connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// Path returns the backing file path.
func (c *Conn) Path() string {
	return c.path
}

// EnsureReady returns the live handle, opening and migrating the store on
// first use. A failed attempt publishes nothing; the next call retries.
func (c *Conn) EnsureReady(ctx context.Context) (*sqlx.DB, error) {
	if db := c.current(); db != nil {
		return db, nil
	}

	// Initialization is shared, so it must not die with one caller's context.
	initCtx := context.WithoutCancel(ctx)
	v, err, shared := c.init.Do("init", func() (any, error) {
		if db := c.current(); db != nil {
			return db, nil
		}
		db, err := c.initialize(initCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.db = db
		c.mu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("database_init_shared", "db_path", c.path)
	}
	return v.(*sqlx.DB), nil
}

func (c *Conn) current() *sqlx.DB {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db
}

func (c *Conn) initialize(ctx context.Context) (*sqlx.DB, error) {
	slog.Info("database_init", "db_path", c.path)

	db, err := c.open(ctx, c.path)
	if err != nil {
		slog.Error("database_open_failed", "db_path", c.path, "error", err)
		return nil, errors.WrapKind(errors.KindInitialization, err, "failed to open store")
	}

	result, err := Migrate(ctx, db, c.now())
	if err != nil {
		db.Close()
		slog.Error("database_migrate_failed", "db_path", c.path, "error", err)
		return nil, errors.WrapKind(errors.KindInitialization, err, "failed to migrate store")
	}

	slog.Info("database_ready", "db_path", c.path, "schema_version", result.To)
	return db, nil
}

// Close releases the connection. Later operations reopen it.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	slog.Info("database_closed", "db_path", c.path)
	return errors.Wrap(err, "failed to close database")
}

// Reset closes the store, deletes its files and reinitializes it empty.
// It is meant for recovery from corruption only.
func (c *Conn) Reset(ctx context.Context) error {
	slog.Warn("database_reset", "db_path", c.path)

	if err := c.Close(); err != nil {
		slog.Error("database_reset_close_failed", "db_path", c.path, "error", err)
	}

	if c.path != MemoryPath {
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			if err := os.Remove(c.path + suffix); err != nil && !os.IsNotExist(err) {
				slog.Error("database_reset_remove_failed", "path", c.path+suffix, "error", err)
				return errors.Wrap(err, "failed to remove database file")
			}
		}
	}

	_, err := c.EnsureReady(ctx)
	return err
}

// Version returns the applied schema version.
func (c *Conn) Version(ctx context.Context) (int, error) {
	db, err := c.EnsureReady(ctx)
	if err != nil {
		return 0, err
	}
	var version int
	if err := db.GetContext(ctx, &version, `SELECT version FROM schema_version LIMIT 1`); err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

// SnapshotTo writes a consistent copy of the live store to dest.
func (c *Conn) SnapshotTo(ctx context.Context, dest string) error {
	db, err := c.EnsureReady(ctx)
	if err != nil {
		return err
	}
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to clear snapshot destination")
	}

	slog.Info("database_snapshot_start", "db_path", c.path, "dest", dest)
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, dest); err != nil {
		slog.Error("database_snapshot_failed", "dest", dest, "error", err)
		return errors.Wrap(err, "failed to snapshot database")
	}
	slog.Info("database_snapshot_complete", "dest", dest)
	return nil
}
