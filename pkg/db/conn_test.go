package db

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/jmoiron/sqlx"
)

func TestConn_EnsureReadyFreshStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cart.db")

	conn := NewConn(dbPath)
	defer conn.Close()

	if _, err := conn.EnsureReady(context.Background()); err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	version, err := conn.Version(context.Background())
	if err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version != TargetVersion {
		t.Errorf("version mismatch: got %d, want %d", version, TargetVersion)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestConn_EnsureReadyReturnsSameHandle(t *testing.T) {
	conn := NewConn(filepath.Join(t.TempDir(), "cart.db"))
	defer conn.Close()

	first, err := conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	second, err := conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("second open failed: %v", err)
	}
	if first != second {
		t.Error("expected EnsureReady to reuse the published handle")
	}
}

func TestConn_ConcurrentFirstUseOpensOnce(t *testing.T) {
	var opens atomic.Int32
	conn := NewConn(filepath.Join(t.TempDir(), "cart.db"), WithOpener(func(ctx context.Context, path string) (*sqlx.DB, error) {
		opens.Add(1)
		return DefaultOpener(ctx, path)
	}))
	defer conn.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := conn.EnsureReady(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent open failed: %v", err)
	}
	if got := opens.Load(); got != 1 {
		t.Errorf("expected exactly one open, got %d", got)
	}
}

func TestConn_FailedInitIsNotPublished(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cart.db")

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_version").WillReturnError(stderrors.New("disk I/O error"))
	mock.ExpectClose()

	var calls atomic.Int32
	conn := NewConn(dbPath, WithOpener(func(ctx context.Context, path string) (*sqlx.DB, error) {
		if calls.Add(1) == 1 {
			return sqlx.NewDb(mockDB, "sqlite"), nil
		}
		return DefaultOpener(ctx, path)
	}))
	defer conn.Close()

	_, err = conn.EnsureReady(context.Background())
	if !errors.IsKind(err, errors.KindInitialization) {
		t.Fatalf("expected initialization error, got %v", err)
	}
	if conn.current() != nil {
		t.Fatal("failed initialization must not publish a handle")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}

	if _, err := conn.EnsureReady(context.Background()); err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected a fresh open on retry, got %d opens", calls.Load())
	}
}

func TestDefaultOpener_PragmasApplyToEveryPath(t *testing.T) {
	for _, path := range []string{MemoryPath, filepath.Join(t.TempDir(), "cart.db")} {
		t.Run(path, func(t *testing.T) {
			db, err := DefaultOpener(context.Background(), path)
			if err != nil {
				t.Fatalf("failed to open %s: %v", path, err)
			}
			defer db.Close()

			var foreignKeys, busyTimeout int
			if err := db.Get(&foreignKeys, `PRAGMA foreign_keys`); err != nil {
				t.Fatalf("failed to read foreign_keys: %v", err)
			}
			if err := db.Get(&busyTimeout, `PRAGMA busy_timeout`); err != nil {
				t.Fatalf("failed to read busy_timeout: %v", err)
			}
			if foreignKeys != 1 {
				t.Errorf("foreign_keys: got %d, want 1", foreignKeys)
			}
			if busyTimeout != 5000 {
				t.Errorf("busy_timeout: got %d, want 5000", busyTimeout)
			}
		})
	}
}

func TestConn_OpenFailure(t *testing.T) {
	conn := NewConn("unused", WithOpener(func(ctx context.Context, path string) (*sqlx.DB, error) {
		return nil, stderrors.New("permission denied")
	}))

	_, err := conn.EnsureReady(context.Background())
	if !errors.IsKind(err, errors.KindInitialization) {
		t.Errorf("expected initialization error, got %v", err)
	}
}

func TestConn_CloseThenReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cart.db")
	conn := NewConn(dbPath)
	defer conn.Close()

	db, err := conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO cart (user_id, product_id, product_type, quantity, date_added) VALUES ('u1', 'm1', 'material', 2, '2026-01-01T00:00:00.000000000Z')`); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	if err := conn.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("second close should be a no-op: %v", err)
	}

	db, err = conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM cart`); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected persisted row after reopen, got %d", n)
	}
}

func TestConn_ResetStartsEmpty(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cart.db")
	conn := NewConn(dbPath)
	defer conn.Close()

	db, err := conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	db.Exec(`INSERT INTO cart (user_id, product_id, product_type, quantity, date_added) VALUES ('u1', 'a1', 'artwork', 1, '2026-01-01T00:00:00.000000000Z')`)

	if err := conn.Reset(context.Background()); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	db, err = conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("open after reset failed: %v", err)
	}
	var n int
	db.Get(&n, `SELECT COUNT(*) FROM cart`)
	if n != 0 {
		t.Errorf("expected empty cart after reset, got %d rows", n)
	}

	version, _ := conn.Version(context.Background())
	if version != TargetVersion {
		t.Errorf("reset store should be fully migrated: got %d", version)
	}
}

func TestConn_SnapshotTo(t *testing.T) {
	dir := t.TempDir()
	conn := NewConn(filepath.Join(dir, "cart.db"))
	defer conn.Close()

	db, err := conn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	db.Exec(`INSERT INTO material_snapshot (id, name, price, stock, last_updated) VALUES ('m1', 'Oil Paint', 12.5, 4, '2026-01-01T00:00:00.000000000Z')`)

	dest := filepath.Join(dir, "backup.db")
	if err := conn.SnapshotTo(context.Background(), dest); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	copyConn := NewConn(dest)
	defer copyConn.Close()
	copyDB, err := copyConn.EnsureReady(context.Background())
	if err != nil {
		t.Fatalf("open snapshot failed: %v", err)
	}
	var name string
	if err := copyDB.Get(&name, `SELECT name FROM material_snapshot WHERE id = 'm1'`); err != nil {
		t.Fatalf("read snapshot failed: %v", err)
	}
	if name != "Oil Paint" {
		t.Errorf("snapshot mismatch: got %q", name)
	}
}
