package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/jmoiron/sqlx"
)

// step is one additive, idempotent schema change.
type step struct {
	version int
	name    string
	apply   func(ctx context.Context, tx *sqlx.Tx, now string) error
}

// steps must stay append-only: never edit or reorder a released step.
var steps = []step{
	{1, "create cart and artwork_snapshot", func(ctx context.Context, tx *sqlx.Tx, _ string) error {
		return execAll(ctx, tx, cartTableV1, artworkTableV1, cartUserIndex)
	}},
	{2, "create material_snapshot", func(ctx context.Context, tx *sqlx.Tx, _ string) error {
		return execAll(ctx, tx, materialTableV2)
	}},
	{3, "add timestamps", func(ctx context.Context, tx *sqlx.Tx, now string) error {
		for _, c := range []struct{ table, column string }{
			{"cart", "date_added"},
			{"artwork_snapshot", "last_updated"},
			{"material_snapshot", "last_updated"},
		} {
			if err := addColumnIfAbsent(ctx, tx, c.table, c.column, "TEXT"); err != nil {
				return err
			}
			// ALTER TABLE cannot add a column with a non-constant default,
			// so existing rows are backfilled explicitly.
			q := fmt.Sprintf("UPDATE %s SET %s = ? WHERE %s IS NULL", c.table, c.column, c.column)
			if _, err := tx.ExecContext(ctx, q, now); err != nil {
				return errors.Wrap(err, "failed to backfill "+c.table+"."+c.column)
			}
		}
		return nil
	}},
	{4, "add artwork artist and dimensions", func(ctx context.Context, tx *sqlx.Tx, _ string) error {
		for _, c := range []struct{ column, decl string }{
			{"artist", "TEXT"},
			{"height", "REAL"},
			{"width", "REAL"},
			{"depth", "REAL"},
			{"unit", "TEXT"},
		} {
			if err := addColumnIfAbsent(ctx, tx, "artwork_snapshot", c.column, c.decl); err != nil {
				return err
			}
		}
		return nil
	}},
	{5, "enforce unique cart lines", func(ctx context.Context, tx *sqlx.Tx, _ string) error {
		return execAll(ctx, tx,
			mergeDuplicateMaterials,
			pinArtworkQuantity,
			deleteDuplicateLines,
			cartUniqueIndex,
			cartDateIndex,
		)
	}},
}

// TargetVersion is the schema version this build migrates to.
var TargetVersion = len(steps)

// MigrationResult reports the versions before and after a Migrate call.
type MigrationResult struct {
	From    int
	To      int
	Applied []int
}

// Migrate brings the schema up to TargetVersion.
func Migrate(ctx context.Context, db *sqlx.DB, now time.Time) (*MigrationResult, error) {
	return migrateTo(ctx, db, TargetVersion, now)
}

func migrateTo(ctx context.Context, db *sqlx.DB, target int, now time.Time) (*MigrationResult, error) {
	if _, err := db.ExecContext(ctx, versionTable); err != nil {
		slog.Error("database_version_table_failed", "error", err)
		return nil, errors.Wrap(err, "failed to create schema_version table")
	}

	current, err := readVersion(ctx, db)
	if err != nil {
		return nil, err
	}

	result := &MigrationResult{From: current, To: current}
	if current >= target {
		if current > target {
			slog.Warn("database_schema_newer_than_build", "version", current, "target", target)
		}
		return result, nil
	}

	slog.Info("database_migration_start", "from_version", current, "target_version", target)

	stamp := FormatTime(now)
	for _, s := range steps {
		if s.version <= current || s.version > target {
			continue
		}
		slog.Info("database_migration_step", "version", s.version, "name", s.name)
		if err := applyStep(ctx, db, s, stamp); err != nil {
			slog.Error("database_migration_step_failed", "version", s.version, "name", s.name, "error", err)
			return nil, errors.Wrap(err, fmt.Sprintf("migration %d (%s) failed", s.version, s.name))
		}
		result.Applied = append(result.Applied, s.version)
	}

	if _, err := db.ExecContext(ctx, `UPDATE schema_version SET version = ?`, target); err != nil {
		slog.Error("database_version_update_failed", "target_version", target, "error", err)
		return nil, errors.Wrap(err, "failed to record schema version")
	}
	result.To = target

	slog.Info("database_migration_complete", "from_version", current, "to_version", target, "applied", len(result.Applied))
	return result, nil
}

// readVersion returns the applied version, creating the row at 0 on a fresh store.
func readVersion(ctx context.Context, db *sqlx.DB) (int, error) {
	var version int
	err := db.GetContext(ctx, &version, `SELECT version FROM schema_version LIMIT 1`)
	if err == sql.ErrNoRows {
		if _, err := db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return 0, errors.Wrap(err, "failed to initialize schema version")
		}
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read schema version")
	}
	return version, nil
}

// Each step commits on its own; the sequence as a whole is not atomic.
func applyStep(ctx context.Context, db *sqlx.DB, s step, now string) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	if err := s.apply(ctx, tx, now); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit migration")
}

func execAll(ctx context.Context, tx *sqlx.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to execute migration statement")
		}
	}
	return nil
}

func addColumnIfAbsent(ctx context.Context, tx *sqlx.Tx, table, column, decl string) error {
	exists, err := columnExists(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	q := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)
	if _, err := tx.ExecContext(ctx, q); err != nil {
		return errors.Wrap(err, "failed to add column "+table+"."+column)
	}
	return nil
}

func columnExists(ctx context.Context, q sqlx.QueryerContext, table, column string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err != nil {
		return false, errors.Wrap(err, "failed to inspect "+table)
	}
	return n > 0, nil
}
