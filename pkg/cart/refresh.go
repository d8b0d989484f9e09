package cart

import (
	"context"
	"log/slog"

	"github.com/artfolio/cartstore/pkg/errors"
)

// RefreshSnapshots re-fetches every product in the user's cart and rewrites
// its snapshot. A failure for one product is logged and skipped.
func (s *Store) RefreshSnapshots(ctx context.Context, userID string) (*RefreshReport, error) {
	lines, err := s.Lines(ctx, userID)
	if err != nil {
		return nil, err
	}

	report := &RefreshReport{Total: len(lines)}
	if s.fetcher == nil {
		slog.Warn("cart_refresh_skipped", "user_id", userID, "reason", "no_fetcher")
		return report, nil
	}

	slog.Info("cart_refresh_start", "user_id", userID, "line_count", len(lines))
	for _, line := range lines {
		if err := s.refreshLine(ctx, line); err != nil {
			slog.Warn("cart_refresh_line_failed", "user_id", userID, "product_id", line.ProductID, "kind", line.Kind, "error", err)
			report.Failed = append(report.Failed, line.ProductID)
			continue
		}
		report.Refreshed++
	}

	slog.Info("cart_refresh_complete", "user_id", userID, "refreshed", report.Refreshed, "failed", len(report.Failed))
	return report, nil
}

func (s *Store) refreshLine(ctx context.Context, line Line) error {
	switch line.Kind {
	case KindArtwork:
		in, err := s.fetcher.FetchArtwork(ctx, line.ProductID)
		if err != nil {
			return errors.Wrap(err, "failed to fetch artwork")
		}
		if in == nil {
			return errors.Newf(errors.KindNotFound, "catalog returned no artwork %s", line.ProductID)
		}
		if in.ID == "" {
			in.ID = line.ProductID
		}
		return s.UpsertArtworkSnapshot(ctx, *in)
	case KindMaterial:
		in, err := s.fetcher.FetchMaterial(ctx, line.ProductID)
		if err != nil {
			return errors.Wrap(err, "failed to fetch material")
		}
		if in == nil {
			return errors.Newf(errors.KindNotFound, "catalog returned no material %s", line.ProductID)
		}
		if in.ID == "" {
			in.ID = line.ProductID
		}
		return s.UpsertMaterialSnapshot(ctx, *in)
	}
	return errors.Newf(errors.KindInvalidArgument, "unknown product type %q", line.Kind)
}

// PruneSnapshots deletes snapshots no cart line references. It never runs
// implicitly; cart operations leave stale snapshots in place.
func (s *Store) PruneSnapshots(ctx context.Context) (*PruneReport, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	report := &PruneReport{}
	res, err := tx.ExecContext(ctx, `
		DELETE FROM artwork_snapshot
		WHERE id NOT IN (SELECT product_id FROM cart WHERE product_type = 'artwork')`)
	if err != nil {
		slog.Error("database_delete_failed", "table", "artwork_snapshot", "error", err)
		return nil, errors.Wrap(err, "failed to prune artwork snapshots")
	}
	report.Artworks, _ = res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		DELETE FROM material_snapshot
		WHERE id NOT IN (SELECT product_id FROM cart WHERE product_type = 'material')`)
	if err != nil {
		slog.Error("database_delete_failed", "table", "material_snapshot", "error", err)
		return nil, errors.Wrap(err, "failed to prune material snapshots")
	}
	report.Materials, _ = res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("snapshots_pruned", "artworks", report.Artworks, "materials", report.Materials)
	return report, nil
}
