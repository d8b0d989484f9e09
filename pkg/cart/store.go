// Package cart implements the offline cart: product snapshots cached beside
// per-user cart lines, with stock and one-of-a-kind artwork invariants
// enforced locally.
package cart

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/artfolio/cartstore/pkg/db"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/artfolio/cartstore/pkg/security"
	"github.com/jmoiron/sqlx"
)

// Store provides cart operations over a shared connection.
type Store struct {
	conn      *db.Conn
	validator *security.Validator
	fetcher   ProductFetcher
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithFetcher enables Items(refresh=true) and RefreshSnapshots.
func WithFetcher(f ProductFetcher) Option {
	return func(s *Store) { s.fetcher = f }
}

// WithValidator replaces the default boundary validator.
func WithValidator(v *security.Validator) Option {
	return func(s *Store) { s.validator = v }
}

// WithClock overrides the clock used for date_added and last_updated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cart store
func New(conn *db.Conn, opts ...Option) *Store {
	s := &Store{
		conn: conn,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = security.NewValidator(0, 2000)
	}
	return s
}

type lineRow struct {
	ID        int64          `db:"id"`
	UserID    string         `db:"user_id"`
	ProductID string         `db:"product_id"`
	Kind      string         `db:"product_type"`
	Quantity  int            `db:"quantity"`
	DateAdded sql.NullString `db:"date_added"`
}

func (r *lineRow) line() Line {
	added, _ := db.ParseTime(r.DateAdded.String)
	return Line{
		ID:        r.ID,
		UserID:    r.UserID,
		ProductID: r.ProductID,
		Kind:      Kind(r.Kind),
		Quantity:  r.Quantity,
		DateAdded: added,
	}
}

const insertLineSQL = `
INSERT INTO cart (user_id, product_id, product_type, quantity, date_added)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(user_id, product_id, product_type) DO NOTHING
`

// AddArtwork caches the artwork and adds it with quantity 1. Re-adding is
// a successful no-op reporting AlreadyInCart.
func (s *Store) AddArtwork(ctx context.Context, in ArtworkInput, userID string) (*AddResult, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("cart_add_artwork", "user_id", userID, "product_id", in.ID)

	if err := validateUser(userID); err != nil {
		return nil, err
	}
	row, err := s.artworkRow(in)
	if err != nil {
		return nil, err
	}
	if err := upsertArtwork(ctx, conn, row); err != nil {
		return nil, err
	}

	res, err := conn.ExecContext(ctx, insertLineSQL, userID, row.ID, string(KindArtwork), 1, db.FormatTime(s.now()))
	if err != nil {
		slog.Error("database_insert_failed", "table", "cart", "user_id", userID, "product_id", row.ID, "error", err)
		return nil, errors.Wrap(err, "failed to insert cart line")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get rows affected")
	}

	if n == 0 {
		existing, err := findLine(ctx, conn, userID, row.ID, KindArtwork)
		if err != nil {
			return nil, err
		}
		slog.Info("cart_artwork_already_in_cart", "user_id", userID, "product_id", row.ID, "line_id", existing.ID)
		return &AddResult{
			Success:       true,
			AlreadyInCart: true,
			LineID:        existing.ID,
			Quantity:      1,
			Message:       "Artwork is already in your cart",
		}, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get last insert id")
	}
	slog.Info("cart_line_created", "user_id", userID, "product_id", row.ID, "line_id", id, "kind", KindArtwork)
	return &AddResult{Success: true, LineID: id, Quantity: 1, Message: "Added to cart"}, nil
}

// AddMaterial caches the material and adds quantity units, merging into an
// existing line. The merged quantity may not exceed the snapshot stock.
func (s *Store) AddMaterial(ctx context.Context, in MaterialInput, userID string, quantity int) (*AddResult, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("cart_add_material", "user_id", userID, "product_id", in.ID, "quantity", quantity)

	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}
	row, err := s.materialRow(in)
	if err != nil {
		return nil, err
	}
	// The snapshot is kept even when the stock check below fails.
	if err := upsertMaterial(ctx, conn, row); err != nil {
		return nil, err
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("failed_to_begin_transaction", "error", err)
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	existing, err := findLine(ctx, tx, userID, row.ID, KindMaterial)
	if err != nil && !errors.IsKind(err, errors.KindNotFound) {
		return nil, err
	}
	stock, err := materialStock(ctx, tx, row.ID)
	if err != nil {
		return nil, err
	}

	newQuantity := quantity
	if existing != nil {
		newQuantity += existing.Quantity
	}
	if newQuantity > stock {
		return nil, stockExceeded(row.ID, newQuantity, stock)
	}
	if err := s.validateQuantity(newQuantity); err != nil {
		return nil, err
	}

	result := &AddResult{Success: true, Quantity: newQuantity}
	if existing != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE cart SET quantity = ? WHERE id = ?`, newQuantity, existing.ID); err != nil {
			slog.Error("database_update_failed", "table", "cart", "line_id", existing.ID, "error", err)
			return nil, errors.Wrap(err, "failed to update cart line")
		}
		result.LineID = existing.ID
		result.Message = "Cart updated"
	} else {
		res, err := tx.ExecContext(ctx, insertLineSQL, userID, row.ID, string(KindMaterial), newQuantity, db.FormatTime(s.now()))
		if err != nil {
			slog.Error("database_insert_failed", "table", "cart", "user_id", userID, "product_id", row.ID, "error", err)
			return nil, errors.Wrap(err, "failed to insert cart line")
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get last insert id")
		}
		result.LineID = id
		result.Message = "Added to cart"
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed_to_commit_transaction", "error", err)
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("cart_material_added", "user_id", userID, "product_id", row.ID, "line_id", result.LineID, "quantity", newQuantity, "stock", stock)
	return result, nil
}

// Items returns the user's cart newest first, each line joined to its
// snapshot. With refresh, snapshots are re-fetched first; per-line fetch
// failures leave the stale snapshot in place.
func (s *Store) Items(ctx context.Context, userID string, refresh bool) ([]Item, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	if refresh {
		if _, err := s.RefreshSnapshots(ctx, userID); err != nil {
			return nil, err
		}
	}

	var rows []itemRow
	if err := conn.SelectContext(ctx, &rows, selectItemsSQL, userID); err != nil {
		slog.Error("database_list_query_failed", "table", "cart", "user_id", userID, "error", err)
		return nil, errors.Wrap(err, "failed to list cart items")
	}

	items := make([]Item, 0, len(rows))
	for _, r := range rows {
		item, err := r.item()
		if err != nil {
			slog.Warn("cart_snapshot_missing", "user_id", userID, "line_id", r.ID, "product_id", r.ProductID, "kind", r.Kind)
			continue
		}
		items = append(items, *item)
	}

	slog.Info("cart_items_listed", "user_id", userID, "item_count", len(items), "skipped", len(rows)-len(items))
	return items, nil
}

// Lines returns the user's bare cart lines, newest first.
func (s *Store) Lines(ctx context.Context, userID string) ([]Line, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateUser(userID); err != nil {
		return nil, err
	}

	var rows []lineRow
	err = conn.SelectContext(ctx, &rows, `
		SELECT id, user_id, product_id, product_type, quantity, date_added
		FROM cart WHERE user_id = ?
		ORDER BY date_added DESC, id DESC`, userID)
	if err != nil {
		slog.Error("database_list_query_failed", "table", "cart", "user_id", userID, "error", err)
		return nil, errors.Wrap(err, "failed to list cart lines")
	}

	lines := make([]Line, 0, len(rows))
	for i := range rows {
		lines = append(lines, rows[i].line())
	}
	return lines, nil
}

// UpdateQuantity sets a material line's quantity. A quantity <= 0 removes
// the line; artwork lines are left at 1.
func (s *Store) UpdateQuantity(ctx context.Context, lineID int64, quantity int, userID string) (*UpdateResult, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("cart_update_quantity", "user_id", userID, "line_id", lineID, "quantity", quantity)

	if err := validateUser(userID); err != nil {
		return nil, err
	}
	if quantity <= 0 {
		if err := s.Remove(ctx, lineID, userID); err != nil {
			return nil, err
		}
		return &UpdateResult{Success: true, Removed: true, Message: "Removed from cart"}, nil
	}

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		slog.Error("failed_to_begin_transaction", "error", err)
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	line, err := ownedLine(ctx, tx, lineID, userID)
	if err != nil {
		return nil, err
	}

	if Kind(line.Kind) == KindArtwork {
		slog.Info("cart_artwork_quantity_fixed", "user_id", userID, "line_id", lineID)
		return &UpdateResult{Success: true, Quantity: 1, Message: "Artwork quantity is fixed at 1"}, nil
	}

	if err := s.validateQuantity(quantity); err != nil {
		return nil, err
	}
	stock, err := materialStock(ctx, tx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if quantity > stock {
		return nil, stockExceeded(line.ProductID, quantity, stock)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE cart SET quantity = ? WHERE id = ? AND user_id = ?`, quantity, lineID, userID); err != nil {
		slog.Error("database_update_failed", "table", "cart", "line_id", lineID, "error", err)
		return nil, errors.Wrap(err, "failed to update cart line")
	}
	if err := tx.Commit(); err != nil {
		slog.Error("failed_to_commit_transaction", "error", err)
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	slog.Info("cart_line_updated", "user_id", userID, "line_id", lineID, "quantity", quantity)
	return &UpdateResult{Success: true, Quantity: quantity, Message: "Cart updated"}, nil
}

// Remove deletes one of the user's lines.
func (s *Store) Remove(ctx context.Context, lineID int64, userID string) error {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return err
	}
	slog.Info("cart_remove", "user_id", userID, "line_id", lineID)

	if err := validateUser(userID); err != nil {
		return err
	}

	res, err := conn.ExecContext(ctx, `DELETE FROM cart WHERE id = ? AND user_id = ?`, lineID, userID)
	if err != nil {
		slog.Error("database_delete_failed", "table", "cart", "line_id", lineID, "error", err)
		return errors.Wrap(err, "failed to delete cart line")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to get rows affected")
	}
	if n == 0 {
		slog.Info("cart_line_not_found", "user_id", userID, "line_id", lineID)
		return errors.Newf(errors.KindNotFound, "cart line %d not found", lineID)
	}

	slog.Info("cart_line_removed", "user_id", userID, "line_id", lineID)
	return nil
}

// Clear deletes every line for the user and returns how many were removed.
func (s *Store) Clear(ctx context.Context, userID string) (int64, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateUser(userID); err != nil {
		return 0, err
	}

	res, err := conn.ExecContext(ctx, `DELETE FROM cart WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("database_delete_failed", "table", "cart", "user_id", userID, "error", err)
		return 0, errors.Wrap(err, "failed to clear cart")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to get rows affected")
	}

	slog.Info("cart_cleared", "user_id", userID, "removed", n)
	return n, nil
}

// Count returns the total quantity across the user's lines.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return 0, err
	}
	if err := validateUser(userID); err != nil {
		return 0, err
	}

	var total int
	if err := conn.GetContext(ctx, &total, `SELECT COALESCE(SUM(quantity), 0) FROM cart WHERE user_id = ?`, userID); err != nil {
		slog.Error("database_query_failed", "table", "cart", "user_id", userID, "error", err)
		return 0, errors.Wrap(err, "failed to count cart items")
	}
	return total, nil
}

func (s *Store) validateQuantity(quantity int) error {
	if err := validate.Var(quantity, "min=1"); err != nil {
		return errors.Newf(errors.KindInvalidArgument, "quantity must be positive, got %d", quantity)
	}
	if err := s.validator.ValidateQuantity(quantity); err != nil {
		return errors.WrapKind(errors.KindInvalidArgument, err, "quantity too large")
	}
	return nil
}

func findLine(ctx context.Context, q sqlx.QueryerContext, userID, productID string, kind Kind) (*lineRow, error) {
	var row lineRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT id, user_id, product_id, product_type, quantity, date_added
		FROM cart WHERE user_id = ? AND product_id = ? AND product_type = ?`,
		userID, productID, string(kind))
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "no %s line for product %s", kind, productID)
	}
	if err != nil {
		slog.Error("database_query_failed", "table", "cart", "user_id", userID, "product_id", productID, "error", err)
		return nil, errors.Wrap(err, "failed to query cart line")
	}
	return &row, nil
}

func ownedLine(ctx context.Context, q sqlx.QueryerContext, lineID int64, userID string) (*lineRow, error) {
	var row lineRow
	err := sqlx.GetContext(ctx, q, &row, `
		SELECT id, user_id, product_id, product_type, quantity, date_added
		FROM cart WHERE id = ? AND user_id = ?`, lineID, userID)
	if err == sql.ErrNoRows {
		slog.Info("cart_line_not_found", "user_id", userID, "line_id", lineID)
		return nil, errors.Newf(errors.KindNotFound, "cart line %d not found", lineID)
	}
	if err != nil {
		slog.Error("database_query_failed", "table", "cart", "line_id", lineID, "error", err)
		return nil, errors.Wrap(err, "failed to query cart line")
	}
	return &row, nil
}

func materialStock(ctx context.Context, q sqlx.QueryerContext, productID string) (int, error) {
	var stock int
	err := sqlx.GetContext(ctx, q, &stock, `SELECT stock FROM material_snapshot WHERE id = ?`, productID)
	if err == sql.ErrNoRows {
		slog.Warn("cart_snapshot_missing", "product_id", productID, "kind", KindMaterial)
		return 0, errors.Newf(errors.KindSnapshotMissing, "material snapshot %s missing", productID)
	}
	if err != nil {
		slog.Error("database_query_failed", "table", "material_snapshot", "product_id", productID, "error", err)
		return 0, errors.Wrap(err, "failed to query stock")
	}
	return stock, nil
}

func stockExceeded(productID string, requested, available int) error {
	slog.Info("cart_stock_exceeded", "product_id", productID, "requested", requested, "available", available)
	return errors.New(errors.KindStockExceeded,
		fmt.Sprintf("requested %d of %s but only %d in stock", requested, productID, available)).
		WithDetails(map[string]any{"requested": requested, "available": available})
}
