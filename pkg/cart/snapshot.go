package cart

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/artfolio/cartstore/pkg/db"
	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/jmoiron/sqlx"
)

type artworkRow struct {
	ID          string          `db:"id"`
	Title       string          `db:"title"`
	Artist      sql.NullString  `db:"artist"`
	Price       float64         `db:"price"`
	ImageURL    sql.NullString  `db:"image_url"`
	Status      sql.NullString  `db:"status"`
	Category    sql.NullString  `db:"category"`
	Description sql.NullString  `db:"description"`
	Height      sql.NullFloat64 `db:"height"`
	Width       sql.NullFloat64 `db:"width"`
	Depth       sql.NullFloat64 `db:"depth"`
	Unit        sql.NullString  `db:"unit"`
	LastUpdated string          `db:"last_updated"`
}

type materialRow struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Price       float64        `db:"price"`
	ImageURL    sql.NullString `db:"image_url"`
	Category    sql.NullString `db:"category"`
	Description sql.NullString `db:"description"`
	Stock       int            `db:"stock"`
	LastUpdated string         `db:"last_updated"`
}

const upsertArtworkSQL = `
INSERT INTO artwork_snapshot (id, title, artist, price, image_url, status, category, description, height, width, depth, unit, last_updated)
VALUES (:id, :title, :artist, :price, :image_url, :status, :category, :description, :height, :width, :depth, :unit, :last_updated)
ON CONFLICT(id) DO UPDATE SET
    title = excluded.title,
    artist = excluded.artist,
    price = excluded.price,
    image_url = excluded.image_url,
    status = excluded.status,
    category = excluded.category,
    description = excluded.description,
    height = excluded.height,
    width = excluded.width,
    depth = excluded.depth,
    unit = excluded.unit,
    last_updated = excluded.last_updated
`

const upsertMaterialSQL = `
INSERT INTO material_snapshot (id, name, price, image_url, category, description, stock, last_updated)
VALUES (:id, :name, :price, :image_url, :category, :description, :stock, :last_updated)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    price = excluded.price,
    image_url = excluded.image_url,
    category = excluded.category,
    description = excluded.description,
    stock = excluded.stock,
    last_updated = excluded.last_updated
`

// UpsertArtworkSnapshot rewrites the cached artwork row from in, applying defaults.
func (s *Store) UpsertArtworkSnapshot(ctx context.Context, in ArtworkInput) error {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return err
	}
	row, err := s.artworkRow(in)
	if err != nil {
		return err
	}
	return upsertArtwork(ctx, conn, row)
}

// UpsertMaterialSnapshot rewrites the cached material row from in, applying defaults.
func (s *Store) UpsertMaterialSnapshot(ctx context.Context, in MaterialInput) error {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return err
	}
	row, err := s.materialRow(in)
	if err != nil {
		return err
	}
	return upsertMaterial(ctx, conn, row)
}

// ArtworkSnapshot reads a cached artwork.
func (s *Store) ArtworkSnapshot(ctx context.Context, id string) (*ArtworkSnapshot, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	var row artworkRow
	err = conn.GetContext(ctx, &row, `
		SELECT id, title, artist, price, image_url, status, category, description,
		       height, width, depth, unit, last_updated
		FROM artwork_snapshot WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "artwork snapshot %s not found", id)
	}
	if err != nil {
		slog.Error("database_query_failed", "table", "artwork_snapshot", "product_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query artwork snapshot")
	}
	return row.snapshot(), nil
}

// MaterialSnapshot reads a cached art material.
func (s *Store) MaterialSnapshot(ctx context.Context, id string) (*MaterialSnapshot, error) {
	conn, err := s.conn.EnsureReady(ctx)
	if err != nil {
		return nil, err
	}

	var row materialRow
	err = conn.GetContext(ctx, &row, `
		SELECT id, name, price, image_url, category, description, stock, last_updated
		FROM material_snapshot WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.KindNotFound, "material snapshot %s not found", id)
	}
	if err != nil {
		slog.Error("database_query_failed", "table", "material_snapshot", "product_id", id, "error", err)
		return nil, errors.Wrap(err, "failed to query material snapshot")
	}
	return row.snapshot(), nil
}

func upsertArtwork(ctx context.Context, ext sqlx.ExtContext, row *artworkRow) error {
	if _, err := sqlx.NamedExecContext(ctx, ext, upsertArtworkSQL, row); err != nil {
		slog.Error("database_upsert_failed", "table", "artwork_snapshot", "product_id", row.ID, "error", err)
		return errors.Wrap(err, "failed to upsert artwork snapshot")
	}
	slog.Info("snapshot_upserted", "kind", KindArtwork, "product_id", row.ID)
	return nil
}

func upsertMaterial(ctx context.Context, ext sqlx.ExtContext, row *materialRow) error {
	if _, err := sqlx.NamedExecContext(ctx, ext, upsertMaterialSQL, row); err != nil {
		slog.Error("database_upsert_failed", "table", "material_snapshot", "product_id", row.ID, "error", err)
		return errors.Wrap(err, "failed to upsert material snapshot")
	}
	slog.Info("snapshot_upserted", "kind", KindMaterial, "product_id", row.ID, "stock", row.Stock)
	return nil
}

// artworkRow applies defaults: placeholder title, price 0, first image or NULL.
func (s *Store) artworkRow(in ArtworkInput) (*artworkRow, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	row := &artworkRow{
		ID:          in.ID,
		Title:       DefaultArtworkTitle,
		Artist:      s.text(in.Artist),
		Price:       nonNegative(in.Price, in.ID, "price"),
		ImageURL:    s.imageURL(in.Images, in.ID),
		Status:      s.text(in.Status),
		Category:    s.text(in.Category),
		Description: s.text(in.Description),
		Height:      dimension(in.Height),
		Width:       dimension(in.Width),
		Depth:       dimension(in.Depth),
		Unit:        s.text(in.Unit),
		LastUpdated: db.FormatTime(s.now()),
	}
	if t := s.text(in.Title); t.Valid {
		row.Title = t.String
	}
	return row, nil
}

// materialRow applies defaults: placeholder name, price 0, stock 0, first image or NULL.
func (s *Store) materialRow(in MaterialInput) (*materialRow, error) {
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	row := &materialRow{
		ID:          in.ID,
		Name:        DefaultMaterialName,
		Price:       nonNegative(in.Price, in.ID, "price"),
		ImageURL:    s.imageURL(in.Images, in.ID),
		Category:    s.text(in.Category),
		Description: s.text(in.Description),
		LastUpdated: db.FormatTime(s.now()),
	}
	if n := s.text(in.Name); n.Valid {
		row.Name = n.String
	}
	if in.Stock != nil && *in.Stock > 0 {
		row.Stock = *in.Stock
	}
	return row, nil
}

func (s *Store) text(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	t := s.validator.ClampText(*v)
	return sql.NullString{String: t, Valid: t != ""}
}

// imageURL picks the first image. A rejected URL is stored as NULL.
func (s *Store) imageURL(images []string, productID string) sql.NullString {
	if len(images) == 0 || images[0] == "" {
		return sql.NullString{}
	}
	if err := s.validator.ValidateImageURL(images[0]); err != nil {
		slog.Warn("snapshot_image_dropped", "product_id", productID, "error", err)
		return sql.NullString{}
	}
	return sql.NullString{String: images[0], Valid: true}
}

func nonNegative(v *float64, productID, field string) float64 {
	if v == nil {
		return 0
	}
	if *v < 0 {
		slog.Warn("snapshot_negative_value_clamped", "product_id", productID, "field", field, "value", *v)
		return 0
	}
	return *v
}

func dimension(v *float64) sql.NullFloat64 {
	if v == nil || *v < 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func (r *artworkRow) snapshot() *ArtworkSnapshot {
	updated, _ := db.ParseTime(r.LastUpdated)
	return &ArtworkSnapshot{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist.String,
		Price:       r.Price,
		ImageURL:    r.ImageURL.String,
		Status:      r.Status.String,
		Category:    r.Category.String,
		Description: r.Description.String,
		Height:      floatPtr(r.Height),
		Width:       floatPtr(r.Width),
		Depth:       floatPtr(r.Depth),
		Unit:        r.Unit.String,
		LastUpdated: updated,
	}
}

func (r *materialRow) snapshot() *MaterialSnapshot {
	updated, _ := db.ParseTime(r.LastUpdated)
	return &MaterialSnapshot{
		ID:          r.ID,
		Name:        r.Name,
		Price:       r.Price,
		ImageURL:    r.ImageURL.String,
		Category:    r.Category.String,
		Description: r.Description.String,
		Stock:       r.Stock,
		LastUpdated: updated,
	}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
