package cart

import (
	"database/sql"

	"github.com/artfolio/cartstore/pkg/errors"
)

// Snapshot columns are prefixed so one scan covers both joins.
const selectItemsSQL = `
SELECT c.id, c.user_id, c.product_id, c.product_type, c.quantity, c.date_added,
       a.id AS a_id, a.title AS a_title, a.artist AS a_artist, a.price AS a_price,
       a.image_url AS a_image_url, a.status AS a_status, a.category AS a_category,
       a.description AS a_description, a.height AS a_height, a.width AS a_width,
       a.depth AS a_depth, a.unit AS a_unit, a.last_updated AS a_last_updated,
       m.id AS m_id, m.name AS m_name, m.price AS m_price, m.image_url AS m_image_url,
       m.category AS m_category, m.description AS m_description, m.stock AS m_stock,
       m.last_updated AS m_last_updated
FROM cart c
LEFT JOIN artwork_snapshot a ON c.product_type = 'artwork' AND a.id = c.product_id
LEFT JOIN material_snapshot m ON c.product_type = 'material' AND m.id = c.product_id
WHERE c.user_id = ?
ORDER BY c.date_added DESC, c.id DESC
`

type itemRow struct {
	lineRow

	ArtworkID          sql.NullString  `db:"a_id"`
	ArtworkTitle       sql.NullString  `db:"a_title"`
	ArtworkArtist      sql.NullString  `db:"a_artist"`
	ArtworkPrice       sql.NullFloat64 `db:"a_price"`
	ArtworkImageURL    sql.NullString  `db:"a_image_url"`
	ArtworkStatus      sql.NullString  `db:"a_status"`
	ArtworkCategory    sql.NullString  `db:"a_category"`
	ArtworkDescription sql.NullString  `db:"a_description"`
	ArtworkHeight      sql.NullFloat64 `db:"a_height"`
	ArtworkWidth       sql.NullFloat64 `db:"a_width"`
	ArtworkDepth       sql.NullFloat64 `db:"a_depth"`
	ArtworkUnit        sql.NullString  `db:"a_unit"`
	ArtworkUpdated     sql.NullString  `db:"a_last_updated"`

	MaterialID          sql.NullString  `db:"m_id"`
	MaterialName        sql.NullString  `db:"m_name"`
	MaterialPrice       sql.NullFloat64 `db:"m_price"`
	MaterialImageURL    sql.NullString  `db:"m_image_url"`
	MaterialCategory    sql.NullString  `db:"m_category"`
	MaterialDescription sql.NullString  `db:"m_description"`
	MaterialStock       sql.NullInt64   `db:"m_stock"`
	MaterialUpdated     sql.NullString  `db:"m_last_updated"`
}

// item shapes the row by kind. A line without its snapshot is a data error.
func (r *itemRow) item() (*Item, error) {
	item := &Item{Line: r.line()}

	switch item.Kind {
	case KindArtwork:
		if !r.ArtworkID.Valid {
			return nil, errors.Newf(errors.KindSnapshotMissing, "artwork snapshot %s missing", r.ProductID)
		}
		a := artworkRow{
			ID:          r.ArtworkID.String,
			Title:       r.ArtworkTitle.String,
			Artist:      r.ArtworkArtist,
			Price:       r.ArtworkPrice.Float64,
			ImageURL:    r.ArtworkImageURL,
			Status:      r.ArtworkStatus,
			Category:    r.ArtworkCategory,
			Description: r.ArtworkDescription,
			Height:      r.ArtworkHeight,
			Width:       r.ArtworkWidth,
			Depth:       r.ArtworkDepth,
			Unit:        r.ArtworkUnit,
			LastUpdated: r.ArtworkUpdated.String,
		}
		item.Artwork = a.snapshot()
	case KindMaterial:
		if !r.MaterialID.Valid {
			return nil, errors.Newf(errors.KindSnapshotMissing, "material snapshot %s missing", r.ProductID)
		}
		m := materialRow{
			ID:          r.MaterialID.String,
			Name:        r.MaterialName.String,
			Price:       r.MaterialPrice.Float64,
			ImageURL:    r.MaterialImageURL,
			Category:    r.MaterialCategory,
			Description: r.MaterialDescription,
			Stock:       int(r.MaterialStock.Int64),
			LastUpdated: r.MaterialUpdated.String,
		}
		item.Material = m.snapshot()
	default:
		return nil, errors.Newf(errors.KindSnapshotMissing, "unknown product type %q", r.Kind)
	}
	return item, nil
}
