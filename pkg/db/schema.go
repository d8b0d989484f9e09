package db

import "time"

// Product kinds stored in cart.product_type.
const (
	KindArtwork  = "artwork"
	KindMaterial = "material"
)

// TimeFormat is the fixed-width UTC layout used for every timestamp column,
// so lexical ORDER BY matches chronological order.
const TimeFormat = "2006-01-02T15:04:05.000000000Z"

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// ParseTime parses a TimeFormat timestamp. Legacy SQLite CURRENT_TIMESTAMP
// values ("2006-01-02 15:04:05") are accepted too.
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeFormat, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateTime, s)
}

const versionTable = `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`

// v1: cart lines and artwork snapshots.
const (
	cartTableV1 = `
CREATE TABLE IF NOT EXISTS cart (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id TEXT NOT NULL,
    product_id TEXT NOT NULL,
    product_type TEXT NOT NULL CHECK(product_type IN ('artwork', 'material')),
    quantity INTEGER NOT NULL DEFAULT 1
)`

	artworkTableV1 = `
CREATE TABLE IF NOT EXISTS artwork_snapshot (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    image_url TEXT,
    status TEXT,
    category TEXT,
    description TEXT
)`

	cartUserIndex = `CREATE INDEX IF NOT EXISTS idx_cart_user ON cart(user_id)`
)

// v2: art material snapshots.
const materialTableV2 = `
CREATE TABLE IF NOT EXISTS material_snapshot (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    price REAL NOT NULL DEFAULT 0,
    image_url TEXT,
    category TEXT,
    description TEXT,
    stock INTEGER NOT NULL DEFAULT 0
)`

// v5: engine-enforced line uniqueness.
const (
	mergeDuplicateMaterials = `
UPDATE cart SET quantity = (
    SELECT SUM(dup.quantity) FROM cart dup
    WHERE dup.user_id = cart.user_id
      AND dup.product_id = cart.product_id
      AND dup.product_type = cart.product_type
)
WHERE product_type = 'material' AND id IN (
    SELECT MIN(id) FROM cart GROUP BY user_id, product_id, product_type HAVING COUNT(*) > 1
)`

	pinArtworkQuantity = `UPDATE cart SET quantity = 1 WHERE product_type = 'artwork' AND quantity <> 1`

	deleteDuplicateLines = `
DELETE FROM cart WHERE id NOT IN (
    SELECT MIN(id) FROM cart GROUP BY user_id, product_id, product_type
)`

	cartUniqueIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_cart_owner_product ON cart(user_id, product_id, product_type)`
	cartDateIndex   = `CREATE INDEX IF NOT EXISTS idx_cart_user_date ON cart(user_id, date_added)`
)
