package cart

import (
	"context"
	"time"

	"github.com/artfolio/cartstore/pkg/db"
)

// Kind discriminates cart lines and snapshots.
type Kind string

const (
	KindArtwork  Kind = db.KindArtwork
	KindMaterial Kind = db.KindMaterial
)

// Defaults applied to products missing a display name.
const (
	DefaultArtworkTitle = "Untitled Artwork"
	DefaultMaterialName = "Unnamed Art Material"
)

// ArtworkInput is the product data supplied when an artwork is added.
// Nil pointers are missing fields; see the package defaults.
type ArtworkInput struct {
	ID          string   `json:"id" validate:"required"`
	Title       *string  `json:"title,omitempty"`
	Artist      *string  `json:"artist,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Images      []string `json:"images,omitempty"`
	Status      *string  `json:"status,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Height      *float64 `json:"height,omitempty"`
	Width       *float64 `json:"width,omitempty"`
	Depth       *float64 `json:"depth,omitempty"`
	Unit        *string  `json:"unit,omitempty"`
}

// MaterialInput is the product data supplied when an art material is added.
// A missing stock is treated as zero.
type MaterialInput struct {
	ID          string   `json:"id" validate:"required"`
	Name        *string  `json:"name,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Images      []string `json:"images,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Description *string  `json:"description,omitempty"`
	Stock       *int     `json:"stock,omitempty"`
}

// ArtworkSnapshot is the locally cached copy of an artwork.
// Empty strings and nil dimensions are NULL columns.
type ArtworkSnapshot struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist,omitempty"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Status      string    `json:"status,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Height      *float64  `json:"height,omitempty"`
	Width       *float64  `json:"width,omitempty"`
	Depth       *float64  `json:"depth,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// MaterialSnapshot is the locally cached copy of an art material.
type MaterialSnapshot struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Stock       int       `json:"stock"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Line is a bare cart row.
type Line struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Kind      Kind      `json:"productType"`
	Quantity  int       `json:"quantity"`
	DateAdded time.Time `json:"dateAdded"`
}

// Item is a cart line joined with its snapshot. Exactly one of Artwork or
// Material is set, matching Kind.
type Item struct {
	Line
	Artwork  *ArtworkSnapshot  `json:"artwork,omitempty"`
	Material *MaterialSnapshot `json:"material,omitempty"`
}

// Price returns the unit price from the snapshot.
func (i Item) Price() float64 {
	switch {
	case i.Artwork != nil:
		return i.Artwork.Price
	case i.Material != nil:
		return i.Material.Price
	}
	return 0
}

// Subtotal is unit price times quantity.
func (i Item) Subtotal() float64 {
	return i.Price() * float64(i.Quantity)
}

// AddResult reports the outcome of an add. AlreadyInCart is a normal
// outcome for artworks, not a failure.
type AddResult struct {
	Success       bool   `json:"success"`
	AlreadyInCart bool   `json:"alreadyInCart,omitempty"`
	LineID        int64  `json:"lineId"`
	Quantity      int    `json:"quantity"`
	Message       string `json:"message"`
}

// UpdateResult reports the outcome of UpdateQuantity.
type UpdateResult struct {
	Success  bool   `json:"success"`
	Removed  bool   `json:"removed,omitempty"`
	Quantity int    `json:"quantity"`
	Message  string `json:"message"`
}

// RefreshReport summarizes a snapshot refresh. Failed lists product ids
// whose fetch or upsert failed; their stale snapshots were kept.
type RefreshReport struct {
	Total     int      `json:"total"`
	Refreshed int      `json:"refreshed"`
	Failed    []string `json:"failed,omitempty"`
}

// PruneReport counts snapshots deleted by PruneSnapshots.
type PruneReport struct {
	Artworks  int64 `json:"artworks"`
	Materials int64 `json:"materials"`
}

// ProductFetcher loads current product data from the remote catalog.
type ProductFetcher interface {
	FetchArtwork(ctx context.Context, id string) (*ArtworkInput, error)
	FetchMaterial(ctx context.Context, id string) (*MaterialInput, error)
}
