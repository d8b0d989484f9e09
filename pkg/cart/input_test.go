package cart

import (
	"math"
	"testing"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArtwork(t *testing.T) {
	raw := []byte(`{
		"_id": "66f0c1",
		"title": "Harbour at Dawn",
		"artist": {"name": "M. Okafor"},
		"price": "1250.5",
		"images": [{"url": "https://cdn.example.com/1.jpg"}, "https://cdn.example.com/2.jpg"],
		"status": "available",
		"category": {"name": "Painting"},
		"dimensions": {"height": 60, "width": 90, "unit": "cm"}
	}`)

	in, err := ParseArtwork(raw)
	require.NoError(t, err)
	assert.Equal(t, "66f0c1", in.ID)
	assert.Equal(t, "Harbour at Dawn", *in.Title)
	assert.Equal(t, "M. Okafor", *in.Artist)
	assert.Equal(t, 1250.5, *in.Price)
	assert.Equal(t, []string{"https://cdn.example.com/1.jpg", "https://cdn.example.com/2.jpg"}, in.Images)
	assert.Equal(t, "Painting", *in.Category)
	assert.Equal(t, 60.0, *in.Height)
	assert.Equal(t, 90.0, *in.Width)
	assert.Nil(t, in.Depth)
	assert.Equal(t, "cm", *in.Unit)
	assert.Nil(t, in.Description)
}

func TestParseArtwork_Envelope(t *testing.T) {
	in, err := ParseArtwork([]byte(`{"data": {"id": 42, "title": "Dusk"}}`))
	require.NoError(t, err)
	assert.Equal(t, "42", in.ID)
	assert.Equal(t, "Dusk", *in.Title)
}

func TestParseMaterial(t *testing.T) {
	in, err := ParseMaterial([]byte(`{"id": "m1", "name": "Linen Canvas", "price": 30, "stock": "7", "images": []}`))
	require.NoError(t, err)
	assert.Equal(t, "m1", in.ID)
	assert.Equal(t, "Linen Canvas", *in.Name)
	assert.Equal(t, 7, *in.Stock)
	assert.Empty(t, in.Images)
}

func TestParseMaterial_StockBounds(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want *int
	}{
		{"huge number", `{"id": "m1", "stock": 1e30}`, intPtr(math.MaxInt32)},
		{"huge string", `{"id": "m1", "stock": "9e99"}`, intPtr(math.MaxInt32)},
		{"negative", `{"id": "m1", "stock": -5}`, intPtr(0)},
		{"fractional", `{"id": "m1", "stock": 3.9}`, intPtr(3)},
		{"nan string", `{"id": "m1", "stock": "NaN"}`, nil},
		{"infinite string", `{"id": "m1", "stock": "Inf"}`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := ParseMaterial([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, in.Stock)
		})
	}
}

func TestParseMaterial_NonFinitePriceIsAbsent(t *testing.T) {
	in, err := ParseMaterial([]byte(`{"id": "m1", "price": "NaN"}`))
	require.NoError(t, err)
	assert.Nil(t, in.Price)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{id: m1`},
		{"array", `[{"id": "m1"}]`},
		{"string", `"m1"`},
		{"missing id", `{"name": "Linen Canvas"}`},
		{"null id", `{"id": null}`},
		{"blank id", `{"id": "  "}`},
		{"object id", `{"id": {"oid": "m1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMaterial([]byte(tt.raw))
			assert.True(t, errors.IsKind(err, errors.KindInvalidArgument), "got %v", err)
		})
	}
}
