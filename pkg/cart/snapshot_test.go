package cart

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertArtworkSnapshot_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := ArtworkInput{
		ID:          "a1",
		Title:       strPtr("Harbour at Dawn"),
		Artist:      strPtr("M. Okafor"),
		Price:       floatPtrOf(1250.75),
		Images:      []string{"https://cdn.example.com/a1/main.jpg", "https://cdn.example.com/a1/detail.jpg"},
		Status:      strPtr("available"),
		Category:    strPtr("Painting"),
		Description: strPtr("Oil on linen"),
		Height:      floatPtrOf(60),
		Width:       floatPtrOf(90),
		Depth:       floatPtrOf(2.5),
		Unit:        strPtr("cm"),
	}
	require.NoError(t, s.UpsertArtworkSnapshot(ctx, in))

	snap, err := s.ArtworkSnapshot(ctx, "a1")
	require.NoError(t, err)

	assert.Equal(t, "Harbour at Dawn", snap.Title)
	assert.Equal(t, "M. Okafor", snap.Artist)
	assert.Equal(t, 1250.75, snap.Price)
	assert.Equal(t, "https://cdn.example.com/a1/main.jpg", snap.ImageURL)
	assert.Equal(t, "available", snap.Status)
	assert.Equal(t, "Painting", snap.Category)
	assert.Equal(t, "Oil on linen", snap.Description)
	require.NotNil(t, snap.Height)
	assert.Equal(t, 60.0, *snap.Height)
	assert.Equal(t, 90.0, *snap.Width)
	assert.Equal(t, 2.5, *snap.Depth)
	assert.Equal(t, "cm", snap.Unit)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestUpsertArtworkSnapshot_Defaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArtworkSnapshot(ctx, ArtworkInput{ID: "a1"}))

	snap, err := s.ArtworkSnapshot(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, DefaultArtworkTitle, snap.Title)
	assert.Zero(t, snap.Price)
	assert.Empty(t, snap.ImageURL)
	assert.Nil(t, snap.Height)
	assert.Empty(t, snap.Artist)
}

func TestUpsertArtworkSnapshot_FullRewrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertArtworkSnapshot(ctx, ArtworkInput{ID: "a1", Title: strPtr("Dusk"), Category: strPtr("Print")}))
	require.NoError(t, s.UpsertArtworkSnapshot(ctx, ArtworkInput{ID: "a1", Price: floatPtrOf(30)}))

	snap, err := s.ArtworkSnapshot(ctx, "a1")
	require.NoError(t, err)
	// No partial updates: omitted fields fall back to defaults.
	assert.Equal(t, DefaultArtworkTitle, snap.Title)
	assert.Empty(t, snap.Category)
	assert.Equal(t, 30.0, snap.Price)
}

func TestUpsertArtworkSnapshot_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	in := ArtworkInput{ID: "a1", Title: strPtr("Dusk"), Price: floatPtrOf(400)}

	require.NoError(t, s.UpsertArtworkSnapshot(ctx, in))
	first, err := s.ArtworkSnapshot(ctx, "a1")
	require.NoError(t, err)

	require.NoError(t, s.UpsertArtworkSnapshot(ctx, in))
	second, err := s.ArtworkSnapshot(ctx, "a1")
	require.NoError(t, err)

	assert.True(t, second.LastUpdated.After(first.LastUpdated))
	second.LastUpdated = first.LastUpdated
	assert.Equal(t, first, second)
}

func TestUpsertMaterialSnapshot_Defaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMaterialSnapshot(ctx, MaterialInput{ID: "m1", Price: floatPtrOf(-4), Stock: intPtr(-1)}))

	snap, err := s.MaterialSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, DefaultMaterialName, snap.Name)
	assert.Zero(t, snap.Price)
	assert.Zero(t, snap.Stock)
}

func TestUpsert_RejectsUnsafeImageURL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertMaterialSnapshot(ctx, MaterialInput{ID: "m1", Images: []string{"javascript:alert(1)"}}))

	snap, err := s.MaterialSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, snap.ImageURL)
}

func TestUpsert_RequiresID(t *testing.T) {
	s := newTestStore(t)

	err := s.UpsertArtworkSnapshot(context.Background(), ArtworkInput{Title: strPtr("No id")})
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgument))
}

func TestSnapshot_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ArtworkSnapshot(context.Background(), "missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	_, err = s.MaterialSnapshot(context.Background(), "missing")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
}

type stubFetcher struct {
	artworks  map[string]*ArtworkInput
	materials map[string]*MaterialInput
	calls     int
}

func (f *stubFetcher) FetchArtwork(ctx context.Context, id string) (*ArtworkInput, error) {
	f.calls++
	if in, ok := f.artworks[id]; ok {
		return in, nil
	}
	return nil, stderrors.New("404 not found")
}

func (f *stubFetcher) FetchMaterial(ctx context.Context, id string) (*MaterialInput, error) {
	f.calls++
	if in, ok := f.materials[id]; ok {
		return in, nil
	}
	return nil, stderrors.New("connection refused")
}

func TestItems_RefreshIsPartialFailureTolerant(t *testing.T) {
	fetcher := &stubFetcher{
		artworks: map[string]*ArtworkInput{
			"a1": {ID: "a1", Title: strPtr("Dusk (reframed)"), Price: floatPtrOf(520)},
		},
		materials: map[string]*MaterialInput{},
	}
	s := newTestStore(t, WithFetcher(fetcher))
	ctx := context.Background()

	_, err := s.AddArtwork(ctx, ArtworkInput{ID: "a1", Title: strPtr("Dusk"), Price: floatPtrOf(400)}, "u1")
	require.NoError(t, err)
	_, err = s.AddMaterial(ctx, material("m1", 5), "u1", 2)
	require.NoError(t, err)

	items, err := s.Items(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, fetcher.calls)

	for _, item := range items {
		switch item.Kind {
		case KindArtwork:
			assert.Equal(t, "Dusk (reframed)", item.Artwork.Title)
			assert.Equal(t, 520.0, item.Artwork.Price)
		case KindMaterial:
			// Fetch failed: the stale snapshot is served.
			assert.Equal(t, "Cadmium Red", item.Material.Name)
			assert.Equal(t, 5, item.Material.Stock)
		}
	}
}

func TestRefreshSnapshots_Report(t *testing.T) {
	fetcher := &stubFetcher{
		artworks:  map[string]*ArtworkInput{},
		materials: map[string]*MaterialInput{"m1": {Stock: intPtr(12)}},
	}
	s := newTestStore(t, WithFetcher(fetcher))
	ctx := context.Background()

	_, err := s.AddArtwork(ctx, ArtworkInput{ID: "a1"}, "u1")
	require.NoError(t, err)
	_, err = s.AddMaterial(ctx, material("m1", 5), "u1", 1)
	require.NoError(t, err)

	report, err := s.RefreshSnapshots(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Refreshed)
	assert.Equal(t, []string{"a1"}, report.Failed)

	snap, err := s.MaterialSnapshot(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Stock)
}

// emptyFetcher answers every lookup with no product and no error.
type emptyFetcher struct{}

func (emptyFetcher) FetchArtwork(ctx context.Context, id string) (*ArtworkInput, error) {
	return nil, nil
}

func (emptyFetcher) FetchMaterial(ctx context.Context, id string) (*MaterialInput, error) {
	return nil, nil
}

func TestRefreshSnapshots_EmptyFetchResultIsLineFailure(t *testing.T) {
	s := newTestStore(t, WithFetcher(emptyFetcher{}))
	ctx := context.Background()

	_, err := s.AddArtwork(ctx, ArtworkInput{ID: "a1", Title: strPtr("Dusk")}, "u1")
	require.NoError(t, err)
	_, err = s.AddMaterial(ctx, material("m1", 5), "u1", 2)
	require.NoError(t, err)

	report, err := s.RefreshSnapshots(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Zero(t, report.Refreshed)
	assert.ElementsMatch(t, []string{"a1", "m1"}, report.Failed)

	items, err := s.Items(ctx, "u1", true)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		switch item.Kind {
		case KindArtwork:
			assert.Equal(t, "Dusk", item.Artwork.Title)
		case KindMaterial:
			assert.Equal(t, 5, item.Material.Stock)
		}
	}
}

func TestRefreshSnapshots_NoFetcher(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddArtwork(ctx, ArtworkInput{ID: "a1"}, "u1")
	require.NoError(t, err)

	report, err := s.RefreshSnapshots(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Total)
	assert.Zero(t, report.Refreshed)

	items, err := s.Items(ctx, "u1", true)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestPruneSnapshots(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	kept, err := s.AddArtwork(ctx, ArtworkInput{ID: "a1"}, "u1")
	require.NoError(t, err)
	removed, err := s.AddArtwork(ctx, ArtworkInput{ID: "a2"}, "u1")
	require.NoError(t, err)
	_, err = s.AddMaterial(ctx, material("m1", 5), "u2", 1)
	require.NoError(t, err)
	require.NoError(t, s.UpsertMaterialSnapshot(ctx, material("m2", 5)))

	require.NoError(t, s.Remove(ctx, removed.LineID, "u1"))

	report, err := s.PruneSnapshots(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, report.Artworks)
	assert.EqualValues(t, 1, report.Materials)

	_, err = s.ArtworkSnapshot(ctx, "a1")
	assert.NoError(t, err)
	_, err = s.ArtworkSnapshot(ctx, "a2")
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	_, err = s.MaterialSnapshot(ctx, "m1")
	assert.NoError(t, err)

	items, err := s.Items(ctx, "u1", false)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.LineID, items[0].ID)
}
