package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testRange(loadedAt time.Time) domain.FetchRange {
	return domain.FetchRange{
		Params: domain.FetchParams{
			Start:        time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			End:          time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			MinMagnitude: 4,
			Region:       domain.RegionNepal,
		},
		LoadedAt: loadedAt,
	}
}

func TestArchive_PublishAndRead(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	depth := 8.2
	loadedAt := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	events := []domain.HazardEvent{
		{
			ID:            "us20002926",
			Location:      domain.Location{Lat: 28.23, Lon: 84.73, Depth: &depth},
			Magnitude:     7.8,
			OccurredAt:    time.Date(2015, 4, 25, 6, 11, 25, 0, time.UTC),
			Place:         "36km E of Khudi, Nepal",
			DetailURL:     "https://example.test/us20002926",
			Status:        "reviewed",
			MagnitudeType: "mww",
		},
		{ID: "evt-1", Magnitude: 4.2, OccurredAt: time.Date(2023, 11, 3, 18, 2, 0, 0, time.UTC)},
	}
	require.NoError(t, a.Publish(ctx, events, testRange(loadedAt)))

	got, ok, err := a.Event(ctx, "us20002926")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, events[0], got)

	got, ok, err = a.Event(ctx, "evt-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.Location.Depth)

	_, ok, err = a.Event(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	fetches, err := a.RecentFetches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, testRange(loadedAt), fetches[0].Range)
	assert.Equal(t, 2, fetches[0].EventCount)
}

func TestArchive_UpsertKeepsOneRowPerEvent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()
	first := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

	require.NoError(t, a.Publish(ctx, []domain.HazardEvent{{ID: "a", Magnitude: 5.1}}, testRange(first)))
	require.NoError(t, a.Publish(ctx, []domain.HazardEvent{{ID: "a", Magnitude: 5.3}, {ID: "b", Magnitude: 7.0}}, testRange(first.Add(time.Hour))))

	e, ok, err := a.Event(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.InDelta(t, 5.3, e.Magnitude, 0, "re-fetch overwrites the archived values")

	counts, err := a.CountBySeverity(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[domain.SeverityClass]int{
		domain.SeverityMedium:   1,
		domain.SeverityCritical: 1,
	}, counts)

	fetches, err := a.RecentFetches(ctx, 1)
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, first.Add(time.Hour), fetches[0].Range.LoadedAt, "newest first")
	assert.Equal(t, 2, fetches[0].EventCount)
}

func TestArchive_PublishEmptyStillRecordsFetch(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	require.NoError(t, a.Publish(ctx, nil, testRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))))

	fetches, err := a.RecentFetches(ctx, 5)
	require.NoError(t, err)
	require.Len(t, fetches, 1)
	assert.Equal(t, 0, fetches[0].EventCount)
	assert.Equal(t, "archive", a.Name())
}

func TestArchive_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.db")
	ctx := context.Background()

	a, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, a.Publish(ctx, []domain.HazardEvent{{ID: "a", Magnitude: 6.1}}, testRange(time.Now().UTC())))
	require.NoError(t, a.Close())

	b, err := Open(path)
	require.NoError(t, err)
	defer b.Close()
	_, ok, err := b.Event(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestArchive_InMemory(t *testing.T) {
	a, err := Open(":memory:")
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Publish(context.Background(), []domain.HazardEvent{{ID: "mem", Magnitude: 4.5}}, testRange(time.Now().UTC())))
	_, ok, err := a.Event(context.Background(), "mem")
	require.NoError(t, err)
	assert.True(t, ok)
}
