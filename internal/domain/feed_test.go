package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFeatureCollection = `{
  "type": "FeatureCollection",
  "metadata": {"count": 3},
  "features": [
    {"type":"Feature","id":"us7000abcd","properties":{"mag":4.2,"time":1430027690000,"place":"36 km E of Kodari, Nepal","url":"https://earthquake.usgs.gov/earthquakes/eventpage/us7000abcd","magType":"mb","status":"reviewed"},"geometry":{"type":"Point","coordinates":[86.3,27.9,10.5]}},
    {"type":"Feature","id":"us7000efgh","properties":{"mag":null,"time":1430027700000,"place":"Nepal","url":"","magType":"","status":"automatic"},"geometry":{"type":"Point","coordinates":[84.7,28.2]}},
    {"type":"Feature","properties":{"mag":7.8,"time":1429946026000,"place":"36km E of Khudi, Nepal"},"geometry":{"type":"Point","coordinates":[84.731,28.231,8.22]}}
  ]
}`

func TestParseFeatureCollection(t *testing.T) {
	t.Run("maps every feature", func(t *testing.T) {
		events, err := ParseFeatureCollection([]byte(testFeatureCollection))
		require.NoError(t, err)
		require.Len(t, events, 3)

		first := events[0]
		assert.Equal(t, "us7000abcd", first.ID)
		assert.Equal(t, 4.2, first.Magnitude)
		assert.Equal(t, 27.9, first.Location.Lat)
		assert.Equal(t, 86.3, first.Location.Lon)
		require.NotNil(t, first.Location.Depth)
		assert.Equal(t, 10.5, *first.Location.Depth)
		assert.Equal(t, time.UnixMilli(1430027690000).UTC(), first.OccurredAt)
		assert.Equal(t, "36 km E of Kodari, Nepal", first.Place)
		assert.Equal(t, "mb", first.MagnitudeType)
		assert.Equal(t, "reviewed", first.Status)
		assert.Contains(t, first.DetailURL, "us7000abcd")
	})

	t.Run("null magnitude falls back to zero", func(t *testing.T) {
		events, err := ParseFeatureCollection([]byte(testFeatureCollection))
		require.NoError(t, err)
		assert.Equal(t, 0.0, events[1].Magnitude)
		assert.Nil(t, events[1].Location.Depth)
		assert.Equal(t, 0.0, events[1].Location.DepthOrZero())
	})

	t.Run("missing id gets a deterministic one", func(t *testing.T) {
		a, err := ParseFeatureCollection([]byte(testFeatureCollection))
		require.NoError(t, err)
		b, err := ParseFeatureCollection([]byte(testFeatureCollection))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(a[2].ID, "evt-"))
		assert.Equal(t, a[2].ID, b[2].ID)
	})

	t.Run("empty collection", func(t *testing.T) {
		events, err := ParseFeatureCollection([]byte(`{"type":"FeatureCollection","features":[]}`))
		require.NoError(t, err)
		assert.NotNil(t, events)
		assert.Empty(t, events)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseFeatureCollection([]byte("{not json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse feature collection")
	})

	t.Run("missing features", func(t *testing.T) {
		_, err := ParseFeatureCollection([]byte(`{"type":"FeatureCollection"}`))
		assert.True(t, errors.Is(err, ErrNotFeatureCollection))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := ParseFeatureCollection([]byte(`{"type":"Feature","features":[]}`))
		assert.ErrorIs(t, err, ErrNotFeatureCollection)
	})
}

func TestMapFeature_MissingFields(t *testing.T) {
	event := MapFeature(FeedFeature{})
	assert.Equal(t, 0.0, event.Magnitude)
	assert.True(t, event.OccurredAt.IsZero())
	assert.Equal(t, Location{}, event.Location)
	assert.NotEmpty(t, event.ID)
}

func TestGenerateID(t *testing.T) {
	ts := time.Date(2015, time.April, 25, 6, 11, 26, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, generateID(ts, 28.23, 84.73, 7.8), generateID(ts, 28.23, 84.73, 7.8))
	})

	t.Run("different inputs produce different IDs", func(t *testing.T) {
		assert.NotEqual(t, generateID(ts, 28.23, 84.73, 7.8), generateID(ts, 28.23, 84.73, 7.3))
	})
}
