// Package maplayer holds the rendered map layers and the status board in
// memory so the HTTP API can serve them to the dashboard.
package maplayer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"
)

// Layer is one rendered feature collection. Every Replace swaps the whole
// collection.
type Layer struct {
	name  string
	clock clockwork.Clock

	mu        sync.RWMutex
	fc        *geojson.FeatureCollection
	version   uint64
	updatedAt time.Time
}

// Snapshot is a read-only view of a layer.
type Snapshot struct {
	Name       string
	Version    uint64
	UpdatedAt  time.Time
	Collection *geojson.FeatureCollection
}

// NewLayer creates an empty layer.
func NewLayer(name string, clock clockwork.Clock) *Layer {
	return &Layer{
		name:  name,
		clock: clock,
		fc:    geojson.NewFeatureCollection(),
	}
}

// Name returns the layer name.
func (l *Layer) Name() string {
	return l.name
}

// Replace displays fc instead of the current features.
func (l *Layer) Replace(fc *geojson.FeatureCollection) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fc = fc
	l.version++
	l.updatedAt = l.clock.Now()
}

// Clear removes every feature.
func (l *Layer) Clear() {
	l.Replace(nil)
}

// Snapshot returns the current collection. The collection is shared and must
// not be modified.
func (l *Layer) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Name:       l.name,
		Version:    l.version,
		UpdatedAt:  l.updatedAt,
		Collection: l.fc,
	}
}

// Len returns the number of displayed features.
func (l *Layer) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.fc.Features)
}
