// Package layersync keeps the rendered layers, statistics and status in step
// with the event store and the current filter.
package layersync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/geo"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

// Status messages shown by the indicator.
const (
	StatusFailed  = "DATA LINK FAILED"
	trackedFormat = "%d EVENTS TRACKED"
)

// ErrNoDataset is returned by CreateBuffer when no linear features are loaded.
var ErrNoDataset = errors.New("no linear-feature dataset loaded")

// Renderer displays a feature collection, replacing whatever it showed.
type Renderer interface {
	Replace(fc *geojson.FeatureCollection)
	Clear()
}

// StatsReporter shows catalog-wide statistics.
type StatsReporter interface {
	ReportStats(s domain.Statistics)
	ReportStatsError()
}

// StatusReporter shows a status message and online flag.
type StatusReporter interface {
	SetStatus(message string, online bool)
}

// ErrorReporter surfaces load failures.
type ErrorReporter interface {
	ReportError(reason error)
}

// Board is the combined display-only reporting collaborator.
type Board interface {
	StatsReporter
	StatusReporter
	ErrorReporter
}

// ZoneSource produces buffered zones for a distance in meters.
type ZoneSource interface {
	Zones(distance float64) ([]geo.Zone, error)
}

// Controller reacts to load notifications and filter changes. All reactions
// are serialized.
type Controller struct {
	events  *store.EventStore
	layer   Renderer
	buffers Renderer
	board   Board
	zones   ZoneSource
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu             sync.Mutex
	filter         domain.FilterState
	linkDown       bool
	bufferDistance *float64
}

// New creates a Controller starting from filter. zones may be nil when no
// dataset is available.
func New(events *store.EventStore, layer, buffers Renderer, board Board, zones ZoneSource, filter domain.FilterState, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		events:  events,
		layer:   layer,
		buffers: buffers,
		board:   board,
		zones:   zones,
		filter:  filter,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// DataLoaded renders the new collection under the current filter and reports
// its statistics.
func (c *Controller) DataLoaded(_ context.Context, count int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	events, _, ok := c.events.Snapshot()
	if !ok {
		return
	}
	c.linkDown = false
	view := domain.ComputeView(events, c.filter)
	c.board.ReportStats(view.Stats)
	c.render(view.Visible)
	c.logger.Info("event layer synced",
		"event_count", count,
		"visible_count", len(view.Visible),
		"critical_count", view.Stats.CriticalCount,
	)
}

// DataLoadFailed leaves the rendered layer as it is and flags the failure.
func (c *Controller) DataLoadFailed(_ context.Context, reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.linkDown = true
	c.board.ReportError(reason)
	c.board.ReportStatsError()
	c.board.SetStatus(StatusFailed, false)
	c.logger.Warn("event layer kept after failed load", "error", reason)
}

// Filter returns the current filter.
func (c *Controller) Filter() domain.FilterState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetFilter replaces the filter and re-renders the loaded events. Statistics
// are left untouched.
func (c *Controller) SetFilter(f domain.FilterState) error {
	return c.UpdateFilter(func(cur *domain.FilterState) { *cur = f })
}

// UpdateFilter applies fn to a copy of the current filter and, if the result
// is a valid range, installs it and re-renders. The read and the write happen
// under one lock.
func (c *Controller) UpdateFilter(fn func(*domain.FilterState)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := c.filter
	fn(&f)
	if !f.StartDate.IsZero() && !f.EndDate.IsZero() && f.StartDate.After(f.EndDate) {
		return &domain.InvalidRangeError{Start: f.StartDate, End: f.EndDate}
	}
	c.filter = f

	events, _, ok := c.events.Snapshot()
	if !ok {
		return nil
	}
	view := domain.ComputeView(events, f)
	c.render(view.Visible)
	c.logger.Debug("filter applied", "visible_count", len(view.Visible))
	return nil
}

// render replaces the event layer and reports the number of drawn markers.
// A failed load keeps its status until the next successful one.
func (c *Controller) render(visible []domain.HazardEvent) {
	c.layer.Replace(EventCollection(visible))
	c.metrics.LayerRenders.WithLabelValues("events").Inc()
	if !c.linkDown {
		c.board.SetStatus(fmt.Sprintf(trackedFormat, len(visible)), true)
	}
}

// CreateBuffer rebuilds the buffer layer at distance meters and returns the
// number of zones rendered. On error the layer is unchanged.
func (c *Controller) CreateBuffer(distance float64) (int, error) {
	if err := geo.ValidateDistance(distance); err != nil {
		return 0, err
	}
	if c.zones == nil {
		return 0, ErrNoDataset
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	start := c.clock.Now()
	zones, err := c.zones.Zones(distance)
	if err != nil {
		return 0, fmt.Errorf("buffer zones: %w", err)
	}
	c.buffers.Replace(geo.ZoneFeatureCollection(zones))
	c.metrics.BufferDuration.Observe(c.clock.Since(start).Seconds())
	c.metrics.LayerRenders.WithLabelValues("buffers").Inc()
	c.metrics.BufferZones.Set(float64(len(zones)))

	d := distance
	c.bufferDistance = &d
	c.logger.Info("buffer layer created", "distance_m", distance, "zone_count", len(zones))
	return len(zones), nil
}

// ClearBuffer removes every buffered zone.
func (c *Controller) ClearBuffer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffers.Clear()
	c.bufferDistance = nil
	c.metrics.BufferZones.Set(0)
	c.logger.Info("buffer layer cleared")
}

// BufferDistance returns the distance of the rendered buffer layer; ok is
// false when the layer is clear.
func (c *Controller) BufferDistance() (distance float64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bufferDistance == nil {
		return 0, false
	}
	return *c.bufferDistance, true
}
