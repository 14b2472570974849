// Package pipeline coordinates catalog fetches into the event store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

// Catalog retrieves the events matching a query.
type Catalog interface {
	FetchEvents(ctx context.Context, p domain.FetchParams) ([]domain.HazardEvent, error)
}

// Listener is notified after every fetch that reached the catalog.
type Listener interface {
	DataLoaded(ctx context.Context, count int)
	DataLoadFailed(ctx context.Context, reason error)
}

// Sink receives each committed collection. Sink errors never fail a fetch.
type Sink interface {
	Name() string
	Publish(ctx context.Context, events []domain.HazardEvent, rng domain.FetchRange) error
}

// Outcome is how a Fetch call ended when it returned no error.
type Outcome string

const (
	OutcomeLoaded Outcome = "loaded"
	// OutcomeSkipped means another fetch was in flight; nothing was requested.
	OutcomeSkipped Outcome = "skipped"
)

// Result describes a completed or skipped fetch.
type Result struct {
	Outcome Outcome           `json:"outcome"`
	Count   int               `json:"count"`
	Range   domain.FetchRange `json:"range"`
}

// Settings tune the coordinator.
type Settings struct {
	// Timeout bounds each catalog attempt.
	Timeout time.Duration
	// LatestStart and LatestMinMagnitude define the real-time preset.
	LatestStart        time.Time
	LatestMinMagnitude float64
	Clock              clockwork.Clock
}

// Coordinator runs at most one catalog fetch at a time and commits successful
// results to the store.
type Coordinator struct {
	catalog   Catalog
	events    *store.EventStore
	settings  Settings
	logger    *slog.Logger
	metrics   *observability.Metrics
	tracer    trace.Tracer
	listeners []Listener
	sinks     []Sink

	inFlight atomic.Bool
	ready    atomic.Bool

	mu      sync.Mutex
	lastErr error
}

// New creates a Coordinator. Listeners and sinks must be registered before the
// first Fetch.
func New(catalog Catalog, events *store.EventStore, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	if settings.Clock == nil {
		settings.Clock = clockwork.NewRealClock()
	}
	if settings.Timeout <= 0 {
		settings.Timeout = 30 * time.Second
	}
	if settings.LatestStart.IsZero() {
		settings.LatestStart = domain.DefaultStartDate
	}
	return &Coordinator{
		catalog:  catalog,
		events:   events,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
		tracer:   otel.Tracer(observability.TracerName),
	}
}

// AddListener registers l for load notifications.
func (c *Coordinator) AddListener(l Listener) {
	c.listeners = append(c.listeners, l)
}

// AddSink registers s to receive committed collections.
func (c *Coordinator) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// InFlight reports whether a fetch is currently running.
func (c *Coordinator) InFlight() bool {
	return c.inFlight.Load()
}

// LastError returns the error of the most recent failed fetch, or nil when the
// most recent fetch succeeded.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// CheckReadiness returns nil once a fetch has succeeded.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no events loaded yet")
	}
	return nil
}

// LatestParams returns the real-time preset query as of now.
func (c *Coordinator) LatestParams() domain.FetchParams {
	p := domain.LatestParams(c.settings.Clock.Now())
	p.Start = c.settings.LatestStart
	if c.settings.LatestMinMagnitude > 0 {
		p.MinMagnitude = c.settings.LatestMinMagnitude
	}
	return p
}

// FetchLatest fetches the real-time preset.
func (c *Coordinator) FetchLatest(ctx context.Context) (Result, error) {
	return c.Fetch(ctx, c.LatestParams())
}

// Fetch validates p, queries the catalog and replaces the store contents on
// success. A call made while another fetch runs returns OutcomeSkipped without
// contacting the catalog. Failures are *domain.UpstreamError and leave the
// store untouched.
func (c *Coordinator) Fetch(ctx context.Context, p domain.FetchParams) (Result, error) {
	if err := p.Validate(); err != nil {
		c.metrics.Fetches.WithLabelValues("invalid").Inc()
		return Result{}, err
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.metrics.Fetches.WithLabelValues(string(OutcomeSkipped)).Inc()
		c.logger.Debug("fetch already in flight, dropping request")
		return Result{Outcome: OutcomeSkipped}, nil
	}
	defer c.inFlight.Store(false)

	ctx, span := c.tracer.Start(ctx, "pipeline.Fetch", trace.WithAttributes(
		attribute.String("fetch.start", domain.FormatDate(p.Start)),
		attribute.String("fetch.end", domain.FormatDate(p.End)),
		attribute.Float64("fetch.min_magnitude", p.MinMagnitude),
		attribute.String("fetch.region", string(p.Region)),
	))
	defer span.End()

	start := c.settings.Clock.Now()
	c.logger.Info("fetch started",
		"start_date", domain.FormatDate(p.Start),
		"end_date", domain.FormatDate(p.End),
		"min_magnitude", p.MinMagnitude,
		"region", p.Region,
	)

	fetchCtx, cancel := context.WithTimeout(ctx, c.settings.Timeout)
	events, err := c.catalog.FetchEvents(fetchCtx, p)
	timedOut := errors.Is(fetchCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		upErr := asUpstreamError(err, timedOut)
		span.RecordError(upErr)
		span.SetStatus(codes.Error, upErr.Error())
		c.fail(ctx, upErr)
		return Result{}, upErr
	}

	rng := domain.FetchRange{Params: p, LoadedAt: c.settings.Clock.Now()}
	c.events.Replace(events, rng)
	c.ready.Store(true)
	c.setLastError(nil)

	c.metrics.Fetches.WithLabelValues(string(OutcomeLoaded)).Inc()
	c.metrics.FetchDuration.Observe(c.settings.Clock.Since(start).Seconds())
	c.metrics.EventsLoaded.Set(float64(len(events)))
	span.SetAttributes(attribute.Int("fetch.event_count", len(events)))

	activity := domain.SummarizeActivity(events, rng.LoadedAt)
	c.logger.Info("events loaded",
		"event_count", len(events),
		"major_count", activity.MajorCount,
		"recent_count", activity.RecentCount,
	)

	for _, l := range c.listeners {
		l.DataLoaded(ctx, len(events))
	}
	c.publish(ctx, events, rng)

	return Result{Outcome: OutcomeLoaded, Count: len(events), Range: rng}, nil
}

func (c *Coordinator) fail(ctx context.Context, err *domain.UpstreamError) {
	c.setLastError(err)
	c.metrics.Fetches.WithLabelValues("failed").Inc()
	c.logger.Error("fetch failed", "error", err, "status_code", err.StatusCode)
	for _, l := range c.listeners {
		l.DataLoadFailed(ctx, err)
	}
}

// publish hands the committed collection to every sink. The sinks get their
// own deadline so a finished HTTP request does not cancel them.
func (c *Coordinator) publish(ctx context.Context, events []domain.HazardEvent, rng domain.FetchRange) {
	if len(c.sinks) == 0 {
		return
	}
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.settings.Timeout)
	defer cancel()

	for _, s := range c.sinks {
		if err := s.Publish(sinkCtx, events, rng); err != nil {
			c.metrics.SinkWrites.WithLabelValues(s.Name(), "error").Inc()
			c.logger.Warn("sink publish failed", "sink", s.Name(), "error", err, "event_count", len(events))
			continue
		}
		c.metrics.SinkWrites.WithLabelValues(s.Name(), "success").Inc()
	}
}

func (c *Coordinator) setLastError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastErr = err
}

func asUpstreamError(err error, timedOut bool) *domain.UpstreamError {
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) && !timedOut {
		return upErr
	}
	if timedOut {
		return &domain.UpstreamError{Message: "request timed out", Err: err}
	}
	return &domain.UpstreamError{Message: fmt.Sprintf("fetch: %v", err), Err: err}
}
