package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/pipeline"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

// --- mocks ---

type mockCatalog struct {
	events  []domain.HazardEvent
	err     error
	calls   atomic.Int64
	entered chan struct{} // closed on first call when non-nil
	release chan struct{} // blocks the call until closed when non-nil
	once    sync.Once
	params  []domain.FetchParams
	mu      sync.Mutex
}

func (m *mockCatalog) FetchEvents(ctx context.Context, p domain.FetchParams) ([]domain.HazardEvent, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.params = append(m.params, p)
	m.mu.Unlock()
	if m.entered != nil {
		m.once.Do(func() { close(m.entered) })
	}
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.events, nil
}

type recordingListener struct {
	mu       sync.Mutex
	loaded   []int
	failures []error
	store    *store.EventStore
	seenLen  []int
}

func (l *recordingListener) DataLoaded(_ context.Context, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = append(l.loaded, count)
	if l.store != nil {
		l.seenLen = append(l.seenLen, l.store.Len())
	}
}

func (l *recordingListener) DataLoadFailed(_ context.Context, reason error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = append(l.failures, reason)
}

type mockSink struct {
	name      string
	err       error
	published [][]domain.HazardEvent
}

func (s *mockSink) Name() string { return s.name }

func (s *mockSink) Publish(_ context.Context, events []domain.HazardEvent, _ domain.FetchRange) error {
	s.published = append(s.published, events)
	return s.err
}

// --- helpers ---

var testNow = time.Date(2024, time.March, 15, 9, 30, 0, 0, time.UTC)

func threeEvents() []domain.HazardEvent {
	return []domain.HazardEvent{
		{ID: "a", Magnitude: 4.2, OccurredAt: testNow.AddDate(0, -2, 0)},
		{ID: "b", Magnitude: 6.5, OccurredAt: testNow.AddDate(0, 0, -3)},
		{ID: "c", Magnitude: 7.8, OccurredAt: testNow.AddDate(0, 0, -1)},
	}
}

func validParams() domain.FetchParams {
	return domain.FetchParams{
		Start:        time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:          time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		MinMagnitude: 4,
		Region:       domain.RegionNepal,
	}
}

func newCoordinator(t *testing.T, catalog pipeline.Catalog, timeout time.Duration) (*pipeline.Coordinator, *store.EventStore, *observability.Metrics) {
	t.Helper()
	events := store.New()
	metrics := observability.NewMetricsForTesting()
	c := pipeline.New(catalog, events, pipeline.Settings{
		Timeout: timeout,
		Clock:   clockwork.NewFakeClockAt(testNow),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)
	return c, events, metrics
}

// --- tests ---

func TestCoordinator_Fetch_Success(t *testing.T) {
	catalog := &mockCatalog{events: threeEvents()}
	c, events, metrics := newCoordinator(t, catalog, time.Second)
	listener := &recordingListener{store: events}
	sink := &mockSink{name: "archive"}
	c.AddListener(listener)
	c.AddSink(sink)

	res, err := c.Fetch(context.Background(), validParams())
	require.NoError(t, err)

	assert.Equal(t, pipeline.OutcomeLoaded, res.Outcome)
	assert.Equal(t, 3, res.Count)
	assert.Equal(t, validParams(), res.Range.Params)
	assert.Equal(t, testNow, res.Range.LoadedAt)

	got, rng, ok := events.Snapshot()
	require.True(t, ok)
	if diff := cmp.Diff(threeEvents(), got); diff != "" {
		t.Errorf("stored events mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, res.Range, rng)

	assert.Equal(t, []int{3}, listener.loaded)
	assert.Equal(t, []int{3}, listener.seenLen, "listener must observe the committed store")
	assert.Empty(t, listener.failures)
	require.Len(t, sink.published, 1)
	assert.Len(t, sink.published[0], 3)

	require.NoError(t, c.CheckReadiness(context.Background()))
	assert.NoError(t, c.LastError())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("loaded")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.EventsLoaded), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("archive", "success")), 0)
}

func TestCoordinator_Fetch_InvalidRangeMakesNoRequest(t *testing.T) {
	catalog := &mockCatalog{events: threeEvents()}
	c, events, metrics := newCoordinator(t, catalog, time.Second)

	p := validParams()
	p.Start, p.End = p.End, p.Start

	_, err := c.Fetch(context.Background(), p)
	var rangeErr *domain.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, int64(0), catalog.calls.Load())
	assert.Equal(t, 0, events.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("invalid")), 0)
}

func TestCoordinator_Fetch_SingleFlight(t *testing.T) {
	catalog := &mockCatalog{
		events:  threeEvents(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c, events, metrics := newCoordinator(t, catalog, 5*time.Second)

	type outcome struct {
		res pipeline.Result
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := c.Fetch(context.Background(), validParams())
		first <- outcome{res, err}
	}()
	<-catalog.entered
	assert.True(t, c.InFlight())

	// A duplicate while in flight is dropped without touching the catalog.
	res, err := c.Fetch(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSkipped, res.Outcome)
	assert.Equal(t, int64(1), catalog.calls.Load())
	assert.Equal(t, 0, events.Len(), "skipped call must not write")

	// Range validation still wins over the single-flight gate.
	bad := validParams()
	bad.Start = bad.End.AddDate(0, 0, 1)
	_, err = c.Fetch(context.Background(), bad)
	var rangeErr *domain.InvalidRangeError
	require.ErrorAs(t, err, &rangeErr)

	close(catalog.release)
	got := <-first
	require.NoError(t, got.err)
	assert.Equal(t, pipeline.OutcomeLoaded, got.res.Outcome)
	assert.False(t, c.InFlight())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("skipped")), 0)

	// Once idle, the next request goes through.
	res, err = c.Fetch(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeLoaded, res.Outcome)
	assert.Equal(t, int64(2), catalog.calls.Load())
}

func TestCoordinator_Fetch_UpstreamFailureLeavesStoreUnchanged(t *testing.T) {
	catalog := &mockCatalog{events: threeEvents()}
	c, events, metrics := newCoordinator(t, catalog, time.Second)
	listener := &recordingListener{}
	sink := &mockSink{name: "kafka"}
	c.AddListener(listener)
	c.AddSink(sink)

	_, err := c.Fetch(context.Background(), validParams())
	require.NoError(t, err)
	before, beforeRange, _ := events.Snapshot()

	catalog.err = &domain.UpstreamError{StatusCode: 503, Message: "service unavailable"}
	other := validParams()
	other.MinMagnitude = 6
	_, err = c.Fetch(context.Background(), other)

	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 503, upErr.StatusCode)

	after, afterRange, ok := events.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before, after)
	assert.Equal(t, beforeRange, afterRange)

	require.Len(t, listener.failures, 1)
	assert.ErrorAs(t, listener.failures[0], &upErr)
	assert.Equal(t, []int{3}, listener.loaded)
	assert.Len(t, sink.published, 1, "failed fetch must not reach sinks")
	assert.ErrorIs(t, c.LastError(), err)
	assert.NoError(t, c.CheckReadiness(context.Background()), "readiness survives a later failure")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Fetches.WithLabelValues("failed")), 0)
}

func TestCoordinator_Fetch_WrapsPlainErrors(t *testing.T) {
	cause := errors.New("connection reset")
	c, _, _ := newCoordinator(t, &mockCatalog{err: cause}, time.Second)

	_, err := c.Fetch(context.Background(), validParams())
	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, 0, upErr.StatusCode)
	require.ErrorIs(t, err, cause)
	require.Error(t, c.CheckReadiness(context.Background()))
}

func TestCoordinator_Fetch_Timeout(t *testing.T) {
	catalog := &mockCatalog{release: make(chan struct{})}
	defer close(catalog.release)
	c, events, _ := newCoordinator(t, catalog, 20*time.Millisecond)

	_, err := c.Fetch(context.Background(), validParams())
	var upErr *domain.UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "request timed out", upErr.Message)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, events.Len())
	assert.False(t, c.InFlight())
}

func TestCoordinator_Fetch_SinkErrorIsNotFetchError(t *testing.T) {
	c, _, metrics := newCoordinator(t, &mockCatalog{events: threeEvents()}, time.Second)
	broken := &mockSink{name: "kafka", err: errors.New("broker down")}
	healthy := &mockSink{name: "archive"}
	c.AddSink(broken)
	c.AddSink(healthy)

	res, err := c.Fetch(context.Background(), validParams())
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeLoaded, res.Outcome)
	assert.Len(t, healthy.published, 1, "later sinks still run")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SinkWrites.WithLabelValues("kafka", "error")), 0)
}

func TestCoordinator_FetchLatest(t *testing.T) {
	catalog := &mockCatalog{events: threeEvents()}
	c, _, _ := newCoordinator(t, catalog, time.Second)

	_, err := c.FetchLatest(context.Background())
	require.NoError(t, err)

	require.Len(t, catalog.params, 1)
	p := catalog.params[0]
	assert.Equal(t, domain.DefaultStartDate, p.Start)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), p.End)
	assert.InDelta(t, domain.DefaultMinMagnitude, p.MinMagnitude, 0)
	assert.Equal(t, domain.RegionNepal, p.Region)
}

func TestCoordinator_LatestParamsUsesSettings(t *testing.T) {
	start := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	c := pipeline.New(&mockCatalog{}, store.New(), pipeline.Settings{
		LatestStart:        start,
		LatestMinMagnitude: 5.5,
		Clock:              clockwork.NewFakeClockAt(testNow),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())

	p := c.LatestParams()
	assert.Equal(t, start, p.Start)
	assert.InDelta(t, 5.5, p.MinMagnitude, 0)
}

func TestCoordinator_CheckReadiness_BeforeFirstFetch(t *testing.T) {
	c, _, _ := newCoordinator(t, &mockCatalog{}, time.Second)
	err := c.CheckReadiness(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no events loaded")
}
