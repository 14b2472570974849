// Package usgs fetches hazard events from the USGS FDSN event service.
package usgs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client queries the catalog for events in a date range.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a catalog client. Outbound requests are spaced at least
// rateInterval apart.
func NewClient(baseURL string, timeout, rateInterval time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Every(rateInterval), 1),
		metrics: metrics,
		logger:  logger,
	}
}

// FetchEvents requests the events matching p and maps them. Every failure is
// a *domain.UpstreamError.
func (c *Client) FetchEvents(ctx context.Context, p domain.FetchParams) ([]domain.HazardEvent, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &domain.UpstreamError{Message: "rate limit wait: " + err.Error(), Err: err}
	}

	fullURL := c.baseURL + "?" + QueryValues(p).Encode()
	body, err := c.doRequest(ctx, fullURL)
	if err != nil {
		return nil, err
	}

	events, err := domain.ParseFeatureCollection(body)
	if err != nil {
		return nil, &domain.UpstreamError{Message: "malformed response: " + err.Error(), Err: err}
	}
	c.logger.Debug("catalog events fetched", "event_count", len(events))
	return events, nil
}

// QueryValues builds the catalog query for p.
func QueryValues(p domain.FetchParams) url.Values {
	v := url.Values{
		"format":       {"geojson"},
		"starttime":    {domain.FormatDate(p.Start)},
		"endtime":      {domain.FormatDate(p.End)},
		"minmagnitude": {strconv.FormatFloat(p.MinMagnitude, 'f', -1, 64)},
		"limit":        {strconv.Itoa(domain.FeedLimit)},
	}
	if b, ok := p.Region.Bounds(); ok {
		v.Set("minlatitude", formatCoord(b.Min.Lat()))
		v.Set("maxlatitude", formatCoord(b.Max.Lat()))
		v.Set("minlongitude", formatCoord(b.Min.Lon()))
		v.Set("maxlongitude", formatCoord(b.Max.Lon()))
	}
	return v
}

func formatCoord(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func (c *Client) doRequest(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CatalogAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("transport_error").Inc()
		return nil, &domain.UpstreamError{Message: "request failed: " + err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.CatalogRequests.WithLabelValues("http_error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(snippet))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.logger.Warn("catalog returned error status", "status_code", resp.StatusCode)
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("transport_error").Inc()
		return nil, &domain.UpstreamError{StatusCode: resp.StatusCode, Message: "read body: " + err.Error(), Err: err}
	}
	c.metrics.CatalogRequests.WithLabelValues("success").Inc()
	return body, nil
}
