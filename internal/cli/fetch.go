package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/couchcryptid/hazard-map-service/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-map-service/internal/adapter/usgs"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
	"github.com/couchcryptid/hazard-map-service/internal/observability"
	"github.com/couchcryptid/hazard-map-service/internal/pipeline"
	"github.com/couchcryptid/hazard-map-service/internal/store"
)

type fetchJSON struct {
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	MinMagnitude float64           `json:"min_magnitude"`
	Region       domain.Region     `json:"region"`
	Stats        domain.Statistics `json:"stats"`
	MajorCount   int               `json:"major_count"`
	RecentCount  int               `json:"recent_count"`
}

// Execute implements the go-flags Commander interface for FetchCommand.
func (c *FetchCommand) Execute(_ []string) error {
	p, err := c.params()
	if err != nil {
		return err
	}

	logger := c.globals.logger()
	metrics := observability.NewMetricsWith(prometheus.NewRegistry())
	events := store.New()
	catalog := usgs.NewClient(c.FeedURL, c.Timeout, 0, metrics, logger)
	coord := pipeline.New(catalog, events, pipeline.Settings{Timeout: c.Timeout, Clock: c.clock}, logger, metrics)

	if c.Archive != "" {
		archive, err := sqlite.Open(c.Archive)
		if err != nil {
			return err
		}
		defer archive.Close()
		coord.AddSink(archive)
	}

	if _, err := coord.Fetch(context.Background(), p); err != nil {
		return err
	}

	loaded, _, _ := events.Snapshot()
	stats := domain.ComputeStatistics(loaded)
	activity := domain.SummarizeActivity(loaded, c.clock.Now())

	if c.globals.jsonOutput() {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(fetchJSON{
			StartDate:    domain.FormatDate(p.Start),
			EndDate:      domain.FormatDate(p.End),
			MinMagnitude: p.MinMagnitude,
			Region:       p.Region,
			Stats:        stats,
			MajorCount:   activity.MajorCount,
			RecentCount:  activity.RecentCount,
		})
	}

	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s .. %s  M%.1f+  %s",
			domain.FormatDate(p.Start), domain.FormatDate(p.End), p.MinMagnitude, strings.ToUpper(string(p.Region)))),
		row("Total events", fmt.Sprintf("%d", stats.TotalCount)),
		row("Critical", fmt.Sprintf("%d", stats.CriticalCount)),
		row("Avg magnitude", fmt.Sprintf("%.1f", stats.AverageMagnitude)),
		row("Major (M7+)", fmt.Sprintf("%d", activity.MajorCount)),
		row("Last 30 days", fmt.Sprintf("%d", activity.RecentCount)),
	}
	_, err = fmt.Fprintln(c.out, strings.Join(lines, "\n"))
	return err
}

func (c *FetchCommand) params() (domain.FetchParams, error) {
	start, err := domain.ParseDate(c.Start)
	if err != nil {
		return domain.FetchParams{}, err
	}
	end := domain.CalendarDay(c.clock.Now())
	if c.End != "" {
		if end, err = domain.ParseDate(c.End); err != nil {
			return domain.FetchParams{}, err
		}
	}
	region := domain.RegionNepal
	if c.Global {
		region = domain.RegionGlobal
	}
	p := domain.FetchParams{Start: start, End: end, MinMagnitude: c.MinMagnitude, Region: region}
	return p, p.Validate()
}
