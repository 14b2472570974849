package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/couchcryptid/hazard-map-service/internal/adapter/sqlite"
	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

type historyJSON struct {
	Fetches []fetchRecordJSON `json:"fetches"`
	Classes map[string]int    `json:"classes"`
}

type fetchRecordJSON struct {
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	MinMagnitude float64 `json:"min_magnitude"`
	Region       string  `json:"region"`
	EventCount   int     `json:"event_count"`
	LoadedAt     string  `json:"loaded_at"`
}

// Execute implements the go-flags Commander interface for HistoryCommand.
func (c *HistoryCommand) Execute(_ []string) error {
	archive, err := sqlite.Open(c.Archive)
	if err != nil {
		return err
	}
	defer archive.Close()
	return c.executeWithArchive(context.Background(), archive)
}

// executeWithArchive runs history against an open archive (for testing).
func (c *HistoryCommand) executeWithArchive(ctx context.Context, archive *sqlite.Archive) error {
	records, err := archive.RecentFetches(ctx, c.Limit)
	if err != nil {
		return err
	}
	counts, err := archive.CountBySeverity(ctx)
	if err != nil {
		return err
	}

	out := historyJSON{Fetches: make([]fetchRecordJSON, 0, len(records)), Classes: map[string]int{}}
	for _, r := range records {
		p := r.Range.Params
		out.Fetches = append(out.Fetches, fetchRecordJSON{
			StartDate:    domain.FormatDate(p.Start),
			EndDate:      domain.FormatDate(p.End),
			MinMagnitude: p.MinMagnitude,
			Region:       string(p.Region),
			EventCount:   r.EventCount,
			LoadedAt:     r.Range.LoadedAt.UTC().Format(time.RFC3339),
		})
	}
	for _, class := range domain.AllClasses() {
		out.Classes[class.String()] = counts[class]
	}

	if c.globals.jsonOutput() {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(c.out, titleStyle.Render("Archived fetches"))
	if len(out.Fetches) == 0 {
		fmt.Fprintln(c.out, "  (none)")
	}
	for _, f := range out.Fetches {
		fmt.Fprintf(c.out, "  %s  %s .. %s  M%.1f+  %-6s %d events\n",
			f.LoadedAt, f.StartDate, f.EndDate, f.MinMagnitude, f.Region, f.EventCount)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, titleStyle.Render("Events by class"))
	for _, class := range domain.AllClasses() {
		fmt.Fprintln(c.out, row(class.String(), fmt.Sprintf("%d", out.Classes[class.String()])))
	}
	return nil
}
