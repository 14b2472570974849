package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Region narrows events to a geographic area.
type Region string

const (
	RegionGlobal Region = "global"
	// RegionNepal is the dashboard's area of interest.
	RegionNepal Region = "nepal"
)

// AreaOfInterest is the bounding box queried for RegionNepal:
// lat 25..31, lon 78..90.
var AreaOfInterest = orb.Bound{Min: orb.Point{78, 25}, Max: orb.Point{90, 31}}

// Catalog query defaults.
const (
	DefaultMinMagnitude = 4.0
	DefaultRegion       = RegionNepal
	FeedLimit           = 10000
	DateLayout          = "2006-01-02"
)

// DefaultStartDate is the first day of the real-time preset range.
var DefaultStartDate = time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseRegion accepts "global" or "nepal", case-insensitive.
func ParseRegion(s string) (Region, error) {
	switch r := Region(strings.ToLower(strings.TrimSpace(s))); r {
	case RegionGlobal, RegionNepal:
		return r, nil
	default:
		return "", fmt.Errorf("unknown region %q", s)
	}
}

// Bounds returns the bounding box of the region. ok is false for the global
// region, which has no constraint.
func (r Region) Bounds() (bound orb.Bound, ok bool) {
	if r == RegionNepal {
		return AreaOfInterest, true
	}
	return orb.Bound{}, false
}

// Contains reports whether the location falls inside the region. Edges are
// inclusive.
func (r Region) Contains(l Location) bool {
	b, ok := r.Bounds()
	if !ok {
		return true
	}
	return b.Contains(l.Point())
}

// ParseDate parses a YYYY-MM-DD calendar date as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders t as a YYYY-MM-DD calendar date in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// CalendarDay truncates t to midnight UTC of the same day.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LatestParams returns the real-time preset: everything since
// DefaultStartDate up to today at the default threshold and region.
func LatestParams(now time.Time) FetchParams {
	return FetchParams{
		Start:        DefaultStartDate,
		End:          CalendarDay(now),
		MinMagnitude: DefaultMinMagnitude,
		Region:       DefaultRegion,
	}
}
