package domain

import (
	"fmt"
	"math"
	"strings"
)

// SeverityClass is a discrete bucket derived from magnitude.
type SeverityClass int

const (
	SeverityLow SeverityClass = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// CriticalMagnitude is the lower bound of the CRITICAL class.
const CriticalMagnitude = 7.0

type severityInfo struct {
	name      string
	lower     float64
	color     string
	filterKey string
}

// Ordered by lower bound.
var severityTable = [...]severityInfo{
	SeverityLow:      {name: "LOW", lower: 0, color: "#0080ff", filterKey: "4-5"},
	SeverityMedium:   {name: "MEDIUM", lower: 5, color: "#ffa500", filterKey: "5-6"},
	SeverityHigh:     {name: "HIGH", lower: 6, color: "#ff4500", filterKey: "6-7"},
	SeverityCritical: {name: "CRITICAL", lower: CriticalMagnitude, color: "#ff0000", filterKey: "7-8"},
}

// AllClasses returns every class in ascending order.
func AllClasses() []SeverityClass {
	return []SeverityClass{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

// Classify maps a magnitude to the highest class whose lower bound is <= m.
// Values below every bound, and NaN, are LOW.
func Classify(m float64) SeverityClass {
	if math.IsNaN(m) {
		return SeverityLow
	}
	for c := SeverityCritical; c > SeverityLow; c-- {
		if m >= severityTable[c].lower {
			return c
		}
	}
	return SeverityLow
}

func (c SeverityClass) valid() bool {
	return c >= SeverityLow && c <= SeverityCritical
}

func (c SeverityClass) String() string {
	if !c.valid() {
		return fmt.Sprintf("SeverityClass(%d)", int(c))
	}
	return severityTable[c].name
}

// LowerBound is the inclusive magnitude at which the class starts.
func (c SeverityClass) LowerBound() float64 {
	if !c.valid() {
		return math.NaN()
	}
	return severityTable[c].lower
}

// FilterKey returns the legacy checkbox value for the class, e.g. "6-7".
func (c SeverityClass) FilterKey() string {
	if !c.valid() {
		return ""
	}
	return severityTable[c].filterKey
}

// ThreatLabel returns the threat level text shown next to an event.
func ThreatLabel(c SeverityClass) string {
	return c.String()
}

// Color returns the palette value for the class.
func Color(c SeverityClass) string {
	if !c.valid() {
		return severityTable[SeverityLow].color
	}
	return severityTable[c].color
}

// MarkerRadius is the circle marker radius in pixels for a magnitude.
func MarkerRadius(m float64) float64 {
	return math.Max(4, m*1.5)
}

// Pulses reports whether the marker for a magnitude gets the pulse animation.
func Pulses(m float64) bool {
	return m >= CriticalMagnitude
}

// ParseSeverityClass accepts class names (case-insensitive) and the legacy
// filter keys "4-5", "5-6", "6-7", "7-8".
func ParseSeverityClass(s string) (SeverityClass, error) {
	s = strings.TrimSpace(s)
	for _, c := range AllClasses() {
		info := severityTable[c]
		if strings.EqualFold(s, info.name) || s == info.filterKey {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown severity class %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (c SeverityClass) MarshalText() ([]byte, error) {
	if !c.valid() {
		return nil, fmt.Errorf("invalid severity class %d", int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *SeverityClass) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverityClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ClassSet is a set of severity classes.
type ClassSet uint8

// AllClassSet contains every class.
func AllClassSet() ClassSet {
	return NewClassSet(AllClasses()...)
}

// NewClassSet builds a set from the given classes.
func NewClassSet(classes ...SeverityClass) ClassSet {
	var s ClassSet
	for _, c := range classes {
		s = s.With(c)
	}
	return s
}

// With returns the set plus c.
func (s ClassSet) With(c SeverityClass) ClassSet {
	if !c.valid() {
		return s
	}
	return s | 1<<uint(c)
}

// Has reports whether c is in the set.
func (s ClassSet) Has(c SeverityClass) bool {
	return c.valid() && s&(1<<uint(c)) != 0
}

// Classes lists the members in ascending order.
func (s ClassSet) Classes() []SeverityClass {
	out := make([]SeverityClass, 0, len(severityTable))
	for _, c := range AllClasses() {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// ParseClassSet parses a list of class names or filter keys.
func ParseClassSet(values []string) (ClassSet, error) {
	var s ClassSet
	for _, v := range values {
		c, err := ParseSeverityClass(v)
		if err != nil {
			return 0, err
		}
		s = s.With(c)
	}
	return s, nil
}
