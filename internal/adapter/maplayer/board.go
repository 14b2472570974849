package maplayer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

// StatsErrorMarker replaces every numeric statistic after a failed load.
const StatsErrorMarker = "ERR"

// Board collects the statistics panel, the status indicator and the last
// reported error.
type Board struct {
	clock clockwork.Clock

	mu         sync.RWMutex
	stats      *domain.Statistics
	statsError bool
	message    string
	online     bool
	lastError  string
	updatedAt  time.Time

	riverCount    int
	highRiskCount int
}

// Status is a snapshot of the board. Stats is nil until the first load and
// while StatsError is set.
type Status struct {
	Message       string
	Online        bool
	Stats         *domain.Statistics
	StatsError    bool
	LastError     string
	UpdatedAt     time.Time
	RiverCount    int
	HighRiskCount int
}

// NewBoard creates a board showing the initial offline status.
func NewBoard(clock clockwork.Clock) *Board {
	return &Board{
		clock:   clock,
		message: "AWAITING DATA",
	}
}

// ReportStats shows fresh statistics and clears the error marker.
func (b *Board) ReportStats(s domain.Statistics) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = &s
	b.statsError = false
	b.updatedAt = b.clock.Now()
}

// ReportStatsError replaces the numbers with the error marker.
func (b *Board) ReportStatsError() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = nil
	b.statsError = true
	b.updatedAt = b.clock.Now()
}

// SetStatus updates the status indicator.
func (b *Board) SetStatus(message string, online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.message = message
	b.online = online
	if online {
		b.lastError = ""
	}
	b.updatedAt = b.clock.Now()
}

// ReportError records the reason of a failed load.
func (b *Board) ReportError(reason error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reason != nil {
		b.lastError = reason.Error()
	}
	b.updatedAt = b.clock.Now()
}

// SetDatasetSummary records the size of the linear-feature dataset.
func (b *Board) SetDatasetSummary(total, highRisk int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.riverCount = total
	b.highRiskCount = highRisk
}

// Status returns the current board contents.
func (b *Board) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	st := Status{
		Message:       b.message,
		Online:        b.online,
		StatsError:    b.statsError,
		LastError:     b.lastError,
		UpdatedAt:     b.updatedAt,
		RiverCount:    b.riverCount,
		HighRiskCount: b.highRiskCount,
	}
	if b.stats != nil {
		s := *b.stats
		st.Stats = &s
	}
	return st
}
