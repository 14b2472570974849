// Package store holds the events of the last successful fetch.
package store

import (
	"sync"

	"github.com/couchcryptid/hazard-map-service/internal/domain"
)

// EventStore is the in-memory collection of the most recent fetch. Only the
// fetch coordinator writes to it; everything else reads snapshots.
type EventStore struct {
	mu     sync.RWMutex
	events []domain.HazardEvent
	rng    domain.FetchRange
	loaded bool
}

// New returns an empty store.
func New() *EventStore {
	return &EventStore{}
}

// Replace swaps in a new collection and its range in one step.
func (s *EventStore) Replace(events []domain.HazardEvent, rng domain.FetchRange) {
	cp := make([]domain.HazardEvent, len(events))
	copy(cp, events)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = cp
	s.rng = rng
	s.loaded = true
}

// Snapshot returns a copy of the events and the range that produced them.
// ok is false until the first Replace.
func (s *EventStore) Snapshot() (events []domain.HazardEvent, rng domain.FetchRange, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.loaded {
		return nil, domain.FetchRange{}, false
	}
	cp := make([]domain.HazardEvent, len(s.events))
	copy(cp, s.events)
	return cp, s.rng, true
}

// Get looks up one event by ID.
func (s *EventStore) Get(id string) (domain.HazardEvent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.events {
		if e.ID == id {
			return e, true
		}
	}
	return domain.HazardEvent{}, false
}

// Len returns the number of stored events.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
