package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/carstom/internal/ar/coordinator"
)

// EventSummary is a session event without its image payload.
type EventSummary struct {
	Kind       coordinator.EventKind `json:"kind"`
	At         time.Time             `json:"at"`
	AssemblyID uuid.UUID             `json:"assembly_id"`
	Mode       string                `json:"mode"`
	Detail     string                `json:"detail,omitempty"`
	HasImage   bool                  `json:"has_image"`
}

// StatusStore caches the session status for readers off the main queue.
// OnEvent must run where source may be called, which for a coordinator
// means the main queue.
type StatusStore struct {
	source func() coordinator.Status
	limit  int

	mu      sync.RWMutex
	status  coordinator.Status
	updated time.Time
	recent  []EventSummary
	counts  map[coordinator.EventKind]int
}

// NewStatusStore returns a store refreshing from source and keeping the
// last recent events.
func NewStatusStore(source func() coordinator.Status, recent int) *StatusStore {
	if recent < 1 {
		recent = 1
	}
	return &StatusStore{source: source, limit: recent, counts: make(map[coordinator.EventKind]int)}
}

// Refresh pulls a new status from the source.
func (s *StatusStore) Refresh() {
	if s.source == nil {
		return
	}
	st := s.source()
	s.mu.Lock()
	s.status = st
	s.updated = time.Now()
	s.mu.Unlock()
}

// OnEvent implements coordinator.Observer.
func (s *StatusStore) OnEvent(e coordinator.Event) {
	s.mu.Lock()
	s.counts[e.Kind]++
	s.recent = append(s.recent, EventSummary{
		Kind:       e.Kind,
		At:         e.At,
		AssemblyID: e.AssemblyID,
		Mode:       e.Mode,
		Detail:     e.Detail,
		HasImage:   e.Image != nil,
	})
	if len(s.recent) > s.limit {
		s.recent = append(s.recent[:0], s.recent[len(s.recent)-s.limit:]...)
	}
	s.mu.Unlock()
	s.Refresh()
}

// Status returns the last refreshed status and when it was taken.
func (s *StatusStore) Status() (coordinator.Status, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.updated
}

// Recent returns the retained events, oldest first.
func (s *StatusStore) Recent() []EventSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]EventSummary(nil), s.recent...)
}

// Counts returns the number of events seen per kind.
func (s *StatusStore) Counts() map[coordinator.EventKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[coordinator.EventKind]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}
