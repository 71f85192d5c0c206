package extractor

import (
	"context"
	"sync"
	"time"

	"github.com/pudingtabi/sequor/pkg/workflow"
)

// Filter narrows which events a read returns.
type Filter struct {
	// Since keeps only events at or after this time.
	Since *time.Time

	// SessionIDs keeps only events from these sessions.
	SessionIDs []string
}

func (f Filter) matches(e workflow.Event) bool {
	if f.Since != nil && e.Timestamp.Before(*f.Since) {
		return false
	}
	if len(f.SessionIDs) > 0 {
		found := false
		for _, id := range f.SessionIDs {
			if e.SessionID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// EventStore is the append-only log the extractor mines. Reads operate on
// a snapshot and are never blocked by concurrent appends.
type EventStore interface {
	Append(ctx context.Context, events []workflow.Event) error
	Events(ctx context.Context, filter Filter) ([]workflow.Event, error)
}

// InMemoryEventStore keeps the whole log in a slice. Suitable for tests
// and short-lived processes.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []workflow.Event
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{}
}

func (s *InMemoryEventStore) Append(ctx context.Context, events []workflow.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *InMemoryEventStore) Events(ctx context.Context, filter Filter) ([]workflow.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]workflow.Event, 0, len(s.events))
	for _, e := range s.events {
		if filter.matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

var _ EventStore = (*InMemoryEventStore)(nil)
