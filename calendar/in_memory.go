package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/schedule"
)

// InMemoryExecutor is a volatile Executor implementation storing events in a
// process local map. It is safe for concurrent access and best suited for
// tests and local development without calendar credentials.
type InMemoryExecutor struct {
	mu     sync.RWMutex
	events map[string]EventSummary
}

var _ Executor = (*InMemoryExecutor)(nil)

// NewInMemoryExecutor constructs an empty in-memory executor.
func NewInMemoryExecutor() *InMemoryExecutor {
	return &InMemoryExecutor{events: make(map[string]EventSummary)}
}

// CreateEvent stores the event and returns a generated id.
func (e *InMemoryExecutor) CreateEvent(_ context.Context, ev *schedule.Event) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := core.NewID()
	e.events[id] = EventSummary{
		ID:        id,
		Title:     ev.Title,
		Start:     ev.Start,
		End:       ev.End,
		Location:  ev.Location,
		Attendees: ev.Attendees,
		Status:    "confirmed",
	}
	return id, nil
}

// ListEvents returns stored events overlapping the range in start order.
func (e *InMemoryExecutor) ListEvents(_ context.Context, r TimeRange) ([]EventSummary, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var out []EventSummary
	for _, ev := range e.events {
		if ev.Start.Before(r.End) && ev.End.After(r.Start) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// FindFreeSlot scans stored events for the earliest gap of the duration.
func (e *InMemoryExecutor) FindFreeSlot(ctx context.Context, r TimeRange, duration time.Duration) (*TimeSlot, error) {
	events, err := e.ListEvents(ctx, r)
	if err != nil {
		return nil, err
	}
	busy := make([]TimeRange, len(events))
	for i, ev := range events {
		busy[i] = TimeRange{Start: ev.Start, End: ev.End}
	}
	return firstFreeSlot(r, duration, busy, 15*time.Minute), nil
}

// UpdateEvent applies the non-zero fields of ev to a stored event.
func (e *InMemoryExecutor) UpdateEvent(_ context.Context, eventID string, ev *schedule.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.events[eventID]
	if !ok {
		return &WriteError{Op: "update", Err: fmt.Errorf("event %s not found", eventID)}
	}
	if ev.Title != "" {
		existing.Title = ev.Title
	}
	if ev.Location != "" {
		existing.Location = ev.Location
	}
	if !ev.Start.IsZero() {
		existing.Start = ev.Start
		existing.End = ev.End
	}
	if len(ev.Attendees) > 0 {
		existing.Attendees = ev.Attendees
	}
	e.events[eventID] = existing
	return nil
}

// CancelEvent removes a stored event.
func (e *InMemoryExecutor) CancelEvent(_ context.Context, eventID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.events[eventID]; !ok {
		return &WriteError{Op: "cancel", Err: fmt.Errorf("event %s not found", eventID)}
	}
	delete(e.events, eventID)
	return nil
}
