// Package calendar exposes the calendar action executor: a small set of
// named operations (create, list, free-slot search, update/cancel) against a
// calendar backend, plus the tool bindings that make those operations
// callable by the assistant. Retry and backoff for transient backend
// failures belong to executor implementations, not their callers.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/calagent/schedule"
)

// TimeRange bounds a query window.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// EventSummary is a simplified calendar event for listing.
type EventSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Location  string    `json:"location,omitempty"`
	Attendees []string  `json:"attendees,omitempty"`
	Status    string    `json:"status,omitempty"`
}

// TimeSlot is a free interval large enough for a requested duration.
type TimeSlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Executor is the calendar action executor consumed by the orchestrator.
// All calls are synchronous; implementations own their retry policy.
type Executor interface {
	// CreateEvent inserts a canonical event and returns the created event id.
	// Fails with *WriteError on backend failure.
	CreateEvent(ctx context.Context, ev *schedule.Event) (string, error)

	// ListEvents returns the events within the range in start order.
	// Fails with *ReadError on backend failure.
	ListEvents(ctx context.Context, r TimeRange) ([]EventSummary, error)

	// FindFreeSlot returns the earliest slot of the given duration inside the
	// range, or nil when the range has no opening.
	FindFreeSlot(ctx context.Context, r TimeRange, duration time.Duration) (*TimeSlot, error)

	// UpdateEvent applies the non-zero fields of ev to an existing event.
	UpdateEvent(ctx context.Context, eventID string, ev *schedule.Event) error

	// CancelEvent removes an event.
	CancelEvent(ctx context.Context, eventID string) error
}

// WriteError reports a calendar backend failure during a mutating operation.
type WriteError struct {
	Op  string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("calendar write (%s): %v", e.Op, e.Err) }

// Unwrap exposes the underlying backend error.
func (e *WriteError) Unwrap() error { return e.Err }

// ReadError reports a calendar backend failure during a read operation.
type ReadError struct {
	Op  string
	Err error
}

func (e *ReadError) Error() string { return fmt.Sprintf("calendar read (%s): %v", e.Op, e.Err) }

// Unwrap exposes the underlying backend error.
func (e *ReadError) Unwrap() error { return e.Err }
