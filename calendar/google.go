package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/hupe1980/calagent/schedule"
)

// GoogleOptions configure the Google Calendar executor.
type GoogleOptions struct {
	// CalendarID selects the target calendar ("primary" by default).
	CalendarID string
	// TokenSource supplies pre-established OAuth2 credentials. Credential
	// acquisition is out of scope here.
	TokenSource oauth2.TokenSource
	// SlotStep is the increment used when scanning for free slots.
	SlotStep time.Duration
}

// GoogleExecutor implements Executor against the Google Calendar API.
type GoogleExecutor struct {
	svc  *gcal.Service
	opts GoogleOptions
}

var _ Executor = (*GoogleExecutor)(nil)

// NewGoogleExecutor creates an executor backed by the Google Calendar API.
func NewGoogleExecutor(ctx context.Context, optFns ...func(o *GoogleOptions)) (*GoogleExecutor, error) {
	opts := GoogleOptions{
		CalendarID: "primary",
		SlotStep:   15 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.ClientOption
	if opts.TokenSource != nil {
		clientOpts = append(clientOpts, option.WithTokenSource(opts.TokenSource))
	}

	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	return &GoogleExecutor{svc: svc, opts: opts}, nil
}

// NewGoogleExecutorFromService creates an executor from an existing service.
// Intended for tests and callers that manage the HTTP client themselves.
func NewGoogleExecutorFromService(svc *gcal.Service, optFns ...func(o *GoogleOptions)) *GoogleExecutor {
	opts := GoogleOptions{
		CalendarID: "primary",
		SlotStep:   15 * time.Minute,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GoogleExecutor{svc: svc, opts: opts}
}

// CreateEvent inserts the canonical event into the configured calendar.
func (g *GoogleExecutor) CreateEvent(ctx context.Context, ev *schedule.Event) (string, error) {
	created, err := g.svc.Events.Insert(g.opts.CalendarID, toGoogleEvent(ev)).Context(ctx).Do()
	if err != nil {
		return "", &WriteError{Op: "create", Err: err}
	}
	return created.Id, nil
}

// ListEvents lists events in the configured calendar within the range.
func (g *GoogleExecutor) ListEvents(ctx context.Context, r TimeRange) ([]EventSummary, error) {
	events, err := g.svc.Events.List(g.opts.CalendarID).
		TimeMin(r.Start.Format(time.RFC3339)).
		TimeMax(r.End.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, &ReadError{Op: "list", Err: err}
	}

	summaries := make([]EventSummary, 0, len(events.Items))
	for _, event := range events.Items {
		summaries = append(summaries, toEventSummary(event))
	}
	return summaries, nil
}

// FindFreeSlot queries freebusy data and returns the earliest gap of the
// requested duration, or nil when the range is fully booked.
func (g *GoogleExecutor) FindFreeSlot(ctx context.Context, r TimeRange, duration time.Duration) (*TimeSlot, error) {
	query := &gcal.FreeBusyRequest{
		TimeMin: r.Start.Format(time.RFC3339),
		TimeMax: r.End.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: g.opts.CalendarID}},
	}

	result, err := g.svc.Freebusy.Query(query).Context(ctx).Do()
	if err != nil {
		return nil, &ReadError{Op: "freebusy", Err: err}
	}

	var busy []TimeRange
	for _, cal := range result.Calendars {
		for _, b := range cal.Busy {
			start, err := time.Parse(time.RFC3339, b.Start)
			if err != nil {
				continue
			}
			end, err := time.Parse(time.RFC3339, b.End)
			if err != nil {
				continue
			}
			busy = append(busy, TimeRange{Start: start, End: end})
		}
	}

	return firstFreeSlot(r, duration, busy, g.opts.SlotStep), nil
}

// UpdateEvent patches an existing event with the non-zero fields of ev.
func (g *GoogleExecutor) UpdateEvent(ctx context.Context, eventID string, ev *schedule.Event) error {
	existing, err := g.svc.Events.Get(g.opts.CalendarID, eventID).Context(ctx).Do()
	if err != nil {
		return &ReadError{Op: "get", Err: err}
	}

	if ev.Title != "" {
		existing.Summary = ev.Title
	}
	if ev.Location != "" {
		existing.Location = ev.Location
	}
	if ev.Description != "" {
		existing.Description = ev.Description
	}
	if !ev.Start.IsZero() {
		updated := toGoogleEvent(ev)
		existing.Start = updated.Start
		existing.End = updated.End
	}
	if len(ev.Attendees) > 0 {
		existing.Attendees = toGoogleAttendees(ev.Attendees)
	}

	if _, err := g.svc.Events.Update(g.opts.CalendarID, eventID, existing).Context(ctx).Do(); err != nil {
		return &WriteError{Op: "update", Err: err}
	}
	return nil
}

// CancelEvent deletes an event from the configured calendar.
func (g *GoogleExecutor) CancelEvent(ctx context.Context, eventID string) error {
	if err := g.svc.Events.Delete(g.opts.CalendarID, eventID).Context(ctx).Do(); err != nil {
		return &WriteError{Op: "cancel", Err: err}
	}
	return nil
}

// toGoogleEvent maps a canonical event to the API shape. All-day events use
// Date bounds, timed events use DateTime plus the resolved zone.
func toGoogleEvent(ev *schedule.Event) *gcal.Event {
	event := &gcal.Event{
		Summary:     ev.Title,
		Location:    ev.Location,
		Description: ev.Description,
		Attendees:   toGoogleAttendees(ev.Attendees),
	}

	if ev.AllDay {
		event.Start = &gcal.EventDateTime{Date: ev.Start.Format("2006-01-02")}
		event.End = &gcal.EventDateTime{Date: ev.End.Format("2006-01-02")}
	} else {
		event.Start = &gcal.EventDateTime{
			DateTime: ev.Start.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		}
		event.End = &gcal.EventDateTime{
			DateTime: ev.End.Format(time.RFC3339),
			TimeZone: ev.Timezone,
		}
	}

	return event
}

func toGoogleAttendees(emails []string) []*gcal.EventAttendee {
	if len(emails) == 0 {
		return nil
	}
	attendees := make([]*gcal.EventAttendee, len(emails))
	for i, email := range emails {
		attendees[i] = &gcal.EventAttendee{Email: email}
	}
	return attendees
}

// toEventSummary converts a Google Calendar event to an EventSummary.
func toEventSummary(event *gcal.Event) EventSummary {
	summary := EventSummary{
		ID:       event.Id,
		Title:    event.Summary,
		Location: event.Location,
		Status:   event.Status,
	}

	if event.Start != nil {
		summary.Start = parseEventTime(event.Start)
	}
	if event.End != nil {
		summary.End = parseEventTime(event.End)
	}
	for _, att := range event.Attendees {
		summary.Attendees = append(summary.Attendees, att.Email)
	}

	return summary
}

func parseEventTime(edt *gcal.EventDateTime) time.Time {
	if edt.DateTime != "" {
		if t, err := time.Parse(time.RFC3339, edt.DateTime); err == nil {
			return t
		}
	}
	if edt.Date != "" {
		if t, err := time.Parse("2006-01-02", edt.Date); err == nil {
			return t
		}
	}
	return time.Time{}
}

// firstFreeSlot scans the range in step increments and returns the earliest
// interval of the given duration that overlaps no busy period.
func firstFreeSlot(r TimeRange, duration time.Duration, busy []TimeRange, step time.Duration) *TimeSlot {
	if step <= 0 {
		step = 15 * time.Minute
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	current := r.Start
	for !current.Add(duration).After(r.End) {
		slotEnd := current.Add(duration)
		free := true
		for _, b := range busy {
			if current.Before(b.End) && slotEnd.After(b.Start) {
				free = false
				// Skip to the end of this busy period.
				if b.End.After(current) {
					current = b.End
				}
				break
			}
		}
		if free {
			return &TimeSlot{Start: current, End: slotEnd}
		}
		if remainder := current.Sub(r.Start) % step; remainder != 0 {
			current = current.Add(step - remainder)
		}
	}
	return nil
}
