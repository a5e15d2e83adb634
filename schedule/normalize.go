package schedule

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/calagent/internal/util"
)

// ValidationError reports which proposed event field was rejected and why.
type ValidationError = util.ValidationError

// DefaultDuration is applied when the payload carries a start but no end.
const DefaultDuration = 60 * time.Minute

// NormalizerOptions configure a Normalizer.
type NormalizerOptions struct {
	// DefaultTimezone is the user's configured IANA zone, applied when the
	// payload carries no timezone. Never UTC-by-assumption.
	DefaultTimezone string
	// DefaultDuration derives the end instant when the payload has none.
	DefaultDuration time.Duration
}

// Normalizer validates and coerces assistant-proposed event arguments into
// canonical events. Safe for concurrent use.
type Normalizer struct {
	opts NormalizerOptions
}

// NewNormalizer constructs a Normalizer for the given default zone.
func NewNormalizer(defaultTimezone string, optFns ...func(o *NormalizerOptions)) *Normalizer {
	opts := NormalizerOptions{
		DefaultTimezone: defaultTimezone,
		DefaultDuration: DefaultDuration,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Normalizer{opts: opts}
}

// Normalize converts raw model-proposed arguments into a canonical Event.
// It fails with *ValidationError on a missing title, an unparseable start or
// end expression, an end not strictly after start, or a malformed attendee
// address.
func (n *Normalizer) Normalize(rawArgs map[string]any) (*Event, error) {
	title := strings.TrimSpace(stringArg(rawArgs, "title", "summary", "event_summary"))
	if title == "" {
		return nil, util.NewValidationError("title", "title must not be empty")
	}

	startRaw := stringArg(rawArgs, "start", "start_time")
	if strings.TrimSpace(startRaw) == "" {
		return nil, util.NewValidationError("start", "start is required")
	}

	span, err := n.NormalizeSpan(
		startRaw,
		stringArg(rawArgs, "end", "end_time"),
		stringArg(rawArgs, "timezone", "time_zone", "start_time_zone"),
	)
	if err != nil {
		return nil, err
	}

	// An explicit all_day flag snaps timed bounds to zone-local midnight
	// boundaries; date-only payloads were already snapped during span
	// resolution.
	if allDay, _ := rawArgs["all_day"].(bool); allDay && !span.AllDay {
		loc := span.Start.Location()
		span.AllDay = true
		span.Start = midnight(span.Start, loc)
		span.End = midnight(span.End, loc)
		if !span.End.After(span.Start) {
			span.End = span.Start.AddDate(0, 0, 1)
		}
	}

	attendees, err := normalizeAttendees(rawArgs["attendees"])
	if err != nil {
		return nil, err
	}

	return &Event{
		Title:       title,
		Start:       span.Start,
		End:         span.End,
		Timezone:    span.Timezone,
		Attendees:   attendees,
		AllDay:      span.AllDay,
		Location:    strings.TrimSpace(stringArg(rawArgs, "location", "event_location")),
		Description: strings.TrimSpace(stringArg(rawArgs, "description", "event_description")),
	}, nil
}

// Normalize is a convenience wrapper using the package defaults.
func Normalize(rawArgs map[string]any, defaultTimezone string) (*Event, error) {
	return NewNormalizer(defaultTimezone).Normalize(rawArgs)
}

// Span is a resolved start/end pair with its zone, produced for operations
// (such as partial event updates) that carry times without a full event
// payload.
type Span struct {
	Start    time.Time
	End      time.Time
	Timezone string
	AllDay   bool
}

// NormalizeSpan resolves a start/end/timezone triple with the same rules as
// Normalize: naive expressions in the payload zone or the default zone,
// absent end derived from the default duration, date-only expressions
// snapped to midnight boundaries.
func (n *Normalizer) NormalizeSpan(startRaw, endRaw, zoneName string) (*Span, error) {
	zoneName = strings.TrimSpace(zoneName)
	if zoneName == "" {
		zoneName = n.opts.DefaultTimezone
	}
	loc, err := time.LoadLocation(zoneName)
	if err != nil {
		return nil, util.NewValidationError("timezone", "unknown timezone %q", zoneName)
	}

	start, startDateOnly, err := parseInstant(startRaw, loc)
	if err != nil {
		return nil, util.NewValidationError("start", "unparseable date-time %q", startRaw)
	}

	span := &Span{Timezone: zoneName, Start: start}
	endDateOnly := startDateOnly
	if strings.TrimSpace(endRaw) == "" {
		span.End = start.Add(n.opts.DefaultDuration)
	} else {
		span.End, endDateOnly, err = parseInstant(endRaw, loc)
		if err != nil {
			return nil, util.NewValidationError("end", "unparseable date-time %q", endRaw)
		}
	}

	if startDateOnly && endDateOnly {
		span.AllDay = true
		span.Start = midnight(span.Start, loc)
		if strings.TrimSpace(endRaw) == "" {
			span.End = span.Start.AddDate(0, 0, 1)
		} else {
			span.End = midnight(span.End, loc)
		}
	}

	if !span.End.After(span.Start) {
		return nil, util.NewValidationError("end", "end %s is not after start %s",
			span.End.Format(time.RFC3339), span.Start.Format(time.RFC3339))
	}

	return span, nil
}

// ResolveInstant parses a single ISO-like date-time expression using the
// normalizer's default zone for naive inputs. Used for primitive time-range
// arguments (list-events, find-free-slot) that bypass full event
// normalization.
func (n *Normalizer) ResolveInstant(raw string) (time.Time, error) {
	loc, err := time.LoadLocation(n.opts.DefaultTimezone)
	if err != nil {
		return time.Time{}, fmt.Errorf("unknown default timezone %q: %w", n.opts.DefaultTimezone, err)
	}
	t, _, err := parseInstant(raw, loc)
	return t, err
}

// stringArg returns the first non-empty string among the aliased keys. The
// model is not consistent about field naming, so common aliases from the
// tool schemas are accepted.
func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// instantLayouts are tried in order. Layouts carrying a zone win over naive
// ones so an explicit offset in the payload is never discarded.
var instantLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

const dateOnlyLayout = "2006-01-02"

// parseInstant parses an ISO-like date-time expression. Naive expressions are
// interpreted in loc. The second return value reports a date-only expression.
func parseInstant(raw string, loc *time.Location) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, false, nil
		}
	}
	if t, err := time.ParseInLocation(dateOnlyLayout, raw, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable instant %q", raw)
}

// midnight snaps t to the zone-local start of its day.
func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

var attendeeSeparators = regexp.MustCompile(`[,;\s]+`)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// normalizeAttendees splits, trims, lowercase-folds and deduplicates the
// attendee field while preserving first-seen order. Accepts a separated
// string or a list of strings.
func normalizeAttendees(raw any) ([]string, error) {
	var candidates []string
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		candidates = attendeeSeparators.Split(v, -1)
	case []string:
		candidates = v
	case []any:
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, util.NewValidationError("attendees", "attendee entries must be strings, got %T", item)
			}
			candidates = append(candidates, s)
		}
	default:
		return nil, util.NewValidationError("attendees", "attendees must be a string or list, got %T", raw)
	}

	seen := make(map[string]struct{}, len(candidates))
	attendees := make([]string, 0, len(candidates))
	for _, c := range candidates {
		addr := strings.ToLower(strings.TrimSpace(c))
		if addr == "" {
			continue
		}
		if !emailPattern.MatchString(addr) {
			return nil, util.NewValidationError("attendees", "malformed attendee address %q", addr)
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		attendees = append(attendees, addr)
	}
	if len(attendees) == 0 {
		return nil, nil
	}
	return attendees, nil
}
