// Package schedule converts loosely structured, model-proposed event
// arguments into validated, timezone-resolved calendar events. The assistant
// performs the natural-language-to-date reasoning; this package only
// validates and canonicalizes the already-extracted structured fields.
package schedule

import "time"

// Event is the canonical, fully validated representation of a calendar
// event, independent of how it was expressed in natural language.
//
// Invariant: Start and End always carry an explicit, resolved timezone,
// never a naive local time, and End is strictly after Start.
type Event struct {
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Timezone    string    `json:"timezone"` // IANA zone name
	Attendees   []string  `json:"attendees,omitempty"`
	AllDay      bool      `json:"all_day,omitempty"`
	Location    string    `json:"location,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Duration returns the event length.
func (e *Event) Duration() time.Duration { return e.End.Sub(e.Start) }
