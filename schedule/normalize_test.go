package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_SyncWithJohn(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title":     "Sync with John",
		"start":     "2025-01-10T10:00",
		"attendees": "john@x.com, John@X.com",
	}, "America/New_York")
	require.NoError(t, err)

	ny, _ := time.LoadLocation("America/New_York")
	assert.Equal(t, "Sync with John", ev.Title)
	assert.Equal(t, "America/New_York", ev.Timezone)
	assert.True(t, ev.Start.Equal(time.Date(2025, 1, 10, 10, 0, 0, 0, ny)))
	assert.Equal(t, 60*time.Minute, ev.Duration())
	assert.Equal(t, []string{"john@x.com"}, ev.Attendees)
	assert.False(t, ev.AllDay)
}

func TestNormalize_ExplicitTimes(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title": "Planning",
		"start": "2025-03-01T09:00:00",
		"end":   "2025-03-01T10:30:00",
	}, "Europe/Berlin")
	require.NoError(t, err)

	berlin, _ := time.LoadLocation("Europe/Berlin")
	assert.True(t, ev.Start.Equal(time.Date(2025, 3, 1, 9, 0, 0, 0, berlin)))
	assert.True(t, ev.End.Equal(time.Date(2025, 3, 1, 10, 30, 0, 0, berlin)))
	assert.Equal(t, "Europe/Berlin", ev.Timezone)
}

func TestNormalize_ExplicitOffsetWins(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title": "Call",
		"start": "2025-03-01T09:00:00+01:00",
	}, "America/New_York")
	require.NoError(t, err)

	// The payload's explicit offset must not be discarded in favor of the
	// default zone.
	_, offset := ev.Start.Zone()
	assert.Equal(t, 3600, offset)
}

func TestNormalize_PayloadTimezoneOverridesDefault(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title":    "Standup",
		"start":    "2025-06-02T09:30",
		"timezone": "Asia/Tokyo",
	}, "America/New_York")
	require.NoError(t, err)

	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	assert.Equal(t, "Asia/Tokyo", ev.Timezone)
	assert.True(t, ev.Start.Equal(time.Date(2025, 6, 2, 9, 30, 0, 0, tokyo)))
}

func TestNormalize_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		args      map[string]any
		wantField string
	}{
		{
			name:      "missing title",
			args:      map[string]any{"start": "2025-01-10T10:00"},
			wantField: "title",
		},
		{
			name:      "blank title",
			args:      map[string]any{"title": "   ", "start": "2025-01-10T10:00"},
			wantField: "title",
		},
		{
			name:      "missing start",
			args:      map[string]any{"title": "Sync"},
			wantField: "start",
		},
		{
			name:      "unparseable start",
			args:      map[string]any{"title": "Sync", "start": "next tuesday"},
			wantField: "start",
		},
		{
			name:      "end before start",
			args:      map[string]any{"title": "Sync", "start": "2025-01-10T10:00", "end": "2025-01-10T09:00"},
			wantField: "end",
		},
		{
			name:      "end equals start",
			args:      map[string]any{"title": "Sync", "start": "2025-01-10T10:00", "end": "2025-01-10T10:00"},
			wantField: "end",
		},
		{
			name:      "unknown timezone",
			args:      map[string]any{"title": "Sync", "start": "2025-01-10T10:00", "timezone": "Mars/Olympus"},
			wantField: "timezone",
		},
		{
			name:      "malformed attendee",
			args:      map[string]any{"title": "Sync", "start": "2025-01-10T10:00", "attendees": "not-an-email"},
			wantField: "attendees",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.args, "UTC")
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)
		})
	}
}

func TestNormalize_DefaultTimezoneApplied(t *testing.T) {
	for _, zone := range []string{"America/New_York", "Europe/Berlin", "Asia/Tokyo"} {
		ev, err := Normalize(map[string]any{
			"title": "Sync",
			"start": "2025-01-10T10:00",
		}, zone)
		require.NoError(t, err)
		assert.Equal(t, zone, ev.Timezone, "zone must come from the configuration, never a hardcoded default")
	}
}

func TestNormalize_AttendeeIdempotence(t *testing.T) {
	first, err := Normalize(map[string]any{
		"title":     "Sync",
		"start":     "2025-01-10T10:00",
		"attendees": "B@x.com, a@x.com; b@x.com",
	}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@x.com", "a@x.com"}, first.Attendees)

	// Round-trip law: normalizing an already-normalized list is a no-op.
	second, err := Normalize(map[string]any{
		"title":     "Sync",
		"start":     "2025-01-10T10:00",
		"attendees": first.Attendees,
	}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, first.Attendees, second.Attendees)
}

func TestNormalize_AttendeeListInput(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title":     "Sync",
		"start":     "2025-01-10T10:00",
		"attendees": []any{"John@X.com", "jane@y.org", "john@x.com"},
	}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, []string{"john@x.com", "jane@y.org"}, ev.Attendees)
}

func TestNormalize_AllDay(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title": "Offsite",
		"start": "2025-01-10",
	}, "America/New_York")
	require.NoError(t, err)

	ny, _ := time.LoadLocation("America/New_York")
	assert.True(t, ev.AllDay)
	assert.True(t, ev.Start.Equal(time.Date(2025, 1, 10, 0, 0, 0, 0, ny)))
	assert.True(t, ev.End.Equal(time.Date(2025, 1, 11, 0, 0, 0, 0, ny)))
}

func TestNormalize_AllDayRange(t *testing.T) {
	ev, err := Normalize(map[string]any{
		"title": "Conference",
		"start": "2025-01-10",
		"end":   "2025-01-12",
	}, "UTC")
	require.NoError(t, err)
	assert.True(t, ev.AllDay)
	assert.Equal(t, 48*time.Hour, ev.Duration())
}

func TestNormalize_OriginalFieldAliases(t *testing.T) {
	// Models sometimes emit event_summary / start_time style field names;
	// those payload shapes still normalize.
	ev, err := Normalize(map[string]any{
		"event_summary":   "Dentist",
		"start_time":      "2025-02-03T14:00:00",
		"end_time":        "2025-02-03T14:30:00",
		"start_time_zone": "Europe/Berlin",
	}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "Dentist", ev.Title)
	assert.Equal(t, "Europe/Berlin", ev.Timezone)
	assert.Equal(t, 30*time.Minute, ev.Duration())
}

func TestNormalizer_CustomDefaultDuration(t *testing.T) {
	n := NewNormalizer("UTC", func(o *NormalizerOptions) {
		o.DefaultDuration = 30 * time.Minute
	})
	ev, err := n.Normalize(map[string]any{
		"title": "Quick chat",
		"start": "2025-01-10T10:00",
	})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, ev.Duration())
}
