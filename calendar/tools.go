package calendar

import (
	"fmt"
	"time"

	"github.com/hupe1980/calagent/schedule"
	"github.com/hupe1980/calagent/tool"
)

// Tool error codes surfaced to the dispatcher alongside the generic ones.
const (
	CodeCalendarReadError  = "CALENDAR_READ_ERROR"
	CodeCalendarWriteError = "CALENDAR_WRITE_ERROR"
)

// Operation names exposed to the assistant.
const (
	OpCreateEvent         = "create_event"
	OpListEvents          = "list_events"
	OpFindFreeSlot        = "find_free_slot"
	OpUpdateOrCancelEvent = "update_or_cancel_event"
)

// NewTools binds the executor's operations to assistant-callable tools.
// create_event and update_or_cancel_event route their payloads through the
// normalizer; the read operations validate primitive arguments only.
func NewTools(exec Executor, normalizer *schedule.Normalizer) []tool.Tool {
	return []tool.Tool{
		newCreateEventTool(exec, normalizer),
		newListEventsTool(exec, normalizer),
		newFindFreeSlotTool(exec, normalizer),
		newUpdateOrCancelEventTool(exec, normalizer),
	}
}

func newCreateEventTool(exec Executor, normalizer *schedule.Normalizer) tool.Tool {
	// Presence of title and start is enforced by the normalizer, not the
	// schema, so payloads using the alias spellings below still reach it.
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":           map[string]any{"type": "string", "description": "Event title"},
			"start":           map[string]any{"type": "string", "description": "Start in ISO 8601 format (YYYY-MM-DDTHH:MM:SS); date only for all-day events"},
			"end":             map[string]any{"type": "string", "description": "End in ISO 8601 format; omit to default to one hour after start"},
			"timezone":        map[string]any{"type": "string", "description": "IANA timezone name; omit to use the user's configured zone"},
			"attendees":       map[string]any{"type": "string", "description": "Comma separated attendee email addresses"},
			"location":        map[string]any{"type": "string", "description": "Event location"},
			"description":     map[string]any{"type": "string", "description": "Event description"},
			"event_summary":   map[string]any{"type": "string", "description": "Alias for title"},
			"start_time":      map[string]any{"type": "string", "description": "Alias for start"},
			"end_time":        map[string]any{"type": "string", "description": "Alias for end"},
			"start_time_zone": map[string]any{"type": "string", "description": "Alias for timezone"},
		},
	}

	return tool.NewFunctionTool(
		OpCreateEvent,
		"Add an event to the user's calendar",
		params,
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			ev, err := normalizer.Normalize(args)
			if err != nil {
				return nil, err
			}
			id, err := exec.CreateEvent(cc.Context(), ev)
			if err != nil {
				return nil, tool.NewToolError(OpCreateEvent, err.Error(), CodeCalendarWriteError)
			}
			return map[string]any{
				"event_id": id,
				"title":    ev.Title,
				"start":    ev.Start.Format(time.RFC3339),
				"end":      ev.End.Format(time.RFC3339),
				"timezone": ev.Timezone,
			}, nil
		})
}

func newListEventsTool(exec Executor, normalizer *schedule.Normalizer) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time_min":    map[string]any{"type": "string", "description": "Range start in ISO 8601 format"},
			"time_max":    map[string]any{"type": "string", "description": "Range end in ISO 8601 format"},
			"max_results": map[string]any{"type": "integer", "description": "Maximum number of events to return"},
		},
		"required": []string{"time_min", "time_max"},
	}

	return tool.NewFunctionTool(
		OpListEvents,
		"List past and upcoming events from the user's calendar",
		params,
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			r, err := parseRange(normalizer, args)
			if err != nil {
				return nil, err
			}
			events, err := exec.ListEvents(cc.Context(), r)
			if err != nil {
				return nil, tool.NewToolError(OpListEvents, err.Error(), CodeCalendarReadError)
			}
			if max, ok := intArg(args, "max_results"); ok && max > 0 && max < len(events) {
				events = events[:max]
			}
			return map[string]any{"events": events, "count": len(events)}, nil
		})
}

func newFindFreeSlotTool(exec Executor, normalizer *schedule.Normalizer) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"time_min":         map[string]any{"type": "string", "description": "Range start in ISO 8601 format"},
			"time_max":         map[string]any{"type": "string", "description": "Range end in ISO 8601 format"},
			"duration_minutes": map[string]any{"type": "integer", "description": "Required slot length in minutes"},
		},
		"required": []string{"time_min", "time_max", "duration_minutes"},
	}

	return tool.NewFunctionTool(
		OpFindFreeSlot,
		"Find the earliest free time slot of a given duration in the user's calendar",
		params,
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			r, err := parseRange(normalizer, args)
			if err != nil {
				return nil, err
			}
			minutes, ok := intArg(args, "duration_minutes")
			if !ok || minutes <= 0 {
				return nil, tool.NewToolError(OpFindFreeSlot, "duration_minutes must be a positive integer", tool.CodeValidationError)
			}
			slot, err := exec.FindFreeSlot(cc.Context(), r, time.Duration(minutes)*time.Minute)
			if err != nil {
				return nil, tool.NewToolError(OpFindFreeSlot, err.Error(), CodeCalendarReadError)
			}
			if slot == nil {
				return map[string]any{"found": false}, nil
			}
			return map[string]any{"found": true, "slot": slot}, nil
		})
}

func newUpdateOrCancelEventTool(exec Executor, normalizer *schedule.Normalizer) tool.Tool {
	params := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"event_id": map[string]any{"type": "string", "description": "Identifier of the event to modify"},
			"cancel":   map[string]any{"type": "boolean", "description": "Set to true to cancel the event instead of updating it"},
			"title":    map[string]any{"type": "string", "description": "New event title"},
			"start":    map[string]any{"type": "string", "description": "New start in ISO 8601 format"},
			"end":      map[string]any{"type": "string", "description": "New end in ISO 8601 format"},
			"timezone": map[string]any{"type": "string", "description": "IANA timezone name"},
		},
		"required": []string{"event_id"},
	}

	return tool.NewFunctionTool(
		OpUpdateOrCancelEvent,
		"Update or cancel an event in the user's calendar",
		params,
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			eventID, _ := args["event_id"].(string)
			if eventID == "" {
				return nil, tool.NewToolError(OpUpdateOrCancelEvent, "event_id must not be empty", tool.CodeValidationError)
			}

			if cancel, _ := args["cancel"].(bool); cancel {
				if err := exec.CancelEvent(cc.Context(), eventID); err != nil {
					return nil, tool.NewToolError(OpUpdateOrCancelEvent, err.Error(), CodeCalendarWriteError)
				}
				return map[string]any{"event_id": eventID, "status": "cancelled"}, nil
			}

			ev := &schedule.Event{}
			if title, _ := args["title"].(string); title != "" {
				ev.Title = title
			}
			if startRaw, _ := args["start"].(string); startRaw != "" {
				endRaw, _ := args["end"].(string)
				zone, _ := args["timezone"].(string)
				span, err := normalizer.NormalizeSpan(startRaw, endRaw, zone)
				if err != nil {
					return nil, err
				}
				ev.Start, ev.End, ev.Timezone, ev.AllDay = span.Start, span.End, span.Timezone, span.AllDay
			}
			if err := exec.UpdateEvent(cc.Context(), eventID, ev); err != nil {
				return nil, tool.NewToolError(OpUpdateOrCancelEvent, err.Error(), CodeCalendarWriteError)
			}
			return map[string]any{"event_id": eventID, "status": "updated"}, nil
		})
}

// parseRange resolves the time_min/time_max pair shared by the read tools.
func parseRange(normalizer *schedule.Normalizer, args map[string]any) (TimeRange, error) {
	minRaw, _ := args["time_min"].(string)
	maxRaw, _ := args["time_max"].(string)

	start, err := normalizer.ResolveInstant(minRaw)
	if err != nil {
		return TimeRange{}, tool.NewToolError("time_range", fmt.Sprintf("unparseable time_min %q", minRaw), tool.CodeValidationError)
	}
	end, err := normalizer.ResolveInstant(maxRaw)
	if err != nil {
		return TimeRange{}, tool.NewToolError("time_range", fmt.Sprintf("unparseable time_max %q", maxRaw), tool.CodeValidationError)
	}
	if !end.After(start) {
		return TimeRange{}, tool.NewToolError("time_range", "time_max must be after time_min", tool.CodeValidationError)
	}
	return TimeRange{Start: start, End: end}, nil
}

// intArg reads an integer argument tolerating the float64 produced by JSON
// decoding.
func intArg(args map[string]any, key string) (int, bool) {
	switch v := args[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
