// Package core defines the shared data model of the scheduling assistant:
// sessions, turns, tool call requests and tool results. Higher level
// packages (orchestrator, assistant backends, session stores) depend on
// these types; core itself depends on nothing but uuid.
package core
