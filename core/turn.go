package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a Turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one message exchange within a Session. Turns are immutable once
// appended; the append order defines conversational causality.
type Turn struct {
	ID          string            `json:"id"`
	Role        string            `json:"role"`
	Text        string            `json:"text,omitempty"`
	ToolCalls   []ToolCallRequest `json:"tool_calls,omitempty"`
	ToolResults []ToolResult      `json:"tool_results,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewTurn creates a bare turn authored by role.
func NewTurn(role string) Turn {
	return Turn{ID: NewID(), Role: role, Timestamp: time.Now().UTC()}
}

// NewUserTurn creates a user-authored text turn.
func NewUserTurn(text string) Turn {
	t := NewTurn(RoleUser)
	t.Text = text
	return t
}

// NewAssistantTurn creates an assistant-authored text turn.
func NewAssistantTurn(text string) Turn {
	t := NewTurn(RoleAssistant)
	t.Text = text
	return t
}

// NewToolCallTurn records the assistant requesting execution of named operations.
func NewToolCallTurn(calls []ToolCallRequest) Turn {
	t := NewTurn(RoleAssistant)
	t.ToolCalls = calls
	return t
}

// NewToolResultTurn records a batch of tool outcomes fed back into the session.
func NewToolResultTurn(results []ToolResult) Turn {
	t := NewTurn(RoleTool)
	t.ToolResults = results
	return t
}

// NewID generates a new unique identifier for turns and synthetic
// backend objects.
func NewID() string { return uuid.NewString() }
