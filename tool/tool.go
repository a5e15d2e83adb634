// Package tool implements the function calling subsystem that lets the
// assistant invoke structured calendar operations with schema validated
// arguments, consistent error handling and metadata for LLM guidance.
package tool

import (
	"context"
	"fmt"

	"github.com/hupe1980/calagent/internal/util"
	"github.com/hupe1980/calagent/logging"
)

// Tool defines the interface for operations the assistant can call.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Define proper JSON schema for parameters
//   - Handle errors gracefully
//   - Be thread-safe; sibling calls within a batch run concurrently
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// It is provided to the LLM to help it decide when to use the tool.
	Description() string

	// Parameters returns a JSON schema describing the expected input format.
	Parameters() map[string]any

	// Call executes the tool with already-decoded arguments. Arguments are
	// validated against the tool's schema before the implementation runs.
	Call(cc *CallContext, args map[string]any) (any, error)
}

// CallContext carries per-invocation metadata into a tool implementation:
// the request context, the correlating call identifier and a logger.
type CallContext struct {
	ctx    context.Context
	callID string
	logger logging.Logger
}

// NewCallContext builds a CallContext for one tool invocation.
func NewCallContext(ctx context.Context, callID string, logger logging.Logger) *CallContext {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &CallContext{ctx: ctx, callID: callID, logger: logger}
}

// Context returns the request context governing the invocation.
func (c *CallContext) Context() context.Context { return c.ctx }

// CallID returns the identifier correlating this execution with the
// originating tool call request.
func (c *CallContext) CallID() string { return c.callID }

// Logger returns the invocation logger.
func (c *CallContext) Logger() logging.Logger { return c.logger }

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes used in ToolError.Code.
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
	CodeUnknownTool     = "UNKNOWN_TOOL"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{Tool: tool, Message: message, Code: code}
}

// Definitions collects the function declarations of a registry in a stable
// shape consumed by assistant backends when exposing tools to the model.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Definitions extracts declarations from a tool registry.
func Definitions(registry map[string]Tool) []Definition {
	defs := make([]Definition, 0, len(registry))
	for _, t := range registry {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
