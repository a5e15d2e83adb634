// Package assistant defines the conversation backend contract: thread
// creation, message appends, run lifecycle and tool output submission. The
// orchestrator drives this interface without knowing which provider sits
// behind it; sub-packages supply the OpenAI Assistants and Anthropic Messages
// implementations.
package assistant

import (
	"context"

	"github.com/hupe1980/calagent/core"
)

// RunStatus names the lifecycle position of a backend run.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusExpired        RunStatus = "expired"
)

// Terminal reports whether the status ends the run. RequiresAction is not
// terminal: the run resumes once tool outputs are submitted.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired:
		return true
	default:
		return false
	}
}

// Run is a provider-neutral snapshot of one backend run.
type Run struct {
	ID       string
	ThreadID string
	Status   RunStatus

	// ToolCalls holds the batch of pending tool calls when Status is
	// RequiresAction. Order follows the model's emission order.
	ToolCalls []core.ToolCallRequest

	// FailureReason carries the provider's diagnostic when Status is Failed
	// or Expired.
	FailureReason string
}

// Backend is the conversation provider driven by the orchestrator.
//
// Contract:
//   - CreateThread issues a new durable conversation token
//   - AddMessage appends user text to a thread outside any active run
//   - StartRun begins assistant processing of the thread's pending messages
//   - GetRun polls the run snapshot until a terminal or requires-action state
//   - SubmitToolOutputs answers a requires-action run with the complete batch
//     of results, well-formed and failed alike, in a single submission
//   - FinalReply reads the latest assistant text after a completed run
type Backend interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
	StartRun(ctx context.Context, threadID string) (*Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, results []core.ToolResult) (*Run, error)
	FinalReply(ctx context.Context, threadID string) (string, error)
}
