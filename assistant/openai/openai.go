// Package openai implements the assistant.Backend contract on the OpenAI
// Assistants API. Threads, runs and tool output submission map one to one
// onto the provider's beta endpoints; the assistant itself is retrieved by id
// or created on first use with the configured tool declarations.
package openai

import (
	"context"
	"fmt"
	"sync"

	"github.com/openai/openai-go"

	"github.com/hupe1980/calagent/assistant"
	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/tool"
)

// Options configure the OpenAI backend.
type Options struct {
	// Model is the chat model backing the assistant.
	Model openai.ChatModel
	// AssistantID reuses an existing assistant instead of creating one.
	AssistantID string
	// AssistantName names a created assistant; an existing assistant with
	// this name is reused before a new one is created.
	AssistantName string
	// Instructions is the system prompt of a created assistant.
	Instructions string
}

// Backend drives the OpenAI Assistants API.
type Backend struct {
	client      *openai.Client
	opts        Options
	defs        []tool.Definition
	mu          sync.Mutex
	assistantID string
}

var _ assistant.Backend = (*Backend)(nil)

// New creates a backend using the default client (API key from environment).
func New(defs []tool.Definition, optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, defs, optFns...)
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *openai.Client, defs []tool.Definition, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:         openai.ChatModelGPT4oMini,
		AssistantName: "Scheduling Assistant",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts, defs: defs, assistantID: opts.AssistantID}
}

// CreateThread issues a fresh conversation thread.
func (b *Backend) CreateThread(ctx context.Context) (string, error) {
	thread, err := b.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", fmt.Errorf("openai create thread: %w", err)
	}
	return thread.ID, nil
}

// AddMessage appends user text to the thread.
func (b *Backend) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := b.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return fmt.Errorf("openai add message: %w", err)
	}
	return nil
}

// StartRun begins assistant processing of the thread's pending messages.
func (b *Backend) StartRun(ctx context.Context, threadID string) (*assistant.Run, error) {
	assistantID, err := b.ensureAssistant(ctx)
	if err != nil {
		return nil, err
	}

	run, err := b.client.Beta.Threads.Runs.New(ctx, threadID, openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	})
	if err != nil {
		return nil, fmt.Errorf("openai start run: %w", err)
	}
	return toRun(threadID, run), nil
}

// GetRun polls the current run snapshot.
func (b *Backend) GetRun(ctx context.Context, threadID, runID string) (*assistant.Run, error) {
	run, err := b.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("openai get run: %w", err)
	}
	return toRun(threadID, run), nil
}

// SubmitToolOutputs answers a requires-action run with the full result batch.
func (b *Backend) SubmitToolOutputs(ctx context.Context, threadID, runID string, results []core.ToolResult) (*assistant.Run, error) {
	outputs := make([]openai.BetaThreadRunSubmitToolOutputsParamsToolOutput, len(results))
	for i, res := range results {
		outputs[i] = openai.BetaThreadRunSubmitToolOutputsParamsToolOutput{
			ToolCallID: openai.String(res.CallID),
			Output:     openai.String(res.Payload()),
		}
	}

	run, err := b.client.Beta.Threads.Runs.SubmitToolOutputs(ctx, threadID, runID, openai.BetaThreadRunSubmitToolOutputsParams{
		ToolOutputs: outputs,
	})
	if err != nil {
		return nil, fmt.Errorf("openai submit tool outputs: %w", err)
	}
	return toRun(threadID, run), nil
}

// FinalReply returns the most recent assistant message text on the thread.
func (b *Backend) FinalReply(ctx context.Context, threadID string) (string, error) {
	page, err := b.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(20),
	})
	if err != nil {
		return "", fmt.Errorf("openai list messages: %w", err)
	}

	for _, msg := range page.Data {
		if msg.Role != openai.MessageRoleAssistant {
			continue
		}
		for _, part := range msg.Content {
			if part.Text.Value != "" {
				return part.Text.Value, nil
			}
		}
	}
	return "", nil
}

// ensureAssistant resolves the assistant id once: configured id first, then
// name lookup, then creation with the tool declarations.
func (b *Backend) ensureAssistant(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.assistantID != "" {
		return b.assistantID, nil
	}

	page, err := b.client.Beta.Assistants.List(ctx, openai.BetaAssistantListParams{
		Limit: openai.Int(100),
	})
	if err != nil {
		return "", fmt.Errorf("openai list assistants: %w", err)
	}
	for _, a := range page.Data {
		if a.Name == b.opts.AssistantName {
			b.assistantID = a.ID
			return b.assistantID, nil
		}
	}

	created, err := b.client.Beta.Assistants.New(ctx, openai.BetaAssistantNewParams{
		Model:        b.opts.Model,
		Name:         openai.String(b.opts.AssistantName),
		Instructions: openai.String(b.opts.Instructions),
		Tools:        toAssistantTools(b.defs),
	})
	if err != nil {
		return "", fmt.Errorf("openai create assistant: %w", err)
	}
	b.assistantID = created.ID
	return b.assistantID, nil
}

// toAssistantTools converts tool declarations into the API's function tools.
func toAssistantTools(defs []tool.Definition) []openai.AssistantToolUnionParam {
	tools := make([]openai.AssistantToolUnionParam, len(defs))
	for i, def := range defs {
		tools[i] = openai.AssistantToolUnionParam{
			OfFunction: &openai.FunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        def.Name,
					Description: openai.String(def.Description),
					Parameters:  def.Parameters,
				},
			},
		}
	}
	return tools
}

// toRun maps the provider run snapshot into the neutral shape, lifting the
// pending tool call batch out of the required action payload.
func toRun(threadID string, run *openai.Run) *assistant.Run {
	out := &assistant.Run{
		ID:       run.ID,
		ThreadID: threadID,
		Status:   toStatus(run.Status),
	}

	if run.Status == openai.RunStatusRequiresAction {
		calls := run.RequiredAction.SubmitToolOutputs.ToolCalls
		out.ToolCalls = make([]core.ToolCallRequest, len(calls))
		for i, call := range calls {
			out.ToolCalls[i] = core.ToolCallRequest{
				ID:        call.ID,
				Name:      call.Function.Name,
				Arguments: call.Function.Arguments,
			}
		}
	}

	if run.LastError.Message != "" {
		out.FailureReason = fmt.Sprintf("%s: %s", run.LastError.Code, run.LastError.Message)
	}

	return out
}

func toStatus(status openai.RunStatus) assistant.RunStatus {
	switch status {
	case openai.RunStatusQueued:
		return assistant.RunStatusQueued
	case openai.RunStatusInProgress, openai.RunStatusCancelling:
		return assistant.RunStatusInProgress
	case openai.RunStatusRequiresAction:
		return assistant.RunStatusRequiresAction
	case openai.RunStatusCompleted:
		return assistant.RunStatusCompleted
	case openai.RunStatusCancelled:
		return assistant.RunStatusCancelled
	case openai.RunStatusExpired:
		return assistant.RunStatusExpired
	default:
		return assistant.RunStatusFailed
	}
}
