// Package anthropic implements the assistant.Backend contract on the
// Anthropic Messages API. The provider has no server-side threads or runs, so
// the backend keeps conversation history in process and models each Messages
// call as one synthetic run: a tool_use stop reason becomes a requires-action
// run, tool results are folded back into the history as tool_result blocks.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/calagent/assistant"
	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/tool"
)

// Options configure the Anthropic backend.
type Options struct {
	// Model selects the Claude model.
	Model anthropic.Model
	// MaxTokens bounds each response.
	MaxTokens int64
	// Instructions is the system prompt applied to every run.
	Instructions string
	// APIKey overrides the environment-provided key.
	APIKey string
}

// thread is the locally managed conversation state.
type thread struct {
	messages []anthropic.MessageParam
	runs     map[string]*assistant.Run
	lastText string
}

// Backend drives the Anthropic Messages API with local thread management.
type Backend struct {
	client  *anthropic.Client
	opts    Options
	defs    []tool.Definition
	mu      sync.Mutex
	threads map[string]*thread
}

var _ assistant.Backend = (*Backend)(nil)

// New creates a backend using the official client.
func New(defs []tool.Definition, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Backend{client: &client, opts: opts, defs: defs, threads: make(map[string]*thread)}
}

// NewFromClient creates a backend from an existing client.
func NewFromClient(client *anthropic.Client, defs []tool.Definition, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts, defs: defs, threads: make(map[string]*thread)}
}

// CreateThread allocates a local conversation.
func (b *Backend) CreateThread(_ context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := "thread_" + core.NewID()
	b.threads[id] = &thread{runs: make(map[string]*assistant.Run)}
	return id, nil
}

// AddMessage appends user text to the local history.
func (b *Backend) AddMessage(_ context.Context, threadID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	th, err := b.threadLocked(threadID)
	if err != nil {
		return err
	}
	th.messages = append(th.messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
	return nil
}

// StartRun sends the accumulated history to the model and records the
// resulting synthetic run.
func (b *Backend) StartRun(ctx context.Context, threadID string) (*assistant.Run, error) {
	b.mu.Lock()
	th, err := b.threadLocked(threadID)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	messages := make([]anthropic.MessageParam, len(th.messages))
	copy(messages, th.messages)
	b.mu.Unlock()

	return b.advance(ctx, threadID, messages)
}

// GetRun returns the recorded snapshot. Synthetic runs finish inside StartRun
// or SubmitToolOutputs, so polling observes a settled state immediately.
func (b *Backend) GetRun(_ context.Context, threadID, runID string) (*assistant.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	th, err := b.threadLocked(threadID)
	if err != nil {
		return nil, err
	}
	run, ok := th.runs[runID]
	if !ok {
		return nil, fmt.Errorf("anthropic: unknown run %s on thread %s", runID, threadID)
	}
	return run, nil
}

// SubmitToolOutputs folds the result batch into the history as tool_result
// blocks and resumes the conversation with a follow-up model call.
func (b *Backend) SubmitToolOutputs(ctx context.Context, threadID, runID string, results []core.ToolResult) (*assistant.Run, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, len(results))
	for i, res := range results {
		blocks[i] = anthropic.NewToolResultBlock(res.CallID, res.Payload(), res.IsFailure())
	}

	b.mu.Lock()
	th, err := b.threadLocked(threadID)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if _, ok := th.runs[runID]; !ok {
		b.mu.Unlock()
		return nil, fmt.Errorf("anthropic: unknown run %s on thread %s", runID, threadID)
	}
	th.messages = append(th.messages, anthropic.NewUserMessage(blocks...))
	messages := make([]anthropic.MessageParam, len(th.messages))
	copy(messages, th.messages)
	b.mu.Unlock()

	return b.advance(ctx, threadID, messages)
}

// FinalReply returns the text of the latest completed response.
func (b *Backend) FinalReply(_ context.Context, threadID string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	th, err := b.threadLocked(threadID)
	if err != nil {
		return "", err
	}
	return th.lastText, nil
}

// advance performs one Messages call and records the synthetic run outcome.
func (b *Backend) advance(ctx context.Context, threadID string, messages []anthropic.MessageParam) (*assistant.Run, error) {
	params := anthropic.MessageNewParams{
		Model:     b.opts.Model,
		Messages:  messages,
		MaxTokens: b.opts.MaxTokens,
		Tools:     b.buildTools(),
	}
	if b.opts.Instructions != "" {
		params.System = []anthropic.TextBlockParam{{Text: b.opts.Instructions}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	run := &assistant.Run{
		ID:       "run_" + core.NewID(),
		ThreadID: threadID,
		Status:   assistant.RunStatusCompleted,
	}

	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := "{}"
			if toolBlock.Input != nil {
				if data, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(data)
				}
			}
			run.ToolCalls = append(run.ToolCalls, core.ToolCallRequest{
				ID:        toolBlock.ID,
				Name:      toolBlock.Name,
				Arguments: args,
			})
		}
	}
	if resp.StopReason == anthropic.StopReasonToolUse {
		run.Status = assistant.RunStatusRequiresAction
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	th, thErr := b.threadLocked(threadID)
	if thErr != nil {
		return nil, thErr
	}
	th.messages = append(th.messages, resp.ToParam())
	if run.Status == assistant.RunStatusCompleted && text != "" {
		th.lastText = text
	}
	th.runs[run.ID] = run
	return run, nil
}

// buildTools converts tool declarations into the API's tool schema.
func (b *Backend) buildTools() []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(b.defs))
	for i, def := range b.defs {
		schema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if def.Parameters != nil {
			if properties, ok := def.Parameters["properties"]; ok {
				schema.Properties = properties
			}
			switch required := def.Parameters["required"].(type) {
			case []string:
				schema.Required = required
			case []any:
				for _, r := range required {
					if s, ok := r.(string); ok {
						schema.Required = append(schema.Required, s)
					}
				}
			}
		}
		tools[i] = anthropic.ToolUnionParamOfTool(schema, def.Name)
	}
	return tools
}

// threadLocked resolves a thread; caller must hold the mutex.
func (b *Backend) threadLocked(threadID string) (*thread, error) {
	th, ok := b.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("anthropic: unknown thread %s", threadID)
	}
	return th, nil
}
