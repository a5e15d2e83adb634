package orchestrator

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/logging"
	"github.com/hupe1980/calagent/tool"
)

// DispatcherConfig configures the parallel tool dispatcher.
type DispatcherConfig struct {
	// MaxParallel caps concurrent executions within one batch. Zero or
	// negative means the batch size.
	MaxParallel int
	// Logger receives dispatch telemetry. Defaults to the no-op logger.
	Logger logging.Logger
}

// Dispatcher executes a batch of tool calls against a registry, possibly in
// parallel, and returns exactly one result per call in the original order.
//
// Guarantees:
//   - A failing call (unknown name, malformed arguments, execution error,
//     panic) never aborts its siblings; it yields a structured failure result
//   - Results keep batch order regardless of completion order
//   - Context cancellation stops launching new calls; already running calls
//     finish and report
type Dispatcher struct {
	registry map[string]tool.Tool
	cfg      DispatcherConfig
}

// NewDispatcher builds a dispatcher over the given tools, keyed by name.
func NewDispatcher(tools []tool.Tool, cfg DispatcherConfig) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = logging.NoOpLogger{}
	}
	registry := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		registry[t.Name()] = t
	}
	return &Dispatcher{registry: registry, cfg: cfg}
}

// Definitions exposes the registry's tool declarations for backend setup.
func (d *Dispatcher) Definitions() []tool.Definition {
	return tool.Definitions(d.registry)
}

// Dispatch executes the batch and returns the complete, ordered result set.
func (d *Dispatcher) Dispatch(ctx context.Context, calls []core.ToolCallRequest) []core.ToolResult {
	n := len(calls)
	if n == 0 {
		return nil
	}

	// Fast path: single call, execute inline.
	if n == 1 {
		return []core.ToolResult{d.dispatchOne(ctx, calls[0])}
	}

	maxPar := d.cfg.MaxParallel
	if maxPar <= 0 || maxPar > n {
		maxPar = n
	}

	results := make([]core.ToolResult, n)
	var wg sync.WaitGroup
	sem := make(chan struct{}, maxPar)

	batchStart := time.Now()
	for i := range calls {
		if ctx.Err() != nil {
			results[i] = core.NewToolFailure(calls[i].ID, calls[i].Name, ctx.Err())
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, call core.ToolCallRequest) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = d.dispatchOne(ctx, call)
		}(i, calls[i])
	}
	wg.Wait()

	d.cfg.Logger.Debug("dispatch.batch.complete",
		"count", n,
		"parallelism", maxPar,
		"duration_ms", time.Since(batchStart).Milliseconds(),
	)

	return results
}

// dispatchOne runs a single call with panic safety, mapping every failure
// mode onto a structured failure result.
func (d *Dispatcher) dispatchOne(ctx context.Context, call core.ToolCallRequest) (result core.ToolResult) {
	logger := d.cfg.Logger
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("dispatch.call.panic", "tool", call.Name, "call_id", call.ID, "recover", r, "stack", string(debug.Stack()))
			result = core.NewToolFailure(call.ID, call.Name, fmt.Errorf("tool %s panicked", call.Name))
		}
	}()

	impl, ok := d.registry[call.Name]
	if !ok {
		logger.Warn("dispatch.call.unknown", "tool", call.Name, "call_id", call.ID)
		err := tool.NewToolError(call.Name, fmt.Sprintf("unknown operation %q", call.Name), tool.CodeUnknownTool)
		return core.NewToolFailure(call.ID, call.Name, err)
	}

	args, err := call.ParseArguments()
	if err != nil {
		logger.Warn("dispatch.call.bad_arguments", "tool", call.Name, "call_id", call.ID, "error", err.Error())
		return core.NewToolFailure(call.ID, call.Name, fmt.Errorf("malformed arguments: %w", err))
	}

	out, err := impl.Call(tool.NewCallContext(ctx, call.ID, logger), args)
	if err != nil {
		return core.NewToolFailure(call.ID, call.Name, err)
	}

	logger.Info("dispatch.call.success", "tool", call.Name, "call_id", call.ID, "duration_ms", time.Since(start).Milliseconds())

	return core.NewToolResult(call.ID, call.Name, out)
}
