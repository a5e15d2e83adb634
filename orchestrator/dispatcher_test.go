package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/tool"
)

func echoTool() tool.Tool {
	return tool.NewFunctionTool(
		"echo",
		"Echo the given text",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string"},
			},
			"required": []string{"text"},
		},
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			return args["text"], nil
		},
	)
}

func panicTool() tool.Tool {
	return tool.NewFunctionTool(
		"explode",
		"Always panics",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			panic("boom")
		},
	)
}

func TestDispatcherSingleCall(t *testing.T) {
	d := NewDispatcher([]tool.Tool{echoTool()}, DispatcherConfig{})

	results := d.Dispatch(context.Background(), []core.ToolCallRequest{
		{ID: "call-1", Name: "echo", Arguments: `{"text":"hi"}`},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].IsFailure())
	assert.Equal(t, "call-1", results[0].CallID)
	assert.Equal(t, "hi", results[0].Output)
}

func TestDispatcherFailureIsolation(t *testing.T) {
	d := NewDispatcher([]tool.Tool{echoTool()}, DispatcherConfig{})

	results := d.Dispatch(context.Background(), []core.ToolCallRequest{
		{ID: "call-1", Name: "echo", Arguments: `{"text":"first"}`},
		{ID: "call-2", Name: "does_not_exist", Arguments: `{}`},
		{ID: "call-3", Name: "echo", Arguments: `{"text":"third"}`},
	})

	require.Len(t, results, 3)

	assert.False(t, results[0].IsFailure())
	assert.Equal(t, "first", results[0].Output)

	assert.True(t, results[1].IsFailure())
	assert.Contains(t, results[1].Error, "does_not_exist")
	assert.Contains(t, results[1].Error, tool.CodeUnknownTool)

	assert.False(t, results[2].IsFailure())
	assert.Equal(t, "third", results[2].Output)
}

func TestDispatcherMalformedArguments(t *testing.T) {
	d := NewDispatcher([]tool.Tool{echoTool()}, DispatcherConfig{})

	results := d.Dispatch(context.Background(), []core.ToolCallRequest{
		{ID: "call-1", Name: "echo", Arguments: `{"text": not-json`},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].IsFailure())
	assert.Contains(t, results[0].Error, "malformed arguments")
}

func TestDispatcherPanicRecovery(t *testing.T) {
	d := NewDispatcher([]tool.Tool{panicTool(), echoTool()}, DispatcherConfig{})

	results := d.Dispatch(context.Background(), []core.ToolCallRequest{
		{ID: "call-1", Name: "explode"},
		{ID: "call-2", Name: "echo", Arguments: `{"text":"still fine"}`},
	})

	require.Len(t, results, 2)
	assert.True(t, results[0].IsFailure())
	assert.Contains(t, results[0].Error, "panicked")
	assert.False(t, results[1].IsFailure())
}

func TestDispatcherPreservesOrderUnderParallelism(t *testing.T) {
	var mu sync.Mutex
	started := 0

	slow := tool.NewFunctionTool(
		"slow",
		"Sleeps inversely to its position",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"delay_ms": map[string]any{"type": "number"},
			},
		},
		func(cc *tool.CallContext, args map[string]any) (any, error) {
			mu.Lock()
			started++
			mu.Unlock()
			delay, _ := args["delay_ms"].(float64)
			time.Sleep(time.Duration(delay) * time.Millisecond)
			return args["delay_ms"], nil
		},
	)

	d := NewDispatcher([]tool.Tool{slow}, DispatcherConfig{MaxParallel: 4})

	calls := []core.ToolCallRequest{
		{ID: "call-1", Name: "slow", Arguments: `{"delay_ms": 30}`},
		{ID: "call-2", Name: "slow", Arguments: `{"delay_ms": 1}`},
		{ID: "call-3", Name: "slow", Arguments: `{"delay_ms": 15}`},
	}
	results := d.Dispatch(context.Background(), calls)

	require.Len(t, results, 3)
	for i, res := range results {
		assert.Equal(t, calls[i].ID, res.CallID)
	}
	assert.Equal(t, 3, started)
}

func TestDispatcherPayloadForFailures(t *testing.T) {
	d := NewDispatcher(nil, DispatcherConfig{})

	results := d.Dispatch(context.Background(), []core.ToolCallRequest{
		{ID: "call-1", Name: "missing"},
	})

	require.Len(t, results, 1)

	var payload map[string]string
	require.NoError(t, json.Unmarshal([]byte(results[0].Payload()), &payload))
	assert.True(t, strings.Contains(payload["error"], "missing"))
}
