package core

import "encoding/json"

// ToolCallRequest is the assistant's structured request to invoke an external
// operation instead of replying directly. Arguments is the raw, untrusted
// payload exactly as the model produced it.
type ToolCallRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// ParseArguments decodes the raw argument payload into a generic map.
// An empty payload yields an empty map rather than an error.
func (c ToolCallRequest) ParseArguments() (map[string]any, error) {
	if c.Arguments == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(c.Arguments), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// ToolResult correlates to a ToolCallRequest by call identifier and carries
// either a success payload or a structured failure reason. Failures within a
// single call never abort the batch; they travel back to the model as data.
type ToolResult struct {
	CallID string `json:"call_id"`
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewToolResult serializes result into a success ToolResult. Non-string
// results are JSON encoded; marshal failures degrade to a failure result so
// the call still produces exactly one output.
func NewToolResult(callID, name string, result any) ToolResult {
	if s, ok := result.(string); ok {
		return ToolResult{CallID: callID, Name: name, Output: s}
	}
	b, err := json.Marshal(result)
	if err != nil {
		return NewToolFailure(callID, name, err)
	}
	return ToolResult{CallID: callID, Name: name, Output: string(b)}
}

// NewToolFailure wraps err as a structured failure result for the call.
func NewToolFailure(callID, name string, err error) ToolResult {
	return ToolResult{CallID: callID, Name: name, Error: err.Error()}
}

// IsFailure reports whether the result carries a failure reason.
func (r ToolResult) IsFailure() bool { return r.Error != "" }

// Payload returns the text submitted back to the assistant backend. Failures
// are encoded as a JSON object with an "error" key so the model can read the
// reason and self-correct.
func (r ToolResult) Payload() string {
	if !r.IsFailure() {
		return r.Output
	}
	b, _ := json.Marshal(map[string]string{"error": r.Error})
	return string(b)
}
