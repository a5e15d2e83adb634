package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AppendAndCopy(t *testing.T) {
	s := NewSession("s1")
	assert.Equal(t, StateComposing, s.GetState())

	s.AppendTurn(NewUserTurn("hello"))
	s.AppendTurn(NewAssistantTurn("hi"))

	turns := s.GetTurns()
	require.Len(t, turns, 2)

	// Mutating the copy must not affect the session.
	turns[0].Text = "mutated"
	assert.Equal(t, "hello", s.GetTurns()[0].Text)
}

func TestSession_LastAssistantText(t *testing.T) {
	s := NewSession("s1")
	assert.Empty(t, s.LastAssistantText())

	s.AppendTurn(NewUserTurn("book a meeting"))
	s.AppendTurn(NewToolCallTurn([]ToolCallRequest{{ID: "c1", Name: "create_event"}}))
	s.AppendTurn(NewToolResultTurn([]ToolResult{{CallID: "c1", Name: "create_event", Output: "ok"}}))
	s.AppendTurn(NewAssistantTurn("done"))

	assert.Equal(t, "done", s.LastAssistantText())
}

func TestSession_Clone(t *testing.T) {
	s := NewSession("s1")
	s.SetThreadID("thread-123")
	s.AppendTurn(NewUserTurn("hello"))

	c := s.Clone()
	c.AppendTurn(NewAssistantTurn("cloned only"))
	c.SetState(StateFailed)

	assert.Len(t, s.GetTurns(), 1)
	assert.Equal(t, StateComposing, s.GetState())
	assert.Equal(t, "thread-123", c.GetThreadID())
}

func TestToolCallRequest_ParseArguments(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    map[string]any
		wantErr bool
	}{
		{name: "empty payload", raw: "", want: map[string]any{}},
		{name: "valid object", raw: `{"title":"Sync"}`, want: map[string]any{"title": "Sync"}},
		{name: "malformed json", raw: `{"title":`, wantErr: true},
		{name: "non object", raw: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToolCallRequest{ID: "c1", Name: "create_event", Arguments: tt.raw}.ParseArguments()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToolResult_Payload(t *testing.T) {
	ok := NewToolResult("c1", "create_event", map[string]string{"event_id": "e1"})
	assert.False(t, ok.IsFailure())
	assert.JSONEq(t, `{"event_id":"e1"}`, ok.Payload())

	plain := NewToolResult("c2", "list_events", "no events")
	assert.Equal(t, "no events", plain.Payload())

	fail := NewToolFailure("c3", "create_event", assert.AnError)
	assert.True(t, fail.IsFailure())

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(fail.Payload()), &decoded))
	assert.Equal(t, assert.AnError.Error(), decoded["error"])
}
