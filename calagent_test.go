package calagent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/calagent/assistant"
	"github.com/hupe1980/calagent/calendar"
	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/profile"
	"github.com/hupe1980/calagent/session"
)

// fakeBackend replays a scripted sequence of run snapshots.
type fakeBackend struct {
	mu        sync.Mutex
	script    []*assistant.Run
	reply     string
	messages  []string
	submitted [][]core.ToolResult
	threads   int
}

func (b *fakeBackend) CreateThread(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.threads++
	return "thread_x", nil
}

func (b *fakeBackend) AddMessage(_ context.Context, _, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, text)
	return nil
}

func (b *fakeBackend) StartRun(context.Context, string) (*assistant.Run, error) {
	return b.next()
}

func (b *fakeBackend) GetRun(context.Context, string, string) (*assistant.Run, error) {
	return b.next()
}

func (b *fakeBackend) SubmitToolOutputs(_ context.Context, _, _ string, results []core.ToolResult) (*assistant.Run, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, results)
	b.mu.Unlock()
	return b.next()
}

func (b *fakeBackend) FinalReply(context.Context, string) (string, error) {
	return b.reply, nil
}

func (b *fakeBackend) next() (*assistant.Run, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	run := b.script[0]
	if len(b.script) > 1 {
		b.script = b.script[1:]
	}
	return run, nil
}

func TestCalAgentBooksAnEvent(t *testing.T) {
	requiresAction := &assistant.Run{
		ID:     "run_1",
		Status: assistant.RunStatusRequiresAction,
		ToolCalls: []core.ToolCallRequest{{
			ID:        "call-1",
			Name:      calendar.OpCreateEvent,
			Arguments: `{"title":"Sync with John","start":"2025-03-03T15:00:00","attendees":"john@example.com"}`,
		}},
	}
	backend := &fakeBackend{
		script: []*assistant.Run{requiresAction, {ID: "run_1", Status: assistant.RunStatusCompleted}},
		reply:  "Booked: Sync with John, Monday 3pm.",
	}
	executor := calendar.NewInMemoryExecutor()
	lookup := session.NewInMemoryThreadLookup()

	agent := New(func(o *Options) {
		o.Backend = backend
		o.Executor = executor
		o.ThreadLookup = lookup
		o.DefaultTimezone = "Europe/Berlin"
		o.PollInterval = time.Millisecond
		o.Profiles = profile.NewStaticProvider(
			&profile.Profile{ID: "dana", Name: "Dana", Timezone: "Europe/Berlin"},
		)
	})

	ctx := context.Background()
	require.NoError(t, agent.StartSession(ctx, "sess-1", "dana"))

	reply, err := agent.HandleRequest(ctx, "sess-1", "book a sync with john monday 3pm")
	require.NoError(t, err)
	assert.Equal(t, "Booked: Sync with John, Monday 3pm.", reply)

	// The tool batch reached the executor and produced a real event.
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	events, err := executor.ListEvents(ctx, calendar.TimeRange{
		Start: time.Date(2025, 3, 3, 0, 0, 0, 0, berlin),
		End:   time.Date(2025, 3, 4, 0, 0, 0, 0, berlin),
	})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Sync with John", events[0].Title)
	assert.True(t, events[0].Start.Equal(time.Date(2025, 3, 3, 15, 0, 0, 0, berlin)))

	require.Len(t, backend.submitted, 1)
	assert.False(t, backend.submitted[0][0].IsFailure())

	// First message carries the rendered profile context.
	require.NotEmpty(t, backend.messages)
	assert.Contains(t, backend.messages[0], "Dana")
	assert.Contains(t, backend.messages[0], "Europe/Berlin")

	// The history and the thread token were persisted.
	sess, err := agent.Session("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "thread_x", sess.ThreadID)
	assert.Len(t, sess.Turns, 4)

	threadID, ok, err := lookup.Lookup("dana")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "thread_x", threadID)
}

func TestCalAgentResumesThreadForKnownProfile(t *testing.T) {
	backend := &fakeBackend{
		script: []*assistant.Run{{ID: "run_1", Status: assistant.RunStatusCompleted}},
		reply:  "hello again",
	}
	lookup := session.NewInMemoryThreadLookup()
	require.NoError(t, lookup.Save("dana", "thread_prior"))

	agent := New(func(o *Options) {
		o.Backend = backend
		o.ThreadLookup = lookup
		o.PollInterval = time.Millisecond
		o.Profiles = profile.NewStaticProvider(
			&profile.Profile{ID: "dana", Name: "Dana", Timezone: "UTC"},
		)
	})

	ctx := context.Background()
	require.NoError(t, agent.StartSession(ctx, "sess-2", "dana"))

	_, err := agent.HandleRequest(ctx, "sess-2", "hi")
	require.NoError(t, err)

	assert.Equal(t, 0, backend.threads)

	sess, err := agent.Session("sess-2")
	require.NoError(t, err)
	assert.Equal(t, "thread_prior", sess.ThreadID)
}

func TestCalAgentUnknownProfile(t *testing.T) {
	agent := New(func(o *Options) {
		o.Backend = &fakeBackend{}
	})

	err := agent.StartSession(context.Background(), "sess-1", "nobody")

	var notFound *profile.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCalAgentPersistsTurnsOnFailure(t *testing.T) {
	failed := &assistant.Run{ID: "run_1", Status: assistant.RunStatusFailed, FailureReason: "server_error: boom"}
	backend := &fakeBackend{script: []*assistant.Run{failed}}

	agent := New(func(o *Options) {
		o.Backend = backend
		o.PollInterval = time.Millisecond
	})

	_, err := agent.HandleRequest(context.Background(), "sess-1", "hi")
	require.Error(t, err)

	sess, sessErr := agent.Session("sess-1")
	require.NoError(t, sessErr)
	require.Len(t, sess.Turns, 1)
	assert.Equal(t, core.RoleUser, sess.Turns[0].Role)
}
