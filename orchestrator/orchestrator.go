// Package orchestrator drives one scheduling request through the session
// state machine: compose the outgoing turn, await run completion, dispatch
// any required tool batch, and deliver the assistant's final reply. The
// backend provider and the tool set are both injected, keeping the loop free
// of provider and calendar specifics.
package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/calagent/assistant"
	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/logging"
)

// Options configure the orchestrator loop.
type Options struct {
	// PollInterval is the pause between run status polls.
	PollInterval time.Duration
	// MaxPollAttempts bounds polling per run segment; exceeding it abandons
	// the run with an AssistantTimeoutError.
	MaxPollAttempts int
	// StartRetries is how often transport-level backend failures are retried
	// before reporting AssistantUnavailableError.
	StartRetries int
	// RetryBackoff is the pause between those retries.
	RetryBackoff time.Duration
	// Logger receives loop telemetry. Defaults to the no-op logger.
	Logger logging.Logger
}

// Orchestrator coordinates the backend and the tool dispatcher for one
// session at a time. Safe for concurrent use across distinct sessions.
type Orchestrator struct {
	backend    assistant.Backend
	dispatcher *Dispatcher
	opts       Options
}

// New constructs an orchestrator with the given backend and dispatcher.
func New(backend assistant.Backend, dispatcher *Dispatcher, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		PollInterval:    time.Second,
		MaxPollAttempts: 60,
		StartRetries:    2,
		RetryBackoff:    500 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Orchestrator{backend: backend, dispatcher: dispatcher, opts: opts}
}

// HandleRequest advances the session with one user message and returns the
// assistant's reply. The session object is mutated in place: turns are
// appended as they occur and the state field tracks the machine position,
// ending in Delivering or Failed.
func (o *Orchestrator) HandleRequest(ctx context.Context, sess *core.Session, text string) (string, error) {
	logger := o.opts.Logger
	sess.SetState(core.StateComposing)

	threadID := sess.GetThreadID()
	if threadID == "" {
		var err error
		threadID, err = o.createThread(ctx)
		if err != nil {
			sess.SetState(core.StateFailed)
			return "", err
		}
		sess.SetThreadID(threadID)
		logger.Info("orchestrator.thread.created", "session_id", sess.ID, "thread_id", threadID)
	}

	// The profile context rides along with the first message of a thread so
	// the model knows who it is scheduling for.
	message := text
	if sess.ProfileContext != "" && len(sess.GetTurns()) == 0 {
		message = sess.ProfileContext + "\n\n" + text
	}

	if err := o.withRetry(ctx, "add_message", func() error {
		return o.backend.AddMessage(ctx, threadID, message)
	}); err != nil {
		sess.SetState(core.StateFailed)
		return "", err
	}
	sess.AppendTurn(core.NewUserTurn(text))

	var run *assistant.Run
	if err := o.withRetry(ctx, "start_run", func() error {
		var err error
		run, err = o.backend.StartRun(ctx, threadID)
		return err
	}); err != nil {
		sess.SetState(core.StateFailed)
		return "", err
	}
	sess.SetState(core.StateAwaitingCompletion)
	logger.Info("orchestrator.run.started", "session_id", sess.ID, "run_id", run.ID)

	attempts := 0
	for {
		if run.Status == assistant.RunStatusRequiresAction {
			sess.SetState(core.StateDispatchingTools)
			sess.AppendTurn(core.NewToolCallTurn(run.ToolCalls))
			logger.Info("orchestrator.run.requires_action", "run_id", run.ID, "calls", len(run.ToolCalls))

			results := o.dispatcher.Dispatch(ctx, run.ToolCalls)
			sess.AppendTurn(core.NewToolResultTurn(results))

			runID := run.ID
			if err := o.withRetry(ctx, "submit_tool_outputs", func() error {
				var err error
				run, err = o.backend.SubmitToolOutputs(ctx, threadID, runID, results)
				return err
			}); err != nil {
				sess.SetState(core.StateFailed)
				return "", err
			}
			sess.SetState(core.StateAwaitingCompletion)
			attempts = 0
			continue
		}

		if run.Status.Terminal() {
			break
		}

		attempts++
		if attempts > o.opts.MaxPollAttempts {
			sess.SetState(core.StateFailed)
			return "", &AssistantTimeoutError{RunID: run.ID, Attempts: o.opts.MaxPollAttempts}
		}
		select {
		case <-ctx.Done():
			sess.SetState(core.StateFailed)
			return "", &AssistantTimeoutError{RunID: run.ID, Attempts: attempts, Err: ctx.Err()}
		case <-time.After(o.opts.PollInterval):
		}

		runID := run.ID
		if err := o.withRetry(ctx, "get_run", func() error {
			var err error
			run, err = o.backend.GetRun(ctx, threadID, runID)
			return err
		}); err != nil {
			sess.SetState(core.StateFailed)
			return "", err
		}
	}

	if run.Status != assistant.RunStatusCompleted {
		sess.SetState(core.StateFailed)
		logger.Warn("orchestrator.run.failed", "run_id", run.ID, "status", string(run.Status), "reason", run.FailureReason)
		return "", &AssistantRunFailedError{RunID: run.ID, Status: string(run.Status), Reason: run.FailureReason}
	}

	var reply string
	if err := o.withRetry(ctx, "final_reply", func() error {
		var err error
		reply, err = o.backend.FinalReply(ctx, threadID)
		return err
	}); err != nil {
		sess.SetState(core.StateFailed)
		return "", err
	}
	reply = strings.TrimSpace(reply)

	sess.AppendTurn(core.NewAssistantTurn(reply))
	sess.SetState(core.StateDelivering)
	logger.Info("orchestrator.run.delivered", "session_id", sess.ID, "run_id", run.ID)

	return reply, nil
}

// createThread issues a backend thread with the standard retry policy.
func (o *Orchestrator) createThread(ctx context.Context) (string, error) {
	var threadID string
	err := o.withRetry(ctx, "create_thread", func() error {
		var err error
		threadID, err = o.backend.CreateThread(ctx)
		return err
	})
	return threadID, err
}

// withRetry runs fn up to StartRetries+1 times, reporting the final failure
// as AssistantUnavailableError.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt <= o.opts.StartRetries; attempt++ {
		if attempt > 0 {
			o.opts.Logger.Warn("orchestrator.backend.retry", "op", op, "attempt", attempt, "error", err.Error())
			select {
			case <-ctx.Done():
				return &AssistantUnavailableError{Op: op, Err: ctx.Err()}
			case <-time.After(o.opts.RetryBackoff):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return &AssistantUnavailableError{Op: op, Err: err}
}
