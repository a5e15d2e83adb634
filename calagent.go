// Package calagent provides a high-level façade over the scheduling
// orchestrator and its services (assistant backend, calendar executor,
// session store, profiles & logging). Most applications interact with this
// package by:
//  1. Creating a CalAgent via New() (optionally overriding default in-memory services)
//  2. Starting a session for a user profile (StartSession)
//  3. Sending conversational requests (HandleRequest) and relaying the replies
//
// The façade delegates the run loop to orchestrator.Orchestrator while
// keeping setup and usage ergonomics concise. All defaults are safe for local
// development and testing; production deployments supply a real assistant
// backend, a Google Calendar executor, durable stores and a structured logger.
package calagent

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/calagent/assistant"
	openaibackend "github.com/hupe1980/calagent/assistant/openai"
	"github.com/hupe1980/calagent/calendar"
	"github.com/hupe1980/calagent/core"
	"github.com/hupe1980/calagent/logging"
	"github.com/hupe1980/calagent/orchestrator"
	"github.com/hupe1980/calagent/profile"
	"github.com/hupe1980/calagent/schedule"
	"github.com/hupe1980/calagent/session"
	"github.com/hupe1980/calagent/tool"
)

// Options configures the CalAgent instance.
type Options struct {
	// Backend is the conversation provider. Defaults to the OpenAI
	// Assistants backend with credentials from the environment.
	Backend assistant.Backend

	// Executor performs the calendar operations. Defaults to the in-memory
	// executor; production wiring supplies calendar.NewGoogleExecutor.
	Executor calendar.Executor

	// SessionStore persists conversations (defaults to in-memory).
	SessionStore core.SessionStore

	// ThreadLookup resumes backend threads across restarts, keyed by profile
	// id (defaults to in-memory).
	ThreadLookup session.ThreadLookup

	// Profiles resolves user profiles (defaults to an empty static provider).
	Profiles profile.Provider

	// DefaultTimezone interprets naive times when a profile carries no zone.
	DefaultTimezone string

	// ExtraTools are registered alongside the calendar operations.
	ExtraTools []tool.Tool

	// PollInterval and MaxPollAttempts bound run polling.
	PollInterval    time.Duration
	MaxPollAttempts int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// CalAgent is the high-level façade aggregating the orchestrator and services.
type CalAgent struct {
	opts         Options
	orchestrator *orchestrator.Orchestrator
	store        core.SessionStore
	lookup       session.ThreadLookup
	profiles     profile.Provider

	mu           sync.Mutex
	sessionOwner map[string]string // session id -> profile id
}

// New creates a new CalAgent instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *CalAgent {
	opts := Options{
		Executor:        calendar.NewInMemoryExecutor(),
		SessionStore:    session.NewInMemoryStore(),
		ThreadLookup:    session.NewInMemoryThreadLookup(),
		Profiles:        profile.NewStaticProvider(),
		DefaultTimezone: "UTC",
		PollInterval:    time.Second,
		MaxPollAttempts: 60,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	normalizer := schedule.NewNormalizer(opts.DefaultTimezone)
	tools := calendar.NewTools(opts.Executor, normalizer)
	tools = append(tools, opts.ExtraTools...)

	dispatcher := orchestrator.NewDispatcher(tools, orchestrator.DispatcherConfig{
		Logger: opts.Logger,
	})

	if opts.Backend == nil {
		opts.Backend = openaibackend.New(dispatcher.Definitions())
	}

	o := orchestrator.New(opts.Backend, dispatcher, func(oo *orchestrator.Options) {
		oo.PollInterval = opts.PollInterval
		oo.MaxPollAttempts = opts.MaxPollAttempts
		oo.Logger = opts.Logger
	})

	return &CalAgent{
		opts:         opts,
		orchestrator: o,
		store:        opts.SessionStore,
		lookup:       opts.ThreadLookup,
		profiles:     opts.Profiles,
		sessionOwner: make(map[string]string),
	}
}

// StartSession creates a session bound to a user profile: the rendered
// profile context is attached and, when the profile already owns a backend
// thread, the conversation resumes on it.
func (a *CalAgent) StartSession(ctx context.Context, sessionID, profileID string) error {
	p, err := a.profiles.Get(ctx, profileID)
	if err != nil {
		return err
	}
	contextText, err := p.Render(time.Now())
	if err != nil {
		return err
	}

	if _, err := a.store.Create(sessionID); err != nil {
		return err
	}
	if err := a.store.SetProfileContext(sessionID, contextText); err != nil {
		return err
	}

	if threadID, ok, err := a.lookup.Lookup(profileID); err != nil {
		return err
	} else if ok {
		if err := a.store.SetThreadID(sessionID, threadID); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.sessionOwner[sessionID] = profileID
	a.mu.Unlock()

	a.opts.Logger.Info("session.started", "session_id", sessionID, "profile_id", profileID)
	return nil
}

// HandleRequest advances the session with one user message and returns the
// assistant's reply. Sessions unknown to the store are created on the fly
// without profile context.
func (a *CalAgent) HandleRequest(ctx context.Context, sessionID, text string) (string, error) {
	sess, err := a.store.Get(sessionID)
	if err != nil {
		return "", err
	}
	turnsBefore := len(sess.GetTurns())
	threadBefore := sess.GetThreadID()

	reply, runErr := a.orchestrator.HandleRequest(ctx, sess, text)

	// Persist whatever the loop produced, also on failure: the user turn and
	// any tool traffic belong to the durable history.
	for _, turn := range sess.GetTurns()[turnsBefore:] {
		if err := a.store.AppendTurn(sessionID, turn); err != nil {
			return reply, err
		}
	}
	if threadID := sess.GetThreadID(); threadID != threadBefore {
		if err := a.store.SetThreadID(sessionID, threadID); err != nil {
			return reply, err
		}
		a.mu.Lock()
		profileID := a.sessionOwner[sessionID]
		a.mu.Unlock()
		if profileID != "" {
			if err := a.lookup.Save(profileID, threadID); err != nil {
				return reply, err
			}
		}
	}

	return reply, runErr
}

// Session returns a snapshot of the stored session.
func (a *CalAgent) Session(sessionID string) (*core.Session, error) {
	return a.store.Get(sessionID)
}
