package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	openaisdk "github.com/openai/openai-go"
	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/hupe1980/calagent"
	"github.com/hupe1980/calagent/assistant"
	anthropicbackend "github.com/hupe1980/calagent/assistant/anthropic"
	openaibackend "github.com/hupe1980/calagent/assistant/openai"
	"github.com/hupe1980/calagent/calendar"
	"github.com/hupe1980/calagent/config"
	"github.com/hupe1980/calagent/logging"
	"github.com/hupe1980/calagent/orchestrator"
	"github.com/hupe1980/calagent/profile"
	"github.com/hupe1980/calagent/schedule"
	"github.com/hupe1980/calagent/session"
	"github.com/hupe1980/calagent/tool"
)

type agentFlags struct {
	profileID string
	sessionID string
	dryRun    bool
	tokenFile string
}

func (f *agentFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profileID, "profile", "", "profile id to schedule for")
	cmd.Flags().StringVar(&f.sessionID, "session", "default", "session id for the conversation")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "use an in-memory calendar instead of Google Calendar")
	cmd.Flags().StringVar(&f.tokenFile, "token-file", "", "path to a JSON OAuth2 token for Google Calendar")
}

func newChatCmd() *cobra.Command {
	flags := &agentFlags{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive scheduling conversation",
		Long: `Open a conversational loop on stdin. Each line is sent to the assistant;
replies and booked events are printed to stdout. End with Ctrl-D or "exit".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := buildAgent(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := startSession(cmd.Context(), agent, flags); err != nil {
				return err
			}

			fmt.Println("calagent ready. Describe what you want to schedule.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}

				reply, err := agent.HandleRequest(cmd.Context(), flags.sessionID, line)
				if err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
					continue
				}
				fmt.Println(reply)
			}
			return scanner.Err()
		},
	}

	flags.register(cmd)
	return cmd
}

func newAskCmd() *cobra.Command {
	flags := &agentFlags{}

	cmd := &cobra.Command{
		Use:   "ask [request]",
		Short: "Send a single scheduling request and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			agent, err := buildAgent(cmd.Context(), flags)
			if err != nil {
				return err
			}
			if err := startSession(cmd.Context(), agent, flags); err != nil {
				return err
			}

			reply, err := agent.HandleRequest(cmd.Context(), flags.sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Println(reply)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

// buildAgent wires the configured services into a CalAgent.
func buildAgent(ctx context.Context, flags *agentFlags) (*calagent.CalAgent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})

	executor, err := buildExecutor(ctx, cfg, flags)
	if err != nil {
		return nil, err
	}

	var profiles profile.Provider
	if cfg.ProfilePath != "" {
		profiles = profile.NewFileProvider(cfg.ProfilePath)
	} else {
		profiles = profile.NewStaticProvider()
	}

	var lookup session.ThreadLookup
	if cfg.ThreadLookupPath != "" {
		lookup = session.NewFileThreadLookup(cfg.ThreadLookupPath)
	} else {
		lookup = session.NewInMemoryThreadLookup()
	}

	// Tool declarations must match the set the façade registers, so build
	// them the same way for the backend.
	normalizer := schedule.NewNormalizer(cfg.DefaultTimezone)
	defs := orchestrator.NewDispatcher(calendar.NewTools(executor, normalizer), orchestrator.DispatcherConfig{}).Definitions()

	backend, err := buildBackend(cfg, defs)
	if err != nil {
		return nil, err
	}

	return calagent.New(func(o *calagent.Options) {
		o.Backend = backend
		o.Executor = executor
		o.Profiles = profiles
		o.ThreadLookup = lookup
		o.DefaultTimezone = cfg.DefaultTimezone
		o.PollInterval = time.Duration(cfg.PollIntervalSeconds) * time.Second
		o.MaxPollAttempts = cfg.MaxPollAttempts
		o.Logger = logger
	}), nil
}

// startSession binds the session to a profile when one was requested.
func startSession(ctx context.Context, agent *calagent.CalAgent, flags *agentFlags) error {
	if flags.profileID == "" {
		return nil
	}
	return agent.StartSession(ctx, flags.sessionID, flags.profileID)
}

// buildExecutor selects the calendar backend.
func buildExecutor(ctx context.Context, cfg config.Config, flags *agentFlags) (calendar.Executor, error) {
	if flags.dryRun {
		return calendar.NewInMemoryExecutor(), nil
	}

	var tokenSource oauth2.TokenSource
	if flags.tokenFile != "" {
		token, err := readToken(flags.tokenFile)
		if err != nil {
			return nil, err
		}
		tokenSource = oauth2.StaticTokenSource(token)
	}

	return calendar.NewGoogleExecutor(ctx, func(o *calendar.GoogleOptions) {
		o.CalendarID = cfg.CalendarID
		o.TokenSource = tokenSource
	})
}

// buildBackend selects the conversation provider.
func buildBackend(cfg config.Config, defs []tool.Definition) (assistant.Backend, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return openaibackend.New(defs, func(o *openaibackend.Options) {
			if cfg.Model != "" {
				o.Model = openaisdk.ChatModel(cfg.Model)
			}
			o.AssistantID = cfg.AssistantID
			if cfg.Instructions != "" {
				o.Instructions = cfg.Instructions
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropicbackend.New(defs, func(o *anthropicbackend.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
			if cfg.Instructions != "" {
				o.Instructions = cfg.Instructions
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// readToken loads a stored OAuth2 token.
func readToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token %s: %w", path, err)
	}
	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", path, err)
	}
	return &token, nil
}
