package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// rootCmd represents the base command for the calagent application
var rootCmd = &cobra.Command{
	Use:   "calagent",
	Short: "Conversational scheduling assistant for your calendar",
	Long: `calagent turns natural language requests like "book a sync with John
next Tuesday at 3pm" into calendar events. An LLM assistant drives the
conversation; calagent executes the calendar operations it requests and
feeds the results back until the assistant delivers a confirmation.`,
	SilenceUsage: true,
}

// execute is the main entry point for the CLI application
func execute(version string) {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(`{{printf "calagent version %s\n" .Version}}`)

	// If no subcommand is provided, run the chat command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "chat")
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a JSON config file")
	rootCmd.AddCommand(newChatCmd())
	rootCmd.AddCommand(newAskCmd())
}
