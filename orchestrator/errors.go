package orchestrator

import "fmt"

// AssistantUnavailableError reports that the backend could not be reached
// after the configured retries. The conversation can be retried later with
// the same session.
type AssistantUnavailableError struct {
	Op  string
	Err error
}

func (e *AssistantUnavailableError) Error() string {
	return fmt.Sprintf("assistant unavailable during %s: %v", e.Op, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *AssistantUnavailableError) Unwrap() error { return e.Err }

// AssistantTimeoutError reports that a run did not settle within the polling
// budget. The run is abandoned, not cancelled.
type AssistantTimeoutError struct {
	RunID    string
	Attempts int
	Err      error
}

func (e *AssistantTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("assistant run %s abandoned after %d polls: %v", e.RunID, e.Attempts, e.Err)
	}
	return fmt.Sprintf("assistant run %s did not settle within %d polls", e.RunID, e.Attempts)
}

// Unwrap exposes the context error when the poll was cut short.
func (e *AssistantTimeoutError) Unwrap() error { return e.Err }

// AssistantRunFailedError reports a run that reached a terminal failure
// state, carrying the provider's diagnostic.
type AssistantRunFailedError struct {
	RunID  string
	Status string
	Reason string
}

func (e *AssistantRunFailedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("assistant run %s ended %s: %s", e.RunID, e.Status, e.Reason)
	}
	return fmt.Sprintf("assistant run %s ended %s", e.RunID, e.Status)
}
