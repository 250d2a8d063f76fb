package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWorkflow is matched by every ConfigError.
	ErrInvalidWorkflow = errors.New("invalid workflow")

	// ErrNoResult is matched by MissingResultError.
	ErrNoResult = errors.New("no such result")
)

// ConfigError reports a workflow that cannot run: unknown or mistyped
// sources, missing theme vocabularies, duplicate names, bad parameters.
// It is raised before any request for the offending step is made.
type ConfigError struct {
	Step   string
	Source string
	Msg    string
}

func (e *ConfigError) Error() string {
	msg := "invalid workflow"
	if e.Step != "" {
		msg += fmt.Sprintf(": step %q", e.Step)
	}
	if e.Source != "" {
		msg += fmt.Sprintf(": source %q", e.Source)
	}
	return msg + ": " + e.Msg
}

func (e *ConfigError) Is(target error) bool { return target == ErrInvalidWorkflow }

// MissingResultError is returned when looking up a step identifier that has
// no result.
type MissingResultError struct {
	ID string
}

func (e *MissingResultError) Error() string {
	return fmt.Sprintf("no result for step %q", e.ID)
}

func (e *MissingResultError) Unwrap() error { return ErrNoResult }
