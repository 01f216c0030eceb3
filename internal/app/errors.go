package app

import (
	"errors"
	"fmt"
	"strings"
)

// Application errors.
var (
	// ErrQuit signals that the shell should exit normally.
	ErrQuit = errors.New("quit requested")

	// ErrUsage indicates a command was invoked with bad arguments.
	ErrUsage = errors.New("usage")

	// ErrMissingDependencies indicates a tool cannot run on this system.
	ErrMissingDependencies = errors.New("missing dependencies")
)

// ComponentError represents a failure to set up a component.
type ComponentError struct {
	Component string // Component name (e.g., "config", "catalogue")
	Err       error  // Underlying error
}

func (e *ComponentError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", e.Component, e.Err)
}

func (e *ComponentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DependencyError lists the binaries a tool needs but that are not installed.
type DependencyError struct {
	Tool    string
	Missing []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Tool, ErrMissingDependencies, strings.Join(e.Missing, ", "))
}

// Is matches ErrMissingDependencies.
func (e *DependencyError) Is(target error) bool {
	return target == ErrMissingDependencies
}

// usageError wraps ErrUsage with the expected invocation.
func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}
