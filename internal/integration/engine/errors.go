package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
)

// Sentinel errors for the engine package.
var (
	// ErrEngineShutdown is returned when Execute is called after Shutdown.
	ErrEngineShutdown = errors.New("engine is shut down")

	// ErrEmptyProgram is returned for a request without a program.
	ErrEmptyProgram = errors.New("empty program")

	// ErrElevationDenied is returned when the authorization helper refused the request.
	ErrElevationDenied = errors.New("elevation denied")

	// ErrNoElevator is returned for elevated requests on an engine without an elevator.
	ErrNoElevator = errors.New("no elevation helper configured")
)

// Reason classifies why a spawn failed.
type Reason int

const (
	// ReasonUnknown is any failure not covered below.
	ReasonUnknown Reason = iota
	// ReasonNotFound means the program or helper could not be found.
	ReasonNotFound
	// ReasonPermissionDenied means the operating system refused to execute it.
	ReasonPermissionDenied
	// ReasonElevationDenied means the authorization prompt was declined or failed.
	ReasonElevationDenied
	// ReasonInvalidRequest means the request itself was malformed.
	ReasonInvalidRequest
	// ReasonCanceled means the caller gave up before the process became visible.
	ReasonCanceled
	// ReasonShutdown means the engine no longer accepts requests.
	ReasonShutdown
)

// String returns the reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonPermissionDenied:
		return "permission denied"
	case ReasonElevationDenied:
		return "elevation denied"
	case ReasonInvalidRequest:
		return "invalid request"
	case ReasonCanceled:
		return "canceled"
	case ReasonShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// SpawnError reports that a request never became a running process.
// No termination event follows a SpawnError.
type SpawnError struct {
	// Program is the requested program.
	Program string

	// Reason classifies the failure.
	Reason Reason

	// Message is a human-readable description.
	Message string

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *SpawnError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("spawn %s: %s", e.Program, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("spawn %s: %s: %v", e.Program, e.Reason, e.Err)
	}
	return fmt.Sprintf("spawn %s: %s", e.Program, e.Reason)
}

// Unwrap returns the underlying error.
func (e *SpawnError) Unwrap() error {
	return e.Err
}

// checkDir verifies that dir, if set, is an existing directory.
func checkDir(dir string) error {
	if dir == "" {
		return nil
	}
	fi, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("working directory %s: %w", dir, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("working directory %s: not a directory", dir)
	}
	return nil
}

// newStartError classifies an error returned by exec.Cmd.Start.
func newStartError(program string, err error) *SpawnError {
	se := &SpawnError{Program: program, Err: err}
	var pe *fs.PathError
	switch {
	case errors.As(err, &pe) && pe.Op == "chdir":
		se.Reason = ReasonInvalidRequest
		se.Message = fmt.Sprintf("working directory %s: %v", pe.Path, pe.Err)
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		se.Reason = ReasonNotFound
		se.Message = "program not found"
	case errors.Is(err, fs.ErrPermission):
		se.Reason = ReasonPermissionDenied
		se.Message = "permission denied"
	default:
		se.Reason = ReasonUnknown
		se.Message = err.Error()
	}
	return se
}
