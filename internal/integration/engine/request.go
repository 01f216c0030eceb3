package engine

import (
	"fmt"

	"github.com/dshills/detonator/internal/integration/output"
	"github.com/dshills/detonator/internal/integration/termination"
)

// PrivilegeMode selects how a request is spawned.
type PrivilegeMode int

const (
	// Direct spawns the program as the current user.
	Direct PrivilegeMode = iota
	// Elevated spawns the program behind an interactive authorization helper.
	Elevated
)

// String returns the mode name.
func (m PrivilegeMode) String() string {
	switch m {
	case Direct:
		return "direct"
	case Elevated:
		return "elevated"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParsePrivilegeMode parses "direct" or "elevated".
func ParsePrivilegeMode(s string) (PrivilegeMode, error) {
	switch s {
	case "", "direct":
		return Direct, nil
	case "elevated":
		return Elevated, nil
	default:
		return Direct, fmt.Errorf("unknown privilege mode %q", s)
	}
}

// Request is one invocation of an external program.
type Request struct {
	// Program is the executable name or path. Required.
	Program string

	// Args are passed to the program verbatim as discrete tokens.
	Args []string

	// Privilege selects direct or elevated spawning.
	Privilege PrivilegeMode

	// Dir is the working directory. Empty inherits the current one.
	Dir string

	// Env is the environment in "KEY=value" form. Nil inherits the current one.
	Env []string
}

// clone returns a copy that does not share slices with the caller.
func (r Request) clone() Request {
	c := r
	c.Args = append([]string(nil), r.Args...)
	if r.Env != nil {
		c.Env = append([]string(nil), r.Env...)
	}
	return c
}

// DataFunc receives one chunk of process output.
type DataFunc = output.DataFunc

// TerminateFunc receives the termination event of a process.
type TerminateFunc = output.TerminateFunc

// Outcome is returned by a successful Execute.
type Outcome struct {
	// PID is the operating system process ID, usable with Cancel.
	PID int

	// ExecutionID uniquely identifies this execution in logs.
	ExecutionID string

	// Output holds whatever was delivered before Execute returned.
	// It is a best-effort snapshot; the data callback remains the
	// authoritative stream and has already received the same text.
	Output string
}

// Result is returned by Run once the process has terminated.
type Result struct {
	PID         int
	ExecutionID string
	Output      string
	Event       termination.Event
}

// Classification is shorthand for r.Event.Classification().
func (r Result) Classification() termination.Classification {
	return r.Event.Classification()
}
