package process

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int32

const (
	// StateRunning indicates the process is currently running.
	StateRunning State = iota
	// StateExited indicates the process exited on its own.
	StateExited
	// StateKilled indicates the process was ended by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Spec describes the process a Handle stands for.
type Spec struct {
	// ExecutionID uniquely identifies the execution request.
	ExecutionID string

	// Program is the requested program, not the elevation helper.
	Program string

	// Args are the requested arguments.
	Args []string

	// Elevated is true when the process runs behind an authorization helper.
	Elevated bool
}

// Handle is the identity of one spawned process.
type Handle struct {
	spec    Spec
	proc    *os.Process
	started time.Time

	state           atomic.Int32
	cancelRequested atomic.Bool

	done     chan struct{}
	exitOnce sync.Once
}

// NewHandle wraps a started process.
func NewHandle(spec Spec, proc *os.Process) *Handle {
	args := make([]string, len(spec.Args))
	copy(args, spec.Args)
	spec.Args = args

	h := &Handle{
		spec:    spec,
		proc:    proc,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	h.state.Store(int32(StateRunning))
	return h
}

// PID returns the operating system process ID.
func (h *Handle) PID() int {
	if h.proc == nil {
		return -1
	}
	return h.proc.Pid
}

// ExecutionID returns the unique ID of the execution request.
func (h *Handle) ExecutionID() string {
	return h.spec.ExecutionID
}

// Program returns the requested program.
func (h *Handle) Program() string {
	return h.spec.Program
}

// Args returns a copy of the requested arguments.
func (h *Handle) Args() []string {
	args := make([]string, len(h.spec.Args))
	copy(args, h.spec.Args)
	return args
}

// Started returns the spawn time.
func (h *Handle) Started() time.Time {
	return h.started
}

// Elevated reports whether the process runs behind an authorization helper.
func (h *Handle) Elevated() bool {
	return h.spec.Elevated
}

// State returns the current process state.
func (h *Handle) State() State {
	return State(h.state.Load())
}

// Alive returns true until the process has been reaped.
func (h *Handle) Alive() bool {
	return h.State() == StateRunning
}

// HasExited returns true once the process has been reaped.
func (h *Handle) HasExited() bool {
	return !h.Alive()
}

// Done returns a channel that is closed when the process has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Runtime returns how long the process has been running.
func (h *Handle) Runtime() time.Duration {
	return time.Since(h.started)
}

// CancelRequested reports whether a termination request was issued.
func (h *Handle) CancelRequested() bool {
	return h.cancelRequested.Load()
}

// RequestCancel records a termination request.
// Returns false if one was already recorded.
func (h *Handle) RequestCancel() bool {
	return h.cancelRequested.CompareAndSwap(false, true)
}

// ClearCancel forgets a termination request that could not be delivered.
func (h *Handle) ClearCancel() {
	h.cancelRequested.Store(false)
}

// Signal sends sig to the process.
// Returns ErrProcessDone if the process has already been reaped.
func (h *Handle) Signal(sig os.Signal) error {
	if h.HasExited() {
		return ErrProcessDone
	}
	if h.proc == nil {
		return ErrProcessNotStarted
	}

	err := h.proc.Signal(sig)
	if errors.Is(err, os.ErrProcessDone) {
		return ErrProcessDone
	}
	return err
}

// Terminate sends SIGTERM to the process.
func (h *Handle) Terminate() error {
	return h.Signal(syscall.SIGTERM)
}

// Kill sends SIGKILL to the process.
func (h *Handle) Kill() error {
	return h.Signal(syscall.SIGKILL)
}

// MarkExited records that the process has been reaped.
// Called by the engine after Wait returns; only the first call counts.
func (h *Handle) MarkExited(signaled bool) {
	h.exitOnce.Do(func() {
		state := StateExited
		if signaled {
			state = StateKilled
		}
		h.state.Store(int32(state))
		close(h.done)
	})
}

// String returns a short description such as "1234 nmap".
func (h *Handle) String() string {
	return fmt.Sprintf("%d %s", h.PID(), h.spec.Program)
}
