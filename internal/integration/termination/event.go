package termination

import (
	"fmt"
	"os"
	"strconv"
	"syscall"
)

// SignalTerminate is the signal number of a termination request (SIGTERM).
const SignalTerminate = 15

// Event is the terminal status of one process.
//
// Code is set when the process exited on its own; Signal is set when it
// was ended by a signal. Either may be nil, never both set by the OS, but
// consumers must not assume that.
type Event struct {
	Code   *int
	Signal *int
}

// Exited returns an event for a process that exited with code.
func Exited(code int) Event {
	return Event{Code: &code}
}

// Signaled returns an event for a process terminated by sig.
func Signaled(sig int) Event {
	return Event{Signal: &sig}
}

// FromProcessState builds an event from the state returned by Wait.
// A nil state yields an empty event, which classifies as Failed.
func FromProcessState(ps *os.ProcessState) Event {
	if ps == nil {
		return Event{}
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return Signaled(int(ws.Signal()))
		}
		return Exited(ws.ExitStatus())
	}
	return Exited(ps.ExitCode())
}

// ExitCode returns the exit code and whether one was reported.
func (e Event) ExitCode() (int, bool) {
	if e.Code == nil {
		return 0, false
	}
	return *e.Code, true
}

// SignalNumber returns the terminating signal and whether one was reported.
func (e Event) SignalNumber() (int, bool) {
	if e.Signal == nil {
		return 0, false
	}
	return *e.Signal, true
}

// Classification returns the derived label for the event.
func (e Event) Classification() Classification {
	return Classify(e)
}

// Message returns the status line shown to the user once the process ended.
func (e Event) Message() string {
	switch e.Classification() {
	case Success:
		return "Process completed successfully."
	case ManuallyTerminated:
		return "Process was manually terminated."
	default:
		return fmt.Sprintf("Process terminated with exit code: %s and signal code: %s",
			optional(e.Code), optional(e.Signal))
	}
}

// String returns a compact form such as "code=1" or "signal=15".
func (e Event) String() string {
	switch {
	case e.Code != nil && e.Signal != nil:
		return fmt.Sprintf("code=%d signal=%d", *e.Code, *e.Signal)
	case e.Code != nil:
		return fmt.Sprintf("code=%d", *e.Code)
	case e.Signal != nil:
		return fmt.Sprintf("signal=%d", *e.Signal)
	default:
		return "unknown"
	}
}

func optional(v *int) string {
	if v == nil {
		return "null"
	}
	return strconv.Itoa(*v)
}
