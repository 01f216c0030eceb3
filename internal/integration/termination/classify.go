package termination

import "fmt"

// Classification is the display label derived from an Event.
type Classification int

const (
	// Failed covers non-zero exit codes, unexpected signals and missing status.
	Failed Classification = iota
	// Success means the process exited with code 0.
	Success
	// ManuallyTerminated means the process ended on a termination request.
	ManuallyTerminated
)

// String returns a human-readable classification name.
func (c Classification) String() string {
	switch c {
	case Success:
		return "success"
	case ManuallyTerminated:
		return "manually-terminated"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Classify applies the termination policy to e.
// Exit code 0 wins over any signal; signal 15 otherwise means the process
// honored a termination request.
func Classify(e Event) Classification {
	if code, ok := e.ExitCode(); ok && code == 0 {
		return Success
	}
	if sig, ok := e.SignalNumber(); ok && sig == SignalTerminate {
		return ManuallyTerminated
	}
	return Failed
}
