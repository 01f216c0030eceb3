package process

import (
	"errors"
	"os"
)

// Sentinel errors for the process package.
var (
	// ErrNotFound is returned when no process is registered under a PID.
	ErrNotFound = errors.New("process not found")

	// ErrDuplicatePID is returned when a live process is already registered under a PID.
	ErrDuplicatePID = errors.New("process ID already registered")

	// ErrProcessNotStarted is returned when a handle has no underlying process.
	ErrProcessNotStarted = errors.New("process not started")

	// ErrProcessDone is returned when signalling a process that has been reaped.
	ErrProcessDone = os.ErrProcessDone
)
