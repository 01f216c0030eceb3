package engine

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/integration/process"
)

// CancelOutcome reports what Cancel did.
type CancelOutcome int

const (
	// CancelRequested means a termination request was sent.
	CancelRequested CancelOutcome = iota
	// CancelAlreadyRequested means an earlier request is still pending.
	CancelAlreadyRequested
	// CancelAlreadyTerminated means the process is unknown or already reaped.
	CancelAlreadyTerminated
)

// String returns the outcome name.
func (o CancelOutcome) String() string {
	switch o {
	case CancelRequested:
		return "requested"
	case CancelAlreadyRequested:
		return "already requested"
	case CancelAlreadyTerminated:
		return "already terminated"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Cancel asks the process with the given PID to terminate.
//
// Cancel returns as soon as the request has been sent; the termination
// event is the only confirmation that the process has stopped. Unknown and
// finished PIDs are reported as CancelAlreadyTerminated without touching
// the operating system, so a recycled PID is never signalled.
func (e *Engine) Cancel(pid int) (CancelOutcome, error) {
	h, err := e.registry.Lookup(pid)
	if err != nil || h.HasExited() {
		return CancelAlreadyTerminated, nil
	}

	if !h.RequestCancel() {
		return CancelAlreadyRequested, nil
	}

	if err := e.signal(h, syscall.SIGTERM); err != nil {
		if errors.Is(err, process.ErrProcessDone) {
			return CancelAlreadyTerminated, nil
		}
		h.ClearCancel()
		return CancelRequested, fmt.Errorf("cancel %s: %w", h, err)
	}

	e.logger.Info("termination requested",
		zap.Int("pid", pid),
		zap.String("execution", h.ExecutionID()),
		zap.String("program", h.Program()))
	return CancelRequested, nil
}

// CancelAfter cancels pid once d has elapsed. The returned function stops
// the timer and reports whether it did so before it fired.
func (e *Engine) CancelAfter(pid int, d time.Duration) (stop func() bool) {
	t := time.AfterFunc(d, func() {
		if _, err := e.Cancel(pid); err != nil {
			e.logger.Warn("scheduled cancel", zap.Int("pid", pid), zap.Error(err))
		}
	})
	return t.Stop
}

// signal delivers sig to h. Elevated processes usually run as another user,
// in which case the signal is routed through the elevator.
func (e *Engine) signal(h *process.Handle, sig syscall.Signal) error {
	err := h.Signal(sig)
	if err == nil || !h.Elevated() || e.elevator == nil {
		return err
	}
	if !errors.Is(err, os.ErrPermission) && !errors.Is(err, syscall.EPERM) {
		return err
	}

	e.logger.Debug("signalling through elevator",
		zap.Int("pid", h.PID()),
		zap.Int("signal", int(sig)),
		zap.String("helper", e.elevator.Name()))
	return runSignalCommand(e.elevator, h.PID(), sig)
}
