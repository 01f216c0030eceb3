package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/integration/output"
	"github.com/dshills/detonator/internal/integration/termination"
)

// Run executes req and waits for it to terminate, returning all of its
// output. onData, if set, also sees every chunk as it arrives.
//
// If ctx is done first the process is cancelled and Run keeps waiting for
// its termination event.
func (e *Engine) Run(ctx context.Context, req Request, onData DataFunc) (Result, error) {
	acc := output.NewAccumulator()
	done := make(chan termination.Event, 1)

	out, err := e.Execute(ctx, req,
		func(chunk string) {
			acc.Append(chunk)
			if onData != nil {
				onData(chunk)
			}
		},
		func(ev termination.Event) { done <- ev },
	)
	if err != nil {
		return Result{}, err
	}

	var ev termination.Event
	select {
	case ev = <-done:
	case <-ctx.Done():
		if _, err := e.Cancel(out.PID); err != nil {
			e.logger.Warn("cancel on context done", zap.Int("pid", out.PID), zap.Error(err))
		}
		ev = <-done
	}

	return Result{
		PID:         out.PID,
		ExecutionID: out.ExecutionID,
		Output:      acc.String(),
		Event:       ev,
	}, nil
}
