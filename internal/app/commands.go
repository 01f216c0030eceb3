package app

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/console"
	"github.com/dshills/detonator/internal/integration/catalogue"
	"github.com/dshills/detonator/internal/integration/engine"
	"github.com/dshills/detonator/internal/integration/termination"
)

// Exit codes for runs that never produced a termination event.
const (
	ExitSpawnFailed   = 1
	ExitCannotExecute = 126
	ExitNotFound      = 127
	ExitInterrupted   = 130
)

// List prints the catalogue.
func (app *Application) List() error {
	tw := tabwriter.NewWriter(app.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tPROGRAM\tMODE\tDESCRIPTION")
	for _, t := range app.catalogue.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Program, t.Privilege(), t.Description)
	}
	return tw.Flush()
}

// Check reports whether the named tool's dependencies are installed.
func (app *Application) Check(name string) error {
	tool, err := app.catalogue.Get(name)
	if err != nil {
		return err
	}

	report := app.checker.Check(tool.Deps()...)
	for _, s := range report.Statuses {
		if s.Available() {
			fmt.Fprintf(app.stdout, "ok       %s (%s)\n", s.Name, s.Path)
		} else {
			fmt.Fprintf(app.stdout, "missing  %s\n", s.Name)
		}
	}
	if !report.Available() {
		return &DependencyError{Tool: tool.Name, Missing: report.Missing()}
	}
	return nil
}

// RunOptions configures RunTool and Exec.
type RunOptions struct {
	// SavePath writes the output to a file once the run has finished.
	SavePath string
}

// RunTool runs a catalogue tool with the user's arguments appended, streams
// its output and returns the exit code to report.
func (app *Application) RunTool(ctx context.Context, name string, args []string, opts RunOptions) (int, error) {
	tool, err := app.catalogue.Get(name)
	if err != nil {
		return ExitSpawnFailed, err
	}

	if report := app.checker.Check(tool.Deps()...); !report.Available() {
		return ExitNotFound, &DependencyError{Tool: tool.Name, Missing: report.Missing()}
	}

	return app.runInteractive(ctx, tool.Name, tool.Request(args...), tool.Blocking, opts)
}

// Exec runs an arbitrary program the same way RunTool runs a tool.
func (app *Application) Exec(ctx context.Context, program string, args []string, elevated bool, opts RunOptions) (int, error) {
	if program == "" {
		return ExitSpawnFailed, usageError("exec [-elevated] <program> [args...]")
	}
	req := engine.Request{Program: program, Args: args}
	if elevated {
		req.Privilege = engine.Elevated
	}
	return app.runInteractive(ctx, program, req, false, opts)
}

// runInteractive drives one console session to completion. When ctx is
// done the process is cancelled and its termination still awaited.
func (app *Application) runInteractive(ctx context.Context, title string, req engine.Request, blocking bool, opts RunOptions) (int, error) {
	sess := console.New(title,
		console.WithMirror(app.stdout),
		console.WithLogger(app.logger))
	sess.Begin()

	var code int
	if blocking {
		res, err := app.engine.Run(ctx, req, nil)
		if err != nil {
			sess.Fail(err)
			return spawnExitCode(err), nil
		}
		sess.Started(res.PID)
		sess.OnData(res.Output)
		sess.OnTerminate(res.Event)
		code = ExitCode(res.Event)
	} else {
		out, err := app.engine.Execute(ctx, req, sess.OnData, sess.OnTerminate)
		if err != nil {
			sess.Fail(err)
			return spawnExitCode(err), nil
		}
		sess.Started(out.PID)

		select {
		case <-sess.Done():
		case <-ctx.Done():
			outcome, err := app.engine.Cancel(out.PID)
			if err != nil {
				app.logger.Warn("cancel", zap.Int("pid", out.PID), zap.Error(err))
			} else {
				fmt.Fprintf(app.stderr, "\ncancel %d: %s\n", out.PID, outcome)
			}
			<-sess.Done()
		}

		if st := sess.Snapshot(); st.Last != nil {
			code = ExitCode(*st.Last)
		}
	}

	if opts.SavePath != "" {
		if err := sess.Save(opts.SavePath); err != nil {
			return code, err
		}
		fmt.Fprintf(app.stderr, "output saved to %s\n", opts.SavePath)
	}
	return code, nil
}

// ExitCode maps a termination event to a shell-style exit status.
func ExitCode(ev termination.Event) int {
	switch ev.Classification() {
	case termination.Success:
		return 0
	case termination.ManuallyTerminated:
		return ExitInterrupted
	}
	if code, ok := ev.ExitCode(); ok {
		return code
	}
	if sig, ok := ev.SignalNumber(); ok {
		return 128 + sig
	}
	return ExitSpawnFailed
}

// spawnExitCode maps a spawn failure to a shell-style exit status.
func spawnExitCode(err error) int {
	var se *engine.SpawnError
	if !errors.As(err, &se) {
		return ExitSpawnFailed
	}
	switch se.Reason {
	case engine.ReasonNotFound:
		return ExitNotFound
	case engine.ReasonPermissionDenied, engine.ReasonElevationDenied:
		return ExitCannotExecute
	case engine.ReasonCanceled:
		return ExitInterrupted
	default:
		return ExitSpawnFailed
	}
}

// resolveTool is shared by the shell commands that accept a tool name.
func (app *Application) resolveTool(name string) (catalogue.Tool, error) {
	if name == "" {
		return catalogue.Tool{}, usageError("missing tool name")
	}
	return app.catalogue.Get(name)
}
