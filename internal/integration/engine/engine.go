package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/integration/output"
	"github.com/dshills/detonator/internal/integration/process"
	"github.com/dshills/detonator/internal/integration/termination"
)

// Default configuration values.
const (
	// DefaultDrainTimeout bounds how long output is read after the process
	// has exited. Descendants that inherited the output pipe can otherwise
	// hold it open indefinitely.
	DefaultDrainTimeout = 2 * time.Second

	// killGrace is how long Shutdown waits after SIGKILL.
	killGrace = time.Second
)

// Engine spawns and supervises external programs.
//
// Engine is safe for concurrent use.
type Engine struct {
	registry     *process.Registry
	elevator     Elevator
	logger       *zap.Logger
	chunkSize    int
	drainTimeout time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup

	// running holds the handles spawned by this engine, keyed by execution ID.
	running sync.Map
}

// Option configures an Engine.
type Option func(*Engine)

// WithRegistry sets the registry handles are published to.
// Defaults to process.DefaultRegistry.
func WithRegistry(r *process.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithElevator sets the authorization helper for elevated requests.
// A nil elevator disables elevated mode.
func WithElevator(el Elevator) Option {
	return func(e *Engine) {
		e.elevator = el
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithChunkSize sets the output read buffer size.
func WithChunkSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithDrainTimeout sets how long output is read after the process exits.
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.drainTimeout = d
		}
	}
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry:     process.DefaultRegistry,
		elevator:     Pkexec(),
		logger:       zap.NewNop(),
		chunkSize:    output.DefaultChunkSize,
		drainTimeout: DefaultDrainTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry handles are published to.
func (e *Engine) Registry() *process.Registry {
	return e.registry
}

// Elevator returns the configured authorization helper, or nil.
func (e *Engine) Elevator() Elevator {
	return e.elevator
}

// execution is the supervision state of one spawned process.
type execution struct {
	cmd     *exec.Cmd
	handle  *process.Handle
	channel *output.Channel
	pipe    *os.File
	gate    *gate
	scanner *tokenScanner

	readerDone chan struct{}
	logger     *zap.Logger
}

// Execute spawns req and returns once the process is running.
//
// onData receives output chunks and onTerminate receives exactly one
// termination event, both from a supervising goroutine. Either may be nil.
// If the process could not be started, Execute returns a *SpawnError and
// neither callback is invoked.
//
// ctx bounds only the spawn itself, including the wait for authorization in
// elevated mode; it does not bound the lifetime of the process.
func (e *Engine) Execute(ctx context.Context, req Request, onData DataFunc, onTerminate TerminateFunc) (Outcome, error) {
	req = req.clone()

	if req.Program == "" {
		return Outcome{}, &SpawnError{Reason: ReasonInvalidRequest, Message: "program is required", Err: ErrEmptyProgram}
	}
	if err := ctx.Err(); err != nil {
		return Outcome{}, &SpawnError{Program: req.Program, Reason: ReasonCanceled, Message: "canceled before spawn", Err: err}
	}

	if err := checkDir(req.Dir); err != nil {
		return Outcome{}, &SpawnError{Program: req.Program, Reason: ReasonInvalidRequest, Message: err.Error(), Err: err}
	}

	elevated := req.Privilege == Elevated
	if elevated && e.elevator == nil {
		return Outcome{}, &SpawnError{Program: req.Program, Reason: ReasonInvalidRequest, Message: ErrNoElevator.Error(), Err: ErrNoElevator}
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Outcome{}, &SpawnError{Program: req.Program, Reason: ReasonShutdown, Message: ErrEngineShutdown.Error(), Err: ErrEngineShutdown}
	}
	e.wg.Add(1)
	e.mu.Unlock()

	out, err := e.spawn(ctx, req, elevated, onData, onTerminate)
	if err != nil {
		e.logger.Info("spawn failed",
			zap.String("program", req.Program),
			zap.Bool("elevated", elevated),
			zap.Error(err))
	}
	return out, err
}

func (e *Engine) spawn(ctx context.Context, req Request, elevated bool, onData DataFunc, onTerminate TerminateFunc) (Outcome, error) {
	execID := uuid.NewString()
	logger := e.logger.With(
		zap.String("execution", execID),
		zap.String("program", req.Program),
		zap.Bool("elevated", elevated))

	var (
		cmd     *exec.Cmd
		scanner *tokenScanner
	)
	if elevated {
		token := newGateToken()
		scanner = newTokenScanner(token)
		name, args := e.elevator.Command(trampolineShell, trampoline(token, req.Program, req.Args))
		cmd = exec.Command(name, args...)
	} else {
		cmd = exec.Command(req.Program, req.Args...)
	}
	cmd.Dir = req.Dir
	cmd.Env = req.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		e.wg.Done()
		return Outcome{}, &SpawnError{Program: req.Program, Reason: ReasonUnknown, Message: "create output pipe", Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		e.wg.Done()
		se := newStartError(req.Program, err)
		if elevated {
			se.Message = fmt.Sprintf("%s: %s", e.elevator.Name(), se.Message)
		}
		return Outcome{}, se
	}
	// The child holds its own copy; ours must go so EOF follows exit.
	pw.Close()

	h := process.NewHandle(process.Spec{
		ExecutionID: execID,
		Program:     req.Program,
		Args:        req.Args,
		Elevated:    elevated,
	}, cmd.Process)
	logger = logger.With(zap.Int("pid", h.PID()))

	if err := e.registry.Register(h); err != nil {
		logger.Warn("register process", zap.Error(err))
	}
	e.running.Store(execID, h)

	ch := output.NewChannel(onData, onTerminate, output.WithLogger(logger))
	ch.StartRecording()

	x := &execution{
		cmd:        cmd,
		handle:     h,
		channel:    ch,
		pipe:       pr,
		gate:       newGate(!elevated),
		scanner:    scanner,
		readerDone: make(chan struct{}),
		logger:     logger,
	}

	go e.read(x)
	go e.supervise(x)

	if elevated {
		if err := e.awaitAuthorization(ctx, x, req.Program); err != nil {
			return Outcome{}, err
		}
	}

	logger.Info("process started", zap.Strings("args", req.Args))

	return Outcome{
		PID:         h.PID(),
		ExecutionID: execID,
		Output:      ch.StopRecording(),
	}, nil
}

// awaitAuthorization blocks until the helper has authorized the request,
// the helper has exited without doing so, or ctx is done.
func (e *Engine) awaitAuthorization(ctx context.Context, x *execution, program string) error {
	select {
	case <-x.gate.decided:
	case <-ctx.Done():
		if x.gate.transition(gateAbandoned) {
			x.channel.Abort()
			if err := x.handle.Kill(); err != nil && !errors.Is(err, process.ErrProcessDone) {
				x.logger.Debug("kill abandoned helper", zap.Error(err))
			}
			return &SpawnError{Program: program, Reason: ReasonCanceled, Message: "canceled while waiting for authorization", Err: ctx.Err()}
		}
		<-x.gate.decided
	}

	if x.gate.current() == gateOpen {
		return nil
	}

	<-x.gate.exited
	return e.denialError(program, x.gate.exit, x.gate.noise)
}

// denialError builds the spawn error for a helper that exited before the
// readiness token.
func (e *Engine) denialError(program string, ev termination.Event, noise string) *SpawnError {
	code, ok := ev.ExitCode()
	if ok && code == gateMissingProgram {
		msg := "program not found"
		if noise != "" {
			msg = noise
		}
		return &SpawnError{Program: program, Reason: ReasonNotFound, Message: msg, Err: exec.ErrNotFound}
	}

	var msg string
	if ok {
		msg = e.elevator.DenialMessage(code)
	} else {
		msg = fmt.Sprintf("%s ended before authorizing (%s)", e.elevator.Name(), ev)
	}
	if noise != "" {
		msg = msg + ": " + noise
	}
	return &SpawnError{Program: program, Reason: ReasonElevationDenied, Message: msg, Err: ErrElevationDenied}
}

// read pumps the output pipe into the channel. In elevated mode output is
// withheld until the readiness token has been seen.
func (e *Engine) read(x *execution) {
	defer close(x.readerDone)

	if x.scanner != nil {
		buf := make([]byte, e.chunkSize)
		for {
			n, err := x.pipe.Read(buf)
			if n > 0 {
				found, noise, rest := x.scanner.feed(buf[:n])
				if found {
					if !x.gate.transition(gateOpen) {
						return
					}
					if len(noise) > 0 {
						x.logger.Debug("helper output before authorization", zap.ByteString("output", noise))
						x.channel.Deliver(string(noise))
					}
					if len(rest) > 0 {
						x.channel.Deliver(string(rest))
					}
					break
				}
			}
			if err != nil {
				return
			}
		}
	}

	if err := x.channel.Pump(x.pipe, e.chunkSize); err != nil {
		x.logger.Warn("read process output", zap.Error(err))
	}
}

// supervise reaps the process and emits its termination event after all of
// its output has been delivered.
func (e *Engine) supervise(x *execution) {
	defer e.wg.Done()

	if err := x.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			x.logger.Warn("wait for process", zap.Error(err))
		}
	}
	ev := termination.FromProcessState(x.cmd.ProcessState)

	select {
	case <-x.readerDone:
	case <-time.After(e.drainTimeout):
		x.logger.Debug("output still open after exit, closing")
		x.pipe.Close()
		<-x.readerDone
	}
	x.pipe.Close()

	h := x.handle
	h.MarkExited(ev.Signal != nil)
	e.registry.Remove(h)
	e.running.Delete(h.ExecutionID())

	if x.gate.current() != gateOpen {
		x.gate.transition(gateDenied)
		x.channel.Abort()
		x.gate.finish(x.scanner.noise(), ev)
		x.logger.Info("helper exited before authorization", zap.Stringer("event", ev))
		return
	}

	fields := []zap.Field{
		zap.Stringer("classification", ev.Classification()),
		zap.Duration("runtime", h.Runtime()),
		zap.Int("chunks", x.channel.Chunks()),
	}
	if code, ok := ev.ExitCode(); ok {
		fields = append(fields, zap.Int("code", code))
	}
	if sig, ok := ev.SignalNumber(); ok {
		fields = append(fields, zap.Int("signal", sig))
	}
	x.logger.Info("process terminated", fields...)

	x.channel.Close(ev)
}

// Active returns the processes spawned by this engine that have not yet
// been reaped, ordered by PID.
func (e *Engine) Active() []*process.Handle {
	var handles []*process.Handle
	e.running.Range(func(_, v any) bool {
		handles = append(handles, v.(*process.Handle))
		return true
	})
	sort.Slice(handles, func(i, j int) bool {
		return handles[i].PID() < handles[j].PID()
	})
	return handles
}

// Shutdown stops accepting requests and terminates every running process.
// Processes that are still running after timeout are killed.
func (e *Engine) Shutdown(timeout time.Duration) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	var result *multierror.Error

	for _, h := range e.Active() {
		h.RequestCancel()
		if err := e.signal(h, syscall.SIGTERM); err != nil && !errors.Is(err, process.ErrProcessDone) {
			result = multierror.Append(result, fmt.Errorf("terminate %s: %w", h, err))
		}
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return result.ErrorOrNil()
	case <-time.After(timeout):
	}

	remaining := e.Active()
	for _, h := range remaining {
		e.logger.Warn("process ignored SIGTERM, killing", zap.Int("pid", h.PID()), zap.String("program", h.Program()))
		if err := e.signal(h, syscall.SIGKILL); err != nil && !errors.Is(err, process.ErrProcessDone) {
			result = multierror.Append(result, fmt.Errorf("kill %s: %w", h, err))
		}
	}

	select {
	case <-done:
	case <-time.After(killGrace):
		result = multierror.Append(result, fmt.Errorf("%d processes still running after kill", len(e.Active())))
	}
	return result.ErrorOrNil()
}
