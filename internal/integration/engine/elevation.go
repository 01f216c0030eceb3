package engine

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"sync"
	"syscall"

	"github.com/google/uuid"

	"github.com/dshills/detonator/internal/integration/termination"
)

// Elevator wraps commands behind an interactive authorization helper.
type Elevator interface {
	// Name identifies the helper in logs and messages.
	Name() string

	// Command returns the helper invocation that runs program with args.
	Command(program string, args []string) (string, []string)

	// SignalCommand returns the helper invocation that delivers sig to pid.
	SignalCommand(pid int, sig syscall.Signal) (string, []string)

	// DenialMessage describes a helper exit code seen before authorization.
	DenialMessage(code int) string
}

// CommandElevator is an Elevator driven by a helper binary such as pkexec.
type CommandElevator struct {
	// HelperName is returned by Name. Defaults to Path.
	HelperName string

	// Path is the helper executable.
	Path string

	// Args are placed between the helper and the wrapped program.
	Args []string

	// Denials maps helper exit codes to messages.
	Denials map[int]string
}

// Pkexec returns the polkit helper used by desktop sessions.
func Pkexec() *CommandElevator {
	return &CommandElevator{
		HelperName: "pkexec",
		Path:       "pkexec",
		Denials: map[int]string{
			126: "authorization dialog was dismissed",
			127: "not authorized",
		},
	}
}

// Sudo returns a sudo helper that asks for the password via SUDO_ASKPASS.
func Sudo() *CommandElevator {
	return &CommandElevator{
		HelperName: "sudo",
		Path:       "sudo",
		Args:       []string{"-A", "--"},
		Denials: map[int]string{
			1: "authentication failed",
		},
	}
}

// Name implements Elevator.
func (e *CommandElevator) Name() string {
	if e.HelperName != "" {
		return e.HelperName
	}
	return e.Path
}

// Command implements Elevator.
func (e *CommandElevator) Command(program string, args []string) (string, []string) {
	out := make([]string, 0, len(e.Args)+1+len(args))
	out = append(out, e.Args...)
	out = append(out, program)
	out = append(out, args...)
	return e.Path, out
}

// SignalCommand implements Elevator.
func (e *CommandElevator) SignalCommand(pid int, sig syscall.Signal) (string, []string) {
	return e.Command("kill", []string{"-" + strconv.Itoa(int(sig)), strconv.Itoa(pid)})
}

// DenialMessage implements Elevator.
func (e *CommandElevator) DenialMessage(code int) string {
	if msg, ok := e.Denials[code]; ok {
		return msg
	}
	return fmt.Sprintf("%s exited with code %d before authorizing", e.Name(), code)
}

// gateMissingProgram is the trampoline exit code for a program that is not
// on the elevated PATH.
const gateMissingProgram = 123

// trampolineShell runs the readiness script in elevated mode.
const trampolineShell = "/bin/sh"

// trampoline returns the shell arguments that announce authorization with
// token and then replace themselves with program, keeping the PID.
func trampoline(token, program string, args []string) []string {
	script := fmt.Sprintf(
		`command -v "$1" >/dev/null 2>&1 || { printf '%%s: not found\n' "$1" >&2; exit %d; }; printf '%%s\n' %s; exec "$@"`,
		gateMissingProgram, token)

	out := make([]string, 0, 4+len(args))
	out = append(out, "-c", script, "detonator", program)
	out = append(out, args...)
	return out
}

// newGateToken returns a fresh readiness token.
func newGateToken() string {
	return "detonator-ready-" + uuid.NewString()
}

// runSignalCommand asks the elevator to deliver sig to pid.
func runSignalCommand(e Elevator, pid int, sig syscall.Signal) error {
	name, args := e.SignalCommand(pid, sig)
	out, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		msg := string(bytes.TrimSpace(out))
		if msg == "" {
			return fmt.Errorf("%s: signal %d to pid %d: %w", e.Name(), sig, pid, err)
		}
		return fmt.Errorf("%s: signal %d to pid %d: %s: %w", e.Name(), sig, pid, msg, err)
	}
	return nil
}

// gateState tracks whether an elevated process has become visible.
type gateState int

const (
	gatePending gateState = iota
	gateOpen
	gateDenied
	gateAbandoned
)

// maxGateNoise bounds helper output kept while waiting for authorization.
const maxGateNoise = 64 * 1024

// gate decides, exactly once, whether a spawned process is handed to the
// caller. Direct spawns start open.
type gate struct {
	mu      sync.Mutex
	state   gateState
	decided chan struct{}

	// Filled in when the process exits without opening the gate.
	noise  string
	exit   termination.Event
	exited chan struct{}
}

func newGate(open bool) *gate {
	g := &gate{
		decided: make(chan struct{}),
		exited:  make(chan struct{}),
	}
	if open {
		g.state = gateOpen
		close(g.decided)
	}
	return g
}

// transition moves a pending gate to s. Returns false if already decided.
func (g *gate) transition(s gateState) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state != gatePending {
		return false
	}
	g.state = s
	close(g.decided)
	return true
}

func (g *gate) current() gateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// finish records how a process that never opened the gate ended.
func (g *gate) finish(noise string, ev termination.Event) {
	g.mu.Lock()
	g.noise = noise
	g.exit = ev
	g.mu.Unlock()
	close(g.exited)
}

// tokenScanner looks for the readiness token in the helper's output.
type tokenScanner struct {
	line    []byte
	pending []byte
}

func newTokenScanner(token string) *tokenScanner {
	return &tokenScanner{line: []byte(token + "\n")}
}

// feed appends chunk and reports whether the token line has been seen.
// On success it returns the helper noise before the token and the program
// output after it.
func (s *tokenScanner) feed(chunk []byte) (found bool, noise, rest []byte) {
	s.pending = append(s.pending, chunk...)
	if i := bytes.Index(s.pending, s.line); i >= 0 {
		noise = s.pending[:i]
		rest = s.pending[i+len(s.line):]
		s.pending = nil
		return true, noise, rest
	}
	if over := len(s.pending) - maxGateNoise; over > 0 {
		s.pending = s.pending[over:]
	}
	return false, nil, nil
}

// noise returns helper output seen while the token never arrived.
func (s *tokenScanner) noise() string {
	if s == nil {
		return ""
	}
	return string(bytes.TrimSpace(s.pending))
}
