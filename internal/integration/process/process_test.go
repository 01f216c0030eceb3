package process

import (
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

func startHandle(t *testing.T, name string, args ...string) (*Handle, *exec.Cmd) {
	t.Helper()
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start %s: %v", name, err)
	}
	h := NewHandle(Spec{ExecutionID: "exec-1", Program: name, Args: args}, cmd.Process)
	return h, cmd
}

func reap(h *Handle, cmd *exec.Cmd) {
	_ = cmd.Wait()
	signaled := false
	if ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus); ok {
		signaled = ws.Signaled()
	}
	h.MarkExited(signaled)
}

func TestNewHandle(t *testing.T) {
	args := []string{"10"}
	h, cmd := startHandle(t, "sleep", args...)
	defer func() {
		_ = h.Kill()
		reap(h, cmd)
	}()

	if h.PID() <= 0 {
		t.Errorf("expected positive PID, got %d", h.PID())
	}
	if h.ExecutionID() != "exec-1" {
		t.Errorf("expected execution ID 'exec-1', got %q", h.ExecutionID())
	}
	if h.Program() != "sleep" {
		t.Errorf("expected program 'sleep', got %q", h.Program())
	}
	if h.State() != StateRunning {
		t.Errorf("expected StateRunning, got %v", h.State())
	}
	if !h.Alive() || h.HasExited() {
		t.Error("expected handle to be alive")
	}
	if h.Started().IsZero() {
		t.Error("expected spawn time to be set")
	}
	if h.Elevated() {
		t.Error("expected direct handle")
	}

	args[0] = "mutated"
	if got := h.Args(); got[0] != "10" {
		t.Errorf("handle args changed with caller slice: %v", got)
	}
	got := h.Args()
	got[0] = "mutated"
	if h.Args()[0] != "10" {
		t.Error("Args() must return a copy")
	}
}

func TestHandle_NilProcess(t *testing.T) {
	h := NewHandle(Spec{Program: "x"}, nil)
	if h.PID() != -1 {
		t.Errorf("expected PID -1, got %d", h.PID())
	}
	if err := h.Terminate(); !errors.Is(err, ErrProcessNotStarted) {
		t.Errorf("expected ErrProcessNotStarted, got %v", err)
	}
}

func TestHandle_TerminateAndReap(t *testing.T) {
	h, cmd := startHandle(t, "sleep", "10")

	if err := h.Terminate(); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	reap(h, cmd)

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("done channel not closed")
	}

	if h.State() != StateKilled {
		t.Errorf("expected StateKilled, got %v", h.State())
	}
	if err := h.Terminate(); !errors.Is(err, ErrProcessDone) {
		t.Errorf("expected ErrProcessDone after reap, got %v", err)
	}
}

func TestHandle_ExitedState(t *testing.T) {
	h, cmd := startHandle(t, "true")
	reap(h, cmd)

	if h.State() != StateExited {
		t.Errorf("expected StateExited, got %v", h.State())
	}
	if h.Alive() {
		t.Error("expected handle not alive")
	}

	// Second mark is ignored.
	h.MarkExited(true)
	if h.State() != StateExited {
		t.Errorf("state changed on second MarkExited: %v", h.State())
	}
}

func TestHandle_RequestCancel(t *testing.T) {
	h := NewHandle(Spec{Program: "x"}, nil)

	if h.CancelRequested() {
		t.Error("expected no cancel request initially")
	}
	if !h.RequestCancel() {
		t.Error("first RequestCancel should succeed")
	}
	if h.RequestCancel() {
		t.Error("second RequestCancel should report already requested")
	}
	h.ClearCancel()
	if h.CancelRequested() {
		t.Error("expected cancel request cleared")
	}
}

func TestHandle_Stats(t *testing.T) {
	h, cmd := startHandle(t, "sleep", "10")
	defer func() {
		_ = h.Kill()
		reap(h, cmd)
	}()

	stats, err := h.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RSS == 0 {
		t.Error("expected non-zero RSS")
	}
	if stats.Threads <= 0 {
		t.Errorf("expected at least one thread, got %d", stats.Threads)
	}
}

func TestHandle_StatsAfterExit(t *testing.T) {
	h, cmd := startHandle(t, "true")
	reap(h, cmd)

	if _, err := h.Stats(); !errors.Is(err, ErrProcessDone) {
		t.Errorf("expected ErrProcessDone, got %v", err)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateRunning, "running"},
		{StateExited, "exited"},
		{StateKilled, "killed"},
		{State(99), "unknown(99)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
