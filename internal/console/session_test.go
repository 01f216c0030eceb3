package console

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/detonator/internal/integration/termination"
)

func TestSession_Run(t *testing.T) {
	var mirror bytes.Buffer
	s := New("Bully", WithMirror(&mirror))

	s.Begin()
	s.Started(4242)

	st := s.Snapshot()
	if !st.Loading || st.PID != 4242 || st.AllowSave {
		t.Errorf("running state = %+v", st)
	}
	select {
	case <-s.Done():
		t.Fatal("Done closed while running")
	default:
	}

	s.OnData("scanning\n")
	s.OnTerminate(termination.Exited(0))

	st = s.Snapshot()
	want := "scanning\n\nProcess completed successfully.\n"
	if st.Output != want {
		t.Errorf("Output = %q, want %q", st.Output, want)
	}
	if mirror.String() != want {
		t.Errorf("mirror = %q, want %q", mirror.String(), want)
	}
	if st.Loading || st.PID != 0 || !st.AllowSave || st.HasSaved {
		t.Errorf("finished state = %+v", st)
	}
	if st.Last == nil || st.Last.Classification() != termination.Success {
		t.Errorf("Last = %v", st.Last)
	}
	select {
	case <-s.Done():
	default:
		t.Error("Done should be closed after termination")
	}
}

func TestSession_TerminationMessages(t *testing.T) {
	tests := []struct {
		name string
		ev   termination.Event
		want string
	}{
		{"manual", termination.Signaled(15), "Process was manually terminated."},
		{"failed", termination.Exited(2), "Process terminated with exit code: 2 and signal code: null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("tool")
			s.Begin()
			s.OnTerminate(tt.ev)
			if got := s.Snapshot().Output; !strings.Contains(got, tt.want) {
				t.Errorf("Output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestSession_Save(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	s := New("Foremost")

	if err := s.Save(path); !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("save before run: expected ErrNothingToSave, got %v", err)
	}

	s.Begin()
	s.OnData("carved 3 files\n")
	if err := s.Save(path); !errors.Is(err, ErrNothingToSave) {
		t.Fatalf("save while running: expected ErrNothingToSave, got %v", err)
	}
	s.OnTerminate(termination.Exited(0))

	if err := s.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "carved 3 files\n") {
		t.Errorf("file = %q", data)
	}

	st := s.Snapshot()
	if !st.HasSaved || st.AllowSave {
		t.Errorf("after save: %+v", st)
	}
	if err := s.Save(path); !errors.Is(err, ErrNothingToSave) {
		t.Errorf("second save: expected ErrNothingToSave, got %v", err)
	}
}

func TestSession_Fail(t *testing.T) {
	s := New("tool")
	s.Begin()
	s.Fail(errors.New("spawn rcrack: program not found"))

	st := s.Snapshot()
	if st.Output != "Error: spawn rcrack: program not found\n" {
		t.Errorf("Output = %q", st.Output)
	}
	if st.Loading || st.AllowSave {
		t.Errorf("state = %+v", st)
	}
	<-s.Done()
}

func TestSession_Clear(t *testing.T) {
	s := New("tool")
	s.Begin()
	s.OnData("x")
	s.OnTerminate(termination.Exited(0))
	s.Clear()

	st := s.Snapshot()
	if st.Output != "" || st.AllowSave {
		t.Errorf("after clear: %+v", st)
	}
}

func TestSession_DoneBeforeBegin(t *testing.T) {
	select {
	case <-New("idle").Done():
	default:
		t.Error("idle session should report done")
	}
}

func TestSession_StartedAfterTermination(t *testing.T) {
	s := New("true")
	s.Begin()
	s.OnTerminate(termination.Exited(0))
	s.Started(4242)

	st := s.Snapshot()
	if st.Loading || st.PID != 0 {
		t.Errorf("finished session state = %+v", st)
	}
}
