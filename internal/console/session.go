// Package console holds the per-tool view state driven by an execution.
//
// A Session accumulates the output of the current run, tracks whether a
// process is running, and gates saving the output to a file, mirroring what
// a tool screen shows.
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/detonator/internal/integration/termination"
)

// ErrNothingToSave is returned by Save before a run has finished, or after
// its output has already been saved.
var ErrNothingToSave = errors.New("no finished output to save")

// State is a snapshot of a Session.
type State struct {
	Title     string
	Output    string
	PID       int
	Loading   bool
	AllowSave bool
	HasSaved  bool

	// Last is the termination event of the most recent run, if any.
	Last *termination.Event
}

// Session is the view state of one tool screen. It is safe for concurrent use.
type Session struct {
	mu sync.Mutex

	title     string
	out       strings.Builder
	pid       int
	loading   bool
	allowSave bool
	hasSaved  bool
	last      *termination.Event

	mirror io.Writer
	logger *zap.Logger
	done   chan struct{}
}

// Option configures a Session.
type Option func(*Session)

// WithMirror writes every appended piece of text to w as well.
func WithMirror(w io.Writer) Option {
	return func(s *Session) {
		s.mirror = w
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a session for the tool with the given title.
func New(title string, opts ...Option) *Session {
	s := &Session{
		title:  title,
		logger: zap.NewNop(),
		done:   make(chan struct{}),
	}
	close(s.done)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Begin marks the start of a run.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = true
	s.allowSave = false
	s.done = make(chan struct{})
}

// Started records the PID of the running process. It is ignored once the
// run has finished, since a short-lived process can terminate before the
// caller learns its PID.
func (s *Session) Started(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loading {
		return
	}
	s.pid = pid
}

// OnData appends a chunk of output. It matches engine.DataFunc.
func (s *Session) OnData(chunk string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLocked(chunk)
}

// OnTerminate appends the termination message and ends the run. It matches
// engine.TerminateFunc.
func (s *Session) OnTerminate(ev termination.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked("\n" + ev.Message() + "\n")
	s.pid = 0
	s.last = &ev
	s.allowSave = true
	s.hasSaved = false
	s.finishLocked()
}

// Fail records a run that never started.
func (s *Session) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendLocked("Error: " + err.Error() + "\n")
	s.pid = 0
	s.finishLocked()
}

// Clear discards the accumulated output.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out.Reset()
	s.allowSave = false
	s.hasSaved = false
}

// Done returns a channel that is closed when the current run has ended.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Save writes the output of the finished run to path. A run's output is
// saved at most once.
func (s *Session) Save(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allowSave {
		return ErrNothingToSave
	}
	if err := os.WriteFile(path, []byte(s.out.String()), 0o644); err != nil {
		return fmt.Errorf("save output: %w", err)
	}
	s.hasSaved = true
	s.allowSave = false
	s.logger.Info("output saved", zap.String("title", s.title), zap.String("path", path))
	return nil
}

// Snapshot returns the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Title:     s.title,
		Output:    s.out.String(),
		PID:       s.pid,
		Loading:   s.loading,
		AllowSave: s.allowSave,
		HasSaved:  s.hasSaved,
	}
	if s.last != nil {
		ev := *s.last
		st.Last = &ev
	}
	return st
}

func (s *Session) appendLocked(text string) {
	s.out.WriteString(text)
	if s.mirror != nil {
		if _, err := io.WriteString(s.mirror, text); err != nil {
			s.logger.Debug("mirror write failed", zap.Error(err))
		}
	}
}

func (s *Session) finishLocked() {
	if s.loading {
		s.loading = false
		close(s.done)
	}
}
