// Package availability checks whether the binaries a tool needs are installed.
package availability

import (
	"os/exec"
	"sort"
	"strings"
)

// LookPathFunc resolves a command name to a path.
type LookPathFunc func(name string) (string, error)

// Checker resolves dependencies on PATH.
type Checker struct {
	lookPath LookPathFunc
}

// Option configures a Checker.
type Option func(*Checker)

// WithLookPath replaces exec.LookPath, mainly for tests.
func WithLookPath(fn LookPathFunc) Option {
	return func(c *Checker) {
		if fn != nil {
			c.lookPath = fn
		}
	}
}

// NewChecker creates a checker.
func NewChecker(opts ...Option) *Checker {
	c := &Checker{lookPath: exec.LookPath}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status is the resolution of one dependency.
type Status struct {
	Name string
	Path string
	Err  error
}

// Available reports whether the dependency was found.
func (s Status) Available() bool {
	return s.Err == nil
}

// Report is the result of checking a set of dependencies.
type Report struct {
	Statuses []Status
}

// Available reports whether every dependency was found.
func (r Report) Available() bool {
	for _, s := range r.Statuses {
		if !s.Available() {
			return false
		}
	}
	return true
}

// Missing returns the names of dependencies that were not found.
func (r Report) Missing() []string {
	var missing []string
	for _, s := range r.Statuses {
		if !s.Available() {
			missing = append(missing, s.Name)
		}
	}
	return missing
}

// String returns a summary such as "missing: bully, reaver".
func (r Report) String() string {
	if missing := r.Missing(); len(missing) > 0 {
		return "missing: " + strings.Join(missing, ", ")
	}
	return "all dependencies available"
}

// Check resolves every dependency. Duplicates are checked once and the
// report is ordered by name.
func (c *Checker) Check(deps ...string) Report {
	seen := make(map[string]bool, len(deps))
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		names = append(names, d)
	}
	sort.Strings(names)

	r := Report{Statuses: make([]Status, 0, len(names))}
	for _, name := range names {
		path, err := c.lookPath(name)
		r.Statuses = append(r.Statuses, Status{Name: name, Path: path, Err: err})
	}
	return r
}
