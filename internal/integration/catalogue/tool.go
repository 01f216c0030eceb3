package catalogue

import (
	"fmt"

	"github.com/dshills/detonator/internal/integration/engine"
)

// Tool is one launchable external program.
type Tool struct {
	// Name is the unique key used on the command line.
	Name string `toml:"name" yaml:"name"`

	// Program is the executable to spawn.
	Program string `toml:"program" yaml:"program"`

	// Description is a one-line summary shown by list.
	Description string `toml:"description" yaml:"description"`

	// Dependencies are the binaries that must be on PATH. Defaults to Program.
	Dependencies []string `toml:"dependencies" yaml:"dependencies"`

	// Elevated requests the authorization helper.
	Elevated bool `toml:"elevated" yaml:"elevated"`

	// Mode is "direct" or "elevated". "elevated" is equivalent to Elevated.
	Mode string `toml:"mode" yaml:"mode"`

	// Blocking tools are run to completion and their output shown at once.
	Blocking bool `toml:"blocking" yaml:"blocking"`

	// Args are placed before the user's arguments.
	Args []string `toml:"args" yaml:"args"`
}

// Deps returns the binaries the tool needs.
func (t Tool) Deps() []string {
	if len(t.Dependencies) > 0 {
		return append([]string(nil), t.Dependencies...)
	}
	return []string{t.Program}
}

// Privilege returns the engine privilege mode. An unparsable Mode counts
// as direct; Validate rejects it.
func (t Tool) Privilege() engine.PrivilegeMode {
	if t.Elevated {
		return engine.Elevated
	}
	mode, _ := engine.ParsePrivilegeMode(t.Mode)
	return mode
}

// Request builds an execution request with extra appended to the defaults.
func (t Tool) Request(extra ...string) engine.Request {
	args := make([]string, 0, len(t.Args)+len(extra))
	args = append(args, t.Args...)
	args = append(args, extra...)
	return engine.Request{
		Program:   t.Program,
		Args:      args,
		Privilege: t.Privilege(),
	}
}

// Validate reports a problem with the tool definition, if any.
func (t Tool) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTool)
	}
	if t.Program == "" {
		return fmt.Errorf("%w: tool %q: missing program", ErrInvalidTool, t.Name)
	}
	if _, err := engine.ParsePrivilegeMode(t.Mode); err != nil {
		return fmt.Errorf("%w: tool %q: %v", ErrInvalidTool, t.Name, err)
	}
	for _, dep := range t.Dependencies {
		if dep == "" {
			return fmt.Errorf("%w: tool %q: empty dependency", ErrInvalidTool, t.Name)
		}
	}
	return nil
}

// String returns the tool name.
func (t Tool) String() string {
	return t.Name
}
