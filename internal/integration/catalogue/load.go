package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// file is the on-disk layout shared by both formats.
type file struct {
	Tools []Tool `toml:"tools" yaml:"tools"`
}

// Load reads a catalogue file. The format is chosen by extension:
// .toml, or .yaml/.yml.
func Load(path string) ([]Tool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalogue %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes and validates catalogue data. path selects the format and
// is used in error messages.
func Parse(path string, data []byte) ([]Tool, error) {
	var (
		f   file
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = decodeTOML(path, data, &f)
	case ".yaml", ".yml":
		err = decodeYAML(path, data, &f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, err
	}

	if err := validate(f.Tools); err != nil {
		return nil, fmt.Errorf("catalogue %s: %w", path, err)
	}
	return f.Tools, nil
}

func decodeTOML(path string, data []byte, f *file) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		pe := &ParseError{Path: path, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, pe.Column = derr.Position()
		}
		return pe
	}
	return nil
}

func decodeYAML(path string, data []byte, f *file) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		if errors.Is(err, io.EOF) {
			// Empty document.
			return nil
		}
		pe := &ParseError{Path: path, Message: err.Error(), Err: err}
		var line int
		if _, scanErr := fmt.Sscanf(err.Error(), "yaml: line %d:", &line); scanErr == nil {
			pe.Line = line
		}
		return pe
	}
	return nil
}

// validate checks every tool and reports all problems at once.
func validate(tools []Tool) error {
	var result *multierror.Error
	seen := make(map[string]bool, len(tools))
	for i, t := range tools {
		if err := t.Validate(); err != nil {
			result = multierror.Append(result, fmt.Errorf("tools[%d]: %w", i, err))
			continue
		}
		if seen[t.Name] {
			result = multierror.Append(result, fmt.Errorf("tools[%d]: %w: %s", i, ErrDuplicateTool, t.Name))
			continue
		}
		seen[t.Name] = true
	}
	return result.ErrorOrNil()
}
