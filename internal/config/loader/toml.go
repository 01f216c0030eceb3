package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/pelletier/go-toml/v2"
)

// TOMLLoader loads configuration from TOML files.
type TOMLLoader struct {
	fs   FileSystem
	path string
}

// NewTOMLLoader creates a new TOML loader for the given path.
func NewTOMLLoader(path string) *TOMLLoader {
	return &TOMLLoader{
		fs:   DefaultFS(),
		path: path,
	}
}

// NewTOMLLoaderWithFS creates a TOML loader with a custom file system.
func NewTOMLLoaderWithFS(fsys FileSystem, path string) *TOMLLoader {
	return &TOMLLoader{
		fs:   fsys,
		path: path,
	}
}

// Path returns the configured path.
func (l *TOMLLoader) Path() string {
	return l.path
}

// LoadInto decodes the configured file over v. Keys not present in the
// file leave the corresponding fields of v untouched; unknown keys are an
// error. Returns false, nil if the file does not exist.
func (l *TOMLLoader) LoadInto(v any) (bool, error) {
	data, err := l.fs.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("reading config file %s: %w", l.path, err)
	}

	return true, l.decode(l.path, bytes.NewReader(data), v)
}

// LoadFromReader decodes configuration from an io.Reader over v.
func (l *TOMLLoader) LoadFromReader(r io.Reader, v any) error {
	return l.decode("<reader>", r, v)
}

func (l *TOMLLoader) decode(source string, r io.Reader, v any) error {
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		pe := &ParseError{
			Path:    source,
			Message: err.Error(),
			Err:     err,
		}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			pe.Line, pe.Column = derr.Position()
		}
		var serr *toml.StrictMissingError
		if errors.As(err, &serr) {
			pe.Message = serr.String()
		}
		return pe
	}
	return nil
}
