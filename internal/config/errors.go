package config

import (
	"errors"
	"fmt"

	"github.com/dshills/detonator/internal/config/loader"
)

// Errors returned by configuration operations.
var (
	// ErrInvalidValue indicates a setting holds a value outside its domain.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownSetting indicates a setting path that does not exist.
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrFileNotFound indicates an explicitly requested config file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")
)

// ParseError represents an error while parsing a configuration file.
type ParseError = loader.ParseError

// ValueError describes a setting whose value was rejected.
type ValueError struct {
	// Path is the dotted setting path.
	Path string
	// Value is the rejected value.
	Value any
	// Message describes what is expected.
	Message string
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Path, e.Value, e.Message)
}

// Unwrap returns ErrInvalidValue so callers can match with errors.Is.
func (e *ValueError) Unwrap() error {
	return ErrInvalidValue
}
