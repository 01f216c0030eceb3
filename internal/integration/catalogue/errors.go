package catalogue

import (
	"errors"
	"fmt"
)

// Errors returned by catalogue operations.
var (
	// ErrToolNotFound indicates no tool has the requested name.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidTool indicates a tool definition is incomplete.
	ErrInvalidTool = errors.New("invalid tool")

	// ErrDuplicateTool indicates two definitions in one file share a name.
	ErrDuplicateTool = errors.New("duplicate tool")

	// ErrUnsupportedFormat indicates a catalogue file with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported catalogue format")
)

// ParseError represents an error while parsing a catalogue file.
type ParseError struct {
	// Path is the file path that failed to parse.
	Path string
	// Line is the line number where the error occurred (if available).
	Line int
	// Column is the column number where the error occurred (if available).
	Column int
	// Message describes the parse error.
	Message string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("parse error in %s at line %d, column %d: %s", e.Path, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error in %s at line %d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error in %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
