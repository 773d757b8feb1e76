package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Aggregation errors. These are recoverable: callers render a placeholder.
var (
	ErrEmptyGroup       = errors.New("empty group")
	ErrInsufficientData = errors.New("insufficient data")
	ErrEmptyResult      = errors.New("empty result")
	ErrUnknownField     = errors.New("unknown field")
	ErrInvalidBins      = errors.New("invalid bin boundaries")
)

// SourceNotFoundError reports a missing input file.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return fmt.Sprintf("source not found: %s", e.Path)
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// SchemaError lists required columns absent from the header row.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError reports a malformed cell. Line is 1-based and counts the header.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: column %s: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsRecoverable reports whether err is an aggregation-time error that a
// presentation layer should replace with a placeholder.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrEmptyGroup) ||
		errors.Is(err, ErrInsufficientData) ||
		errors.Is(err, ErrEmptyResult)
}
