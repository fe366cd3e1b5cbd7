package gtfs

import (
	"fmt"
)

// ParseError is returned when a gtfs time string can't be read
type ParseError struct {
	Value  string
	Reason error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse gtfs time %q: %v", e.Value, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Reason
}

// LoadError is returned when a schedule source is missing required data or contains values that can't be read.
// File and Line are empty when the problem isn't tied to a single row
type LoadError struct {
	Source string
	File   string
	Line   int
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.File == "":
		return fmt.Sprintf("unable to load schedule from %s: %v", e.Source, e.Err)
	case e.Line == 0:
		return fmt.Sprintf("unable to load schedule from %s, file %s: %v", e.Source, e.File, e.Err)
	default:
		return fmt.Sprintf("unable to load schedule from %s, file %s, line %d: %v", e.Source, e.File, e.Line, e.Err)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
