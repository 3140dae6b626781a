package model

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks a bug in the engine itself, such as a cycle
// that is not strongly connected. A run that hits it emits no result.
var ErrInvariantViolation = errors.New("engine invariant violation")

// ParseFailure means a front end could not produce a SourceUnit for one file.
// It is isolated to that file.
type ParseFailure struct {
	Path   string
	Reason string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Path, e.Reason)
}
