package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrTooManySegments is returned when a line has more segments than allowed.
	ErrTooManySegments = errors.New("too many commands")

	// ErrTooManyArgs is returned when one command has more words than allowed.
	ErrTooManyArgs = errors.New("too many arguments")

	// ErrMissingTarget is returned when a redirection has no file or descriptor.
	ErrMissingTarget = errors.New("missing redirection target")

	// ErrAmbiguousTarget is returned when a redirection is followed by more
	// than one word.
	ErrAmbiguousTarget = errors.New("ambiguous redirect")

	// ErrMissingCommand is returned when an operator has no command to apply to.
	ErrMissingCommand = errors.New("missing command")
)

// SyntaxError describes a line that cannot be turned into a pipeline.
type SyntaxError struct {
	Segment int      // index of the offending segment
	Op      Operator // operator next to the problem
	Err     error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error near %q: %v", e.Op.String(), e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}
