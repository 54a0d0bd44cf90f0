package dispatch

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateHandler is returned by New when two handlers share a name.
	ErrDuplicateHandler = errors.New("duplicate handler name")

	ErrMissingArguments = errors.New("missing arguments")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// ArityError reports that fewer arguments than parameters were supplied.
type ArityError struct {
	Required int
	Got      int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("requires %d parameters, got %d", e.Required, e.Got)
}

func (e *ArityError) Unwrap() error { return ErrMissingArguments }

// ArgumentError reports the first argument that could not be coerced.
type ArgumentError struct {
	Param string
	Value string
	Err   error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("parameter %q: invalid value %q: %v", e.Param, e.Value, e.Err)
}

func (e *ArgumentError) Unwrap() []error { return []error{ErrInvalidArgument, e.Err} }
