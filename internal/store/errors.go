package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("node not found")
	ErrAlreadyExists = errors.New("node already exists")
	// ErrConflict covers reserved paths, an occupied parking slot, a
	// missing sibling and structural requests that cannot be honoured.
	ErrConflict  = errors.New("conflict")
	ErrExhausted = errors.New("no free child slot")
	ErrInvalid   = errors.New("invalid argument")
	ErrIO        = errors.New("i/o failure")
)

// IOError wraps a failed filesystem or version control call.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

func ioErr(op, path string, err error) error {
	return &IOError{Op: op, Path: path, Err: err}
}
