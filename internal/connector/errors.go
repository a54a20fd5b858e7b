package connector

import (
	"errors"
	"fmt"
)

// ErrStorage is matched by every failed storage primitive.
var ErrStorage = errors.New("storage operation failed")

// ErrVersionRegression indicates a write would lower a domain's recorded version.
var ErrVersionRegression = errors.New("domain version may not decrease")

// Error records which primitive failed on which table.
type Error struct {
	Op    string
	Table string
	Err   error
}

// Wrap returns nil when err is nil, otherwise an *Error.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Op: op, Table: table, Err: err}
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes every *Error match ErrStorage.
func (e *Error) Is(target error) bool {
	return target == ErrStorage //nolint:errorlint // sentinel identity check
}
