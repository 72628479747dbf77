package errors

import (
	"errors"
	"fmt"
)

// Error kinds recorded for files that could not be processed.
var (
	// ErrInvalidLog marks a malformed or structurally incomplete battle record.
	ErrInvalidLog = errors.New("invalid log")

	// ErrIO marks a failure to read or write a file.
	ErrIO = errors.New("i/o error")
)

// Kind is the short name of an error kind, used in reports and storage.
type Kind string

const (
	KindInvalidLog Kind = "invalid_log"
	KindIO         Kind = "io"
)

// InvalidLogf returns an error wrapping ErrInvalidLog with a formatted reason.
func InvalidLogf(format string, args ...interface{}) error {
	return &kindError{kind: ErrInvalidLog, msg: fmt.Sprintf(format, args...)}
}

// IOError wraps err as an ErrIO failure of op on path.
// Returns nil if err is nil.
func IOError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{
		kind:  ErrIO,
		msg:   fmt.Sprintf("%s %s", op, path),
		cause: err,
	}
}

// KindOf classifies err. Anything that is not an invalid log is reported as I/O,
// since handlers only fail on input they cannot parse or files they cannot touch.
func KindOf(err error) Kind {
	if errors.Is(err, ErrInvalidLog) {
		return KindInvalidLog
	}
	return KindIO
}

type kindError struct {
	kind  error
	msg   string
	cause error
}

func (e *kindError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.kind, e.msg, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.kind, e.msg)
}

func (e *kindError) Is(target error) bool {
	return target == e.kind
}

func (e *kindError) Unwrap() error {
	return e.cause
}
