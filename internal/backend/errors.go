package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a StorageError.
type ErrorKind string

const (
	// Backend read or write failed. Recoverable: the caller's prior state is
	// intact and the operation may be retried.
	KindIOFailure ErrorKind = "io_failure"

	// Persisted bytes do not parse into valid records. Adapters handle this
	// themselves by clearing the backing data; it is surfaced only when the
	// self-heal itself fails.
	KindDecodeFailure ErrorKind = "decode_failure"

	// A policy constraint refused the operation. Used only for the pin
	// watermark, and then only as the transport under the PinLimitReached
	// outcome.
	KindConstraintViolation ErrorKind = "constraint_violation"
)

// StorageError is the structured error every backend operation reports.
type StorageError struct {
	Kind    ErrorKind
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface
func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Backend, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Backend, e.Op, e.Kind)
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the operation can succeed.
func (e *StorageError) Retryable() bool {
	return e.Kind == KindIOFailure
}

// IOError wraps a failed backend read/write.
func IOError(backend, op string, err error) *StorageError {
	return &StorageError{Kind: KindIOFailure, Backend: backend, Op: op, Err: err}
}

// DecodeError wraps undecodable persisted state.
func DecodeError(backend, op string, err error) *StorageError {
	return &StorageError{Kind: KindDecodeFailure, Backend: backend, Op: op, Err: err}
}

// ConstraintError wraps a policy refusal.
func ConstraintError(backend, op string, err error) *StorageError {
	return &StorageError{Kind: KindConstraintViolation, Backend: backend, Op: op, Err: err}
}

// IsIOFailure checks if an error (anywhere in its chain) is a recoverable I/O failure.
func IsIOFailure(err error) bool {
	return kindOf(err) == KindIOFailure
}

// IsDecodeFailure checks if an error is a corruption report.
func IsDecodeFailure(err error) bool {
	return kindOf(err) == KindDecodeFailure
}

func kindOf(err error) ErrorKind {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// ErrClosed is returned by adapters used after Close.
var ErrClosed = errors.New("backend is closed")

// ErrUnsupportedScheme is returned by FromDSN for schemes no factory claims.
var ErrUnsupportedScheme = errors.New("unsupported backend scheme")
