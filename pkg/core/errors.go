package core

import (
	"errors"
	"fmt"
)

// Validation and lifecycle errors
var (
	ErrInvalidJobName    = errors.New("jobs: invalid job name (must be alphanumeric, start with letter)")
	ErrJobNameTooLong    = errors.New("jobs: job name too long")
	ErrInvalidQueueName  = errors.New("jobs: invalid queue name")
	ErrQueueNameTooLong  = errors.New("jobs: queue name too long")
	ErrJobArgsTooLarge   = errors.New("jobs: job arguments exceed size limit")
	ErrJobNotOwned       = errors.New("jobs: job not owned by this worker")
	ErrDuplicateJob      = errors.New("jobs: equivalent job already in flight")
	ErrUniqueKeyTooLong  = errors.New("jobs: unique key exceeds maximum length")
	ErrStateRegression   = errors.New("jobs: status record cannot move backwards")
	ErrConflictingResult = errors.New("jobs: status record cannot carry both result and error")
	ErrMissingHandler    = errors.New("jobs: no handler registered for kind")
	ErrDuplicateHandler  = errors.New("jobs: handler registered twice for kind")
)

// ErrRevoked is the cancellation cause set on a handler's context when the
// job has been revoked.
var ErrRevoked = errors.New("jobs: job revoked")

// ErrHardTimeLimit is the cancellation cause set when a job exceeds its
// hard time limit.
var ErrHardTimeLimit = errors.New("jobs: hard time limit exceeded")

// UnknownJobError is returned when a job name does not resolve to a Kind.
type UnknownJobError struct {
	Name string
}

func (e *UnknownJobError) Error() string {
	return fmt.Sprintf("jobs: unknown job %q", e.Name)
}

// TransportError wraps a failure talking to the broker, result store or
// worker registry. The manager converts it into report fields instead of
// returning it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("jobs: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a *TransportError for op. A nil err stays nil.
func Transport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}
