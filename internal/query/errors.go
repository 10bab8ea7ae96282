package query

import (
	"errors"
	"fmt"
)

// ErrNotFound signals a lookup miss. It is never fatal.
var ErrNotFound = errors.New("not found")

// ErrBusy is returned when a submission arrives while another is in flight.
var ErrBusy = &BusyError{}

// ValidationError reports bad input that never reached the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}
	return fmt.Sprintf("validation error [%s]: %s", e.Field, e.Reason)
}

// BusyError reports that the orchestrator is already processing a submission.
type BusyError struct{}

func (e *BusyError) Error() string {
	return "a query is already in progress; wait for it to finish"
}

// Failure is the normalised failure of one answering call.
type Failure struct {
	Provider   Provider
	Reason     string
	StatusCode int // zero when no HTTP response was received
	Retryable  bool
	Err        error
}

func (f *Failure) Error() string {
	msg := f.Reason
	if msg == "" && f.Err != nil {
		msg = f.Err.Error()
	}
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s failed (status %d): %s", f.Provider, f.StatusCode, msg)
	}
	return fmt.Sprintf("%s failed: %s", f.Provider, msg)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// RetryableStatus reports whether an HTTP status is worth retrying on another backend.
func RetryableStatus(code int) bool {
	switch {
	case code == 408, code == 429:
		return true
	case code >= 500:
		return true
	}
	return false
}

// AsFailure converts any error into a *Failure. Errors that are not already
// failures are treated as retryable transport errors.
func AsFailure(err error, p Provider) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Provider: p, Reason: err.Error(), Retryable: true, Err: err}
}

// DuplicateRecordError reports an append of a query id already in history.
type DuplicateRecordError struct {
	QueryID string
}

func (e *DuplicateRecordError) Error() string {
	return fmt.Sprintf("duplicate history record %q", e.QueryID)
}
