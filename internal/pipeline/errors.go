package pipeline

import (
	"errors"
	"fmt"
)

// TransientError marks a recoverable stage failure (model endpoint down,
// store timeout). The worker retries these with backoff and dead-letters
// after bounded attempts.
type TransientError struct {
	Stage string
	Err   error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s stage: %v", e.Stage, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a recoverable stage failure
func Transient(stage string, err error) error {
	return &TransientError{Stage: stage, Err: err}
}

// IsTransient reports whether err is a recoverable stage failure
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MalformedReportError marks a non-recoverable failure: the report cannot be
// processed regardless of retries and goes straight to the dead-letter queue.
type MalformedReportError struct {
	ReportID int64
	Reason   string
}

func (e *MalformedReportError) Error() string {
	return fmt.Sprintf("malformed report %d: %s", e.ReportID, e.Reason)
}

// IsMalformed reports whether err is a non-recoverable report failure
func IsMalformed(err error) bool {
	var me *MalformedReportError
	return errors.As(err, &me)
}
