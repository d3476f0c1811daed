package models

import (
	"errors"
	"fmt"
)

// Sentinels for flow control inside the forecaster.
var (
	// ErrTrainingInProgress is returned to non-blocking callers when the
	// key already has an in-flight training run.
	ErrTrainingInProgress = errors.New("training already in progress")

	// ErrModelNotFound reports a model-store miss. Never surfaced to end
	// callers; the forecaster retrains instead.
	ErrModelNotFound = errors.New("model not found")
)

// ValidationError covers malformed, non-monotonic or non-finite input.
// Rejected immediately, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Reason
}

// DataInsufficientError reports too few points for the requested
// operation. The caller may retry after more data accrues.
type DataInsufficientError struct {
	Key    Key
	Points int
	Min    int
	Op     string
}

func (e *DataInsufficientError) Error() string {
	return fmt.Sprintf("%s %s: insufficient data: %d points, minimum %d", e.Op, e.Key, e.Points, e.Min)
}

// TrainingFailedError reports a numerical failure, an exhausted grid or a
// training timeout.
type TrainingFailedError struct {
	Key     Key
	Reason  string
	Timeout bool
	Err     error
}

func (e *TrainingFailedError) Error() string {
	msg := fmt.Sprintf("training %s failed: %s", e.Key, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TrainingFailedError) Unwrap() error { return e.Err }

// StorageUnavailableError reports model-store I/O failure. Every caller
// must treat it identically to a cache miss.
type StorageUnavailableError struct {
	Op  string
	Err error
}

func (e *StorageUnavailableError) Error() string {
	return fmt.Sprintf("model storage unavailable during %s: %v", e.Op, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// IsStorageUnavailable reports whether err is (or wraps) a storage
// availability failure.
func IsStorageUnavailable(err error) bool {
	var se *StorageUnavailableError
	return errors.As(err, &se)
}
