package types

import (
	"fmt"

	"emperror.dev/errors"
)

const (
	// ErrInvalidConfiguration is returned for a non-positive interval or timeout.
	ErrInvalidConfiguration = errors.Sentinel("invalid configuration")

	// ErrSampleUnavailable means the queried process has exited or cannot be read.
	ErrSampleUnavailable = errors.Sentinel("sample unavailable")

	// ErrEmptySeries is returned when statistics are requested from a series
	// without samples, e.g. a target that exited faster than one interval.
	ErrEmptySeries = errors.Sentinel("no samples collected")

	// ErrNonMonotonic is returned when a sample would move elapsed time backwards.
	ErrNonMonotonic = errors.Sentinel("sample elapsed time is not monotonic")

	// ErrRunInProgress is returned when a second run is started on a busy loop.
	ErrRunInProgress = errors.Sentinel("a monitoring run is already in progress")
)

// LaunchError reports that the target could not be started.
type LaunchError struct {
	Name string
	Args []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Name, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NewLaunchError wraps err as a LaunchError for the given command.
func NewLaunchError(name string, args []string, err error) *LaunchError {
	return &LaunchError{
		Name: name,
		Args: append([]string(nil), args...),
		Err:  err,
	}
}

// IsLaunchError reports whether err carries a LaunchError.
func IsLaunchError(err error) bool {
	var le *LaunchError
	return errors.As(err, &le)
}
