package compute

import (
	"errors"
	"fmt"
)

// Driver-level errors. Drivers wrap them with the failing call so callers can
// match with errors.Is.
var (
	ErrNoPlatforms          = errors.New("compute: no platforms found")
	ErrNoDevices            = errors.New("compute: no devices found")
	ErrBuildFailed          = errors.New("compute: program build failed")
	ErrKernelNotFound       = errors.New("compute: kernel not found")
	ErrOutOfResources       = errors.New("compute: out of device resources")
	ErrInvalidBufferSize    = errors.New("compute: invalid buffer size")
	ErrInvalidWorkGroupSize = errors.New("compute: invalid work-group size")
	ErrArgKind              = errors.New("compute: kernel argument kind mismatch")
	ErrArgIndex             = errors.New("compute: kernel argument index out of range")
	ErrArgUnset             = errors.New("compute: kernel argument not set")
	ErrReleased             = errors.New("compute: handle already released")
	ErrForeignHandle        = errors.New("compute: handle belongs to another driver")
	ErrNotBuilt             = errors.New("compute: driver not compiled into this binary")
	ErrUnavailable          = errors.New("compute: driver unavailable")
	ErrUnknownDriver        = errors.New("compute: unknown driver")
)

// BuildError reports a failed program compilation together with the
// compiler log.
type BuildError struct {
	Driver string
	Log    string
	Err    error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("%s: %v", e.Driver, e.Err)
	}
	return fmt.Sprintf("%s: %v:\n%s", e.Driver, e.Err, e.Log)
}

// Unwrap returns the underlying error.
func (e *BuildError) Unwrap() error { return e.Err }

// Is reports ErrBuildFailed for every BuildError.
func (e *BuildError) Is(target error) bool { return target == ErrBuildFailed }
