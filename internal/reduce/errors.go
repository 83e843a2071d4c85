package reduce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/gpureduce/internal/compute"
)

// Common errors.
var (
	ErrEmptyInput     = errors.New("reduce: empty input")
	ErrSizeMismatch   = errors.New("reduce: host and device sizes differ")
	ErrInvalidConfig  = errors.New("reduce: invalid configuration")
	ErrOutputTooSmall = errors.New("reduce: output buffer smaller than work-group count")
)

// Stage names the step of context construction that failed.
type Stage string

// Construction stages, in acquisition order.
const (
	StagePlatform Stage = "platform"
	StageDevice   Stage = "device"
	StageContext  Stage = "context"
	StageQueue    Stage = "queue"
	StageBuild    Stage = "build"
	StageKernel   Stage = "kernel"
)

// ConstructionError reports that a Context could not be created. No handle
// acquired before the failure is left allocated.
type ConstructionError struct {
	Stage Stage
	Log   string // compiler output, set for StageBuild
	Err   error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	if e.Log != "" {
		return fmt.Sprintf("reduce: context construction failed at %s stage: %v\nbuild log:\n%s", e.Stage, e.Err, e.Log)
	}
	return fmt.Sprintf("reduce: context construction failed at %s stage: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConstructionError) Unwrap() error { return e.Err }

// AllocationError reports a failed device buffer allocation or a size
// mismatch between host and device memory. Callers may retry with a smaller
// input.
type AllocationError struct {
	Elements  int
	Requested int // bytes
	Err       error
}

// Error implements the error interface.
func (e *AllocationError) Error() string {
	return fmt.Sprintf("reduce: allocation of %d elements (%d bytes) failed: %v", e.Elements, e.Requested, e.Err)
}

// Unwrap returns the underlying error.
func (e *AllocationError) Unwrap() error { return e.Err }

// DispatchError reports a kernel launch that could not be issued. The
// context remains usable.
type DispatchError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("reduce: dispatch failed: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DispatchError) Unwrap() error { return e.Err }

// InvalidInputError reports a caller error detected before any device
// interaction.
type InvalidInputError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidInputError) Error() string {
	return "reduce: invalid input: " + e.Reason
}

// Is matches ErrEmptyInput for empty-input failures.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrEmptyInput && e.Reason == ErrEmptyInput.Error()
}

func emptyInput() error {
	return &InvalidInputError{Reason: ErrEmptyInput.Error()}
}

// TeardownError aggregates failures while releasing device resources.
// Release continues past each failure.
type TeardownError struct {
	Errs []error
}

// Error implements the error interface.
func (e *TeardownError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return "reduce: teardown: " + strings.Join(msgs, "; ")
}

// Unwrap returns every release failure.
func (e *TeardownError) Unwrap() []error { return e.Errs }

// UseAfterReleaseError reports an operation on a Context or Buffer that was
// already released.
type UseAfterReleaseError struct {
	Resource string
}

// Error implements the error interface.
func (e *UseAfterReleaseError) Error() string {
	return fmt.Sprintf("reduce: %s used after release", e.Resource)
}

// Unwrap matches compute.ErrReleased.
func (e *UseAfterReleaseError) Unwrap() error { return compute.ErrReleased }
