// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package reduce

import (
	"github.com/pkg/errors"

	_ "github.com/born-ml/gpureduce/backend/host" // always available
	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/kernels"
	"github.com/born-ml/gpureduce/internal/reduce"
)

// Core types.
type (
	// Context owns the device handles of a reduction.
	Context = reduce.Context

	// Config controls device selection and dispatch sizing.
	Config = reduce.Config

	// Engine runs the two-phase reduction.
	Engine = reduce.Engine

	// Element is a device buffer element type.
	Element = reduce.Element

	// PlatformDevices lists one platform and its devices.
	PlatformDevices = reduce.PlatformDevices

	// DeviceInfo describes a device and its limits.
	DeviceInfo = compute.DeviceInfo

	// PlatformInfo describes a platform.
	PlatformInfo = compute.PlatformInfo
)

// Buffer is device memory mirroring a host slice.
type Buffer[T Element] = reduce.Buffer[T]

// Error types.
type (
	ConstructionError    = reduce.ConstructionError
	AllocationError      = reduce.AllocationError
	DispatchError        = reduce.DispatchError
	InvalidInputError    = reduce.InvalidInputError
	TeardownError        = reduce.TeardownError
	UseAfterReleaseError = reduce.UseAfterReleaseError
	Stage                = reduce.Stage
)

// Construction stages.
const (
	StagePlatform = reduce.StagePlatform
	StageDevice   = reduce.StageDevice
	StageContext  = reduce.StageContext
	StageQueue    = reduce.StageQueue
	StageBuild    = reduce.StageBuild
	StageKernel   = reduce.StageKernel
)

// Common errors.
var (
	ErrEmptyInput     = reduce.ErrEmptyInput
	ErrSizeMismatch   = reduce.ErrSizeMismatch
	ErrInvalidConfig  = reduce.ErrInvalidConfig
	ErrOutputTooSmall = reduce.ErrOutputTooSmall
)

// Defaults.
const (
	// DefaultEntryPoint is the kernel name of the default sources.
	DefaultEntryPoint = kernels.EntryPoint

	// DefaultWorkGroupCount is the default number of partial sums.
	DefaultWorkGroupCount = reduce.DefaultWorkGroupCount
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return reduce.DefaultConfig()
}

// Open resolves the driver named by cfg.Backend and creates a Context on the
// selected platform and device.
//
// An empty source selects the default reduction kernel for the driver's
// kernel language; entryPoint then defaults to DefaultEntryPoint. WGSL
// sources fix the work-group size, so the default WGSL kernel is rendered
// for the size the Engine will use with cfg.
func Open(source, entryPoint string, cfg Config) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	drv, err := compute.Resolve(cfg.Backend)
	if err != nil {
		return nil, &ConstructionError{Stage: StagePlatform, Err: err}
	}
	if entryPoint == "" {
		entryPoint = DefaultEntryPoint
	}
	if source == "" {
		size, err := defaultWorkGroupSize(drv, cfg)
		if err != nil {
			return nil, err
		}
		if source, err = kernels.Source(drv.Dialect(), size); err != nil {
			return nil, &ConstructionError{Stage: StageBuild, Err: err}
		}
	}
	return reduce.NewContext(drv, source, entryPoint, cfg)
}

// defaultWorkGroupSize looks up the selected device to resolve an automatic
// work-group size before the context exists.
func defaultWorkGroupSize(drv compute.Driver, cfg Config) (int, error) {
	if cfg.WorkGroupSize > 0 {
		return cfg.WorkGroupSize, nil
	}
	list, err := reduce.ListDevices(drv)
	if err != nil {
		return 0, &ConstructionError{Stage: StagePlatform, Err: err}
	}
	if cfg.PlatformIndex >= len(list) {
		return 0, &ConstructionError{Stage: StagePlatform, Err: errors.Wrapf(compute.ErrNoPlatforms,
			"platform index %d with %d platforms", cfg.PlatformIndex, len(list))}
	}
	devices := list[cfg.PlatformIndex].Devices
	if cfg.DeviceIndex >= len(devices) {
		return 0, &ConstructionError{Stage: StageDevice, Err: errors.Wrapf(compute.ErrNoDevices,
			"device index %d with %d devices", cfg.DeviceIndex, len(devices))}
	}
	return cfg.ResolvedWorkGroupSize(devices[cfg.DeviceIndex].MaxWorkGroupSize), nil
}

// NewContext creates a Context on an explicit driver.
func NewContext(drv compute.Driver, source, entryPoint string, cfg Config) (*Context, error) {
	return reduce.NewContext(drv, source, entryPoint, cfg)
}

// NewEngine creates an Engine on ctx.
func NewEngine(ctx *Context, cfg Config) (*Engine, error) {
	return reduce.NewEngine(ctx, cfg)
}

// NewBuffer allocates read-only device memory holding a copy of host.
func NewBuffer[T Element](ctx *Context, host []T) (*Buffer[T], error) {
	return reduce.NewBuffer(ctx, host)
}

// NewOutputBuffer allocates zeroed read-write device memory for n elements.
func NewOutputBuffer[T Element](ctx *Context, n int) (*Buffer[T], error) {
	return reduce.NewOutputBuffer[T](ctx, n)
}

// Dispatch enqueues one launch of the context's kernel over in, writing
// one partial sum per work group into out.
func Dispatch[T Element](ctx *Context, in, out *Buffer[T], groups, size int) error {
	return reduce.Dispatch(ctx, in, out, groups, size)
}

// KahanSum returns the compensated sum of values.
func KahanSum[F ~float32 | ~float64](values []F) (F, error) {
	return reduce.KahanSum(values)
}

// Backends returns the registered driver names, highest priority first.
func Backends() []string {
	return compute.Names()
}

// ListDevices enumerates the platforms and devices of the named driver.
func ListDevices(backend string) ([]PlatformDevices, error) {
	drv, err := compute.Lookup(backend)
	if err != nil {
		return nil, err
	}
	return reduce.ListDevices(drv)
}
