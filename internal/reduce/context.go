// Package reduce implements the two-phase sum reduction: per-work-group
// partial sums on a compute device, combined on the host with compensated
// summation.
//
// A Context owns the device handles (context, in-order queue, program,
// kernel). Buffers are allocated against a Context and must be closed before
// it. Nothing in this package is safe for concurrent use except Engine.Reduce.
package reduce

import (
	"fmt"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpureduce/internal/compute"
)

// Context is the root owner of the device resources used by a reduction.
type Context struct {
	driver   string
	dialect  compute.Dialect
	platform compute.PlatformInfo
	device   compute.DeviceInfo
	entry    string

	ctx     compute.Context
	queue   compute.Queue
	program compute.Program
	kernel  compute.Kernel

	mu      sync.Mutex
	closed  bool
	buffers map[tracked]struct{}
}

// tracked is a live buffer that Close must release if its owner did not.
type tracked interface {
	forceRelease() error
	String() string
}

// NewContext selects platform cfg.PlatformIndex and device cfg.DeviceIndex of
// drv, creates a device context and an in-order queue, compiles source and
// extracts the kernel entryPoint.
//
// On failure a *ConstructionError names the failing stage and every handle
// acquired so far is released, most recent first.
func NewContext(drv compute.Driver, source, entryPoint string, cfg Config) (c *Context, err error) {
	if drv == nil {
		return nil, &ConstructionError{Stage: StagePlatform, Err: errors.New("nil driver")}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var undo []func() error
	defer func() {
		if err == nil {
			return
		}
		for i := len(undo) - 1; i >= 0; i-- {
			if rerr := undo[i](); rerr != nil {
				klog.Warningf("rollback of %s context construction: %v", drv.Name(), rerr)
			}
		}
	}()

	platforms, err := drv.Platforms()
	if err != nil {
		return nil, &ConstructionError{Stage: StagePlatform, Err: err}
	}
	if len(platforms) == 0 {
		return nil, &ConstructionError{Stage: StagePlatform, Err: compute.ErrNoPlatforms}
	}
	if cfg.PlatformIndex >= len(platforms) {
		return nil, &ConstructionError{Stage: StagePlatform, Err: errors.Wrapf(compute.ErrNoPlatforms,
			"platform index %d with %d platforms", cfg.PlatformIndex, len(platforms))}
	}
	platform := platforms[cfg.PlatformIndex]

	devices, err := platform.Devices(compute.DeviceTypeAll)
	if err != nil {
		return nil, &ConstructionError{Stage: StageDevice, Err: err}
	}
	if len(devices) == 0 {
		return nil, &ConstructionError{Stage: StageDevice, Err: compute.ErrNoDevices}
	}
	if cfg.DeviceIndex >= len(devices) {
		return nil, &ConstructionError{Stage: StageDevice, Err: errors.Wrapf(compute.ErrNoDevices,
			"device index %d with %d devices", cfg.DeviceIndex, len(devices))}
	}
	device := devices[cfg.DeviceIndex]

	c = &Context{
		driver:   drv.Name(),
		dialect:  drv.Dialect(),
		platform: platform.Info(),
		device:   device.Info(),
		entry:    entryPoint,
		buffers:  make(map[tracked]struct{}),
	}

	if c.ctx, err = device.NewContext(); err != nil {
		return nil, &ConstructionError{Stage: StageContext, Err: err}
	}
	undo = append(undo, c.ctx.Release)

	if c.queue, err = c.ctx.NewQueue(); err != nil {
		return nil, &ConstructionError{Stage: StageQueue, Err: err}
	}
	undo = append(undo, c.queue.Release)

	if c.program, err = c.ctx.BuildProgram(source); err != nil {
		cerr := &ConstructionError{Stage: StageBuild, Err: err}
		var be *compute.BuildError
		if errors.As(err, &be) {
			cerr.Log = be.Log
		}
		return nil, cerr
	}
	undo = append(undo, c.program.Release)

	if c.kernel, err = c.program.Kernel(entryPoint); err != nil {
		return nil, &ConstructionError{Stage: StageKernel, Err: err}
	}

	klog.V(1).Infof("compute context on %s: %s / %s (max work-group %d, local memory %s, max allocation %s), kernel %q",
		c.driver, c.platform.Name, c.device.Name, c.device.MaxWorkGroupSize,
		humanize.IBytes(uint64(max(c.device.LocalMemSize, 0))), //nolint:gosec // clamped to non-negative
		humanize.IBytes(uint64(max(c.device.MaxAllocSize, 0))), //nolint:gosec // clamped to non-negative
		entryPoint)
	return c, nil
}

// Driver returns the name of the driver the context was created on.
func (c *Context) Driver() string { return c.driver }

// Dialect returns the kernel language of the context's driver.
func (c *Context) Dialect() compute.Dialect { return c.dialect }

// Platform describes the selected platform.
func (c *Context) Platform() compute.PlatformInfo { return c.platform }

// Device describes the selected device and its limits.
func (c *Context) Device() compute.DeviceInfo { return c.device }

// EntryPoint is the name of the kernel bound to the context.
func (c *Context) EntryPoint() string { return c.entry }

// Closed reports whether Close has been called.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases the kernel, program, queue and device context, in that
// order. Buffers still open are released first. Every step runs even if an
// earlier one fails; failures are returned together as a *TeardownError.
// Calling Close again returns nil.
func (c *Context) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := c.buffers
	c.buffers = nil
	c.mu.Unlock()

	var errs []error
	for b := range live {
		klog.Warningf("closing compute context with %s still open", b)
		if err := b.forceRelease(); err != nil {
			errs = append(errs, err)
		}
	}

	steps := []struct {
		name    string
		release func() error
	}{
		{"kernel", c.kernel.Release},
		{"program", c.program.Release},
		{"queue", c.queue.Release},
		{"context", c.ctx.Release},
	}
	for _, s := range steps {
		if err := s.release(); err != nil {
			errs = append(errs, errors.Wrapf(err, "release %s", s.name))
		}
	}

	if len(errs) > 0 {
		return &TeardownError{Errs: errs}
	}
	klog.V(1).Infof("compute context on %s released", c.driver)
	return nil
}

// open returns an error once the context is closed.
func (c *Context) open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &UseAfterReleaseError{Resource: "compute context"}
	}
	return nil
}

func (c *Context) track(b tracked) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &UseAfterReleaseError{Resource: "compute context"}
	}
	c.buffers[b] = struct{}{}
	return nil
}

func (c *Context) untrack(b tracked) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, b)
}

// liveBuffers reports the number of buffers not yet closed.
func (c *Context) liveBuffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffers)
}

// PlatformDevices lists one platform and its devices.
type PlatformDevices struct {
	Platform compute.PlatformInfo
	Devices  []compute.DeviceInfo
}

// ListDevices enumerates the platforms of drv and the devices of every type
// on each one. A platform without devices is listed with an empty slice.
func ListDevices(drv compute.Driver) ([]PlatformDevices, error) {
	platforms, err := drv.Platforms()
	if err != nil {
		return nil, errors.Wrapf(err, "%s: enumerate platforms", drv.Name())
	}
	out := make([]PlatformDevices, 0, len(platforms))
	for _, p := range platforms {
		entry := PlatformDevices{Platform: p.Info()}
		devices, err := p.Devices(compute.DeviceTypeAll)
		if err != nil && !errors.Is(err, compute.ErrNoDevices) {
			return nil, errors.Wrapf(err, "%s: enumerate devices of %s", drv.Name(), entry.Platform.Name)
		}
		for _, d := range devices {
			entry.Devices = append(entry.Devices, d.Info())
		}
		out = append(out, entry)
	}
	return out, nil
}

// String implements fmt.Stringer.
func (c *Context) String() string {
	return fmt.Sprintf("Context(%s: %s, kernel %q)", c.driver, c.device.Name, c.entry)
}
