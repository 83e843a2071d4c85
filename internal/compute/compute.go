// Package compute defines the heterogeneous device API that every gpureduce
// driver implements: platform and device enumeration, contexts, in-order
// command queues, compiled programs, kernels and device-resident memory.
//
// The shape deliberately follows OpenCL. Handles are acquired explicitly and
// must be released exactly once; releasing twice or using a released handle
// returns ErrReleased.
package compute

// Driver is the entry point of a device API implementation.
type Driver interface {
	// Name is the registry name of the driver ("host", "opencl", "webgpu").
	Name() string

	// Dialect is the kernel language accepted by Context.BuildProgram.
	Dialect() Dialect

	// Available reports whether the driver can reach at least one platform.
	Available() bool

	// Platforms enumerates the platforms exposed by the driver.
	Platforms() ([]Platform, error)
}

// Platform groups the devices of one vendor implementation.
type Platform interface {
	Info() PlatformInfo
	Devices(kind DeviceType) ([]Device, error)
}

// Device is a single compute device.
type Device interface {
	Info() DeviceInfo

	// NewContext creates a context bound to this device only.
	NewContext() (Context, error)
}

// Context owns device memory and compiled programs.
type Context interface {
	// NewQueue creates an in-order command queue.
	NewQueue() (Queue, error)

	// BuildProgram compiles source for the context device. Compilation
	// failures are returned as *BuildError.
	BuildProgram(source string) (Program, error)

	// NewBuffer allocates size bytes of device memory. When host is non-nil
	// its content is copied into the new buffer before NewBuffer returns, and
	// len(host) must equal size.
	NewBuffer(flags MemFlags, size int, host []byte) (Mem, error)

	Release() error
}

// Queue is an in-order command queue. Enqueue operations return as soon as
// the command is accepted; EnqueueRead and Finish block.
type Queue interface {
	// EnqueueNDRange launches a one-dimensional kernel over global work items
	// grouped in work groups of local items. The kernel arguments are
	// captured at enqueue time.
	EnqueueNDRange(k Kernel, global, local int) error

	// EnqueueRead copies len(dst) bytes from the start of m into dst and
	// waits for completion of every command enqueued before it.
	EnqueueRead(m Mem, dst []byte) error

	// Finish blocks until every enqueued command has completed.
	Finish() error

	Release() error
}

// Program is a compiled kernel source.
type Program interface {
	// Kernel returns the entry point called name. Unknown names return
	// ErrKernelNotFound.
	Kernel(name string) (Kernel, error)

	Release() error
}

// Kernel is a compiled entry point with positional arguments. Argument
// binding is stateful and not safe for concurrent use.
type Kernel interface {
	Name() string

	SetArgMem(index int, m Mem) error

	// SetArgLocal reserves size bytes of work-group local memory.
	SetArgLocal(index int, size int) error

	SetArgInt32(index int, v int32) error

	Release() error
}

// Mem is a device-resident memory region.
type Mem interface {
	Size() int
	Flags() MemFlags
	Release() error
}
