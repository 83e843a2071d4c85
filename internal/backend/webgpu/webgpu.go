// Package webgpu implements a compute driver on WebGPU through go-webgpu
// (github.com/go-webgpu/webgpu), which loads wgpu-native at run time without
// cgo.
//
// Programs are WGSL modules. Kernel arguments map positionally onto bind
// group 0: buffer arguments onto storage bindings, int arguments onto the
// first u32 of a uniform binding, and the local-memory argument onto the
// module's var<workgroup> array. WGSL fixes the work-group size at compile
// time, so a launch must use the size declared by @workgroup_size.
//
// The driver is built on Windows only; elsewhere it is never available.
package webgpu

import "github.com/born-ml/gpureduce/internal/compute"

// Name is the registry name of the WebGPU driver.
const Name = "webgpu"

// Default WebGPU limits. Adapters may support more, but a device requested
// without required limits gets exactly these.
const (
	DefaultMaxWorkGroupSize = 256
	DefaultLocalMemSize     = 16 * 1024
	DefaultMaxAllocSize     = 128 << 20
)

// Driver is the WebGPU compute driver.
type Driver struct {
	rt runtime
}

// Compile-time check that Driver implements compute.Driver.
var _ compute.Driver = (*Driver)(nil)

// New returns the WebGPU driver. The native library is loaded lazily.
func New() *Driver {
	return &Driver{}
}

// Name implements compute.Driver.
func (d *Driver) Name() string { return Name }

// Dialect implements compute.Driver.
func (d *Driver) Dialect() compute.Dialect { return compute.DialectWGSL }

// Available implements compute.Driver. It reports whether an adapter can be
// requested.
func (d *Driver) Available() bool { return d.rt.available() }

// Platforms implements compute.Driver. WebGPU exposes a single platform
// whose only device is the default high-performance adapter.
func (d *Driver) Platforms() ([]compute.Platform, error) { return d.rt.platforms() }
