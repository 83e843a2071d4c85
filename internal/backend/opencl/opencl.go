// Package opencl implements a compute driver on the system OpenCL runtime.
//
// The driver talks to libOpenCL through cgo and is only compiled with the
// opencl build tag:
//
//	go build -tags opencl ./...
//
// Without the tag, New returns a driver that is never available and whose
// calls fail with compute.ErrNotBuilt.
package opencl

import "github.com/born-ml/gpureduce/internal/compute"

// Name is the registry name of the OpenCL driver.
const Name = "opencl"

// Driver is the OpenCL compute driver.
type Driver struct {
	rt runtime
}

// Compile-time check that Driver implements compute.Driver.
var _ compute.Driver = (*Driver)(nil)

// New returns the OpenCL driver. It does not touch the runtime until
// Available or Platforms is called.
func New() *Driver {
	return &Driver{}
}

// Name implements compute.Driver.
func (d *Driver) Name() string { return Name }

// Dialect implements compute.Driver.
func (d *Driver) Dialect() compute.Dialect { return compute.DialectOpenCL }

// Available implements compute.Driver. It reports whether at least one
// platform exposes a device.
func (d *Driver) Available() bool {
	return d.rt.available()
}

// Platforms implements compute.Driver.
func (d *Driver) Platforms() ([]compute.Platform, error) {
	return d.rt.platforms()
}
