// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package host provides a compute driver that emulates an OpenCL device on
// the host CPU.
//
// The host driver needs no GPU, no native library and no cgo. It accepts
// OpenCL C sources whose kernels have a registered Go implementation (the
// default reduction kernel is built in) and runs work groups concurrently.
// Importing this package registers the driver with the lowest priority, so
// it is picked only when no hardware driver is available.
package host

import (
	internalhost "github.com/born-ml/gpureduce/internal/backend/host"
	"github.com/born-ml/gpureduce/internal/compute"
)

// Priority is the registry priority of the host driver.
const Priority = 10

// Name is the registry name of the host driver.
const Name = internalhost.Name

type (
	// Driver is the host compute driver.
	Driver = internalhost.Driver

	// Options configure the emulated device limits.
	Options = internalhost.Options

	// Stats reports live handles on a Driver.
	Stats = internalhost.Stats

	// Group is the view of an NDRange that one work group sees.
	Group = internalhost.Group

	// KernelFunc is the host implementation of an OpenCL kernel.
	KernelFunc = internalhost.KernelFunc
)

// New creates a host driver. Zero fields of opts take their defaults.
func New(opts Options) *Driver {
	return internalhost.New(opts)
}

// DefaultOptions returns the limits of the default host device.
func DefaultOptions() Options {
	return internalhost.DefaultOptions()
}

// RegisterKernel provides the host implementation of an OpenCL kernel.
func RegisterKernel(name string, sig []compute.ArgKind, fn KernelFunc) {
	internalhost.RegisterKernel(name, sig, fn)
}

func init() {
	compute.Register(internalhost.New(internalhost.DefaultOptions()), Priority)
}
