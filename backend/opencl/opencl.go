// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package opencl provides the compute driver for the system OpenCL runtime.
//
// The driver links against libOpenCL through cgo and is only functional when
// built with the opencl tag:
//
//	go build -tags opencl ./...
//
// Importing this package registers the driver with the highest priority.
// Without the tag, or on a machine without an OpenCL platform, the driver
// reports itself unavailable and automatic selection skips it.
package opencl

import (
	"github.com/born-ml/gpureduce/internal/backend/opencl"
	"github.com/born-ml/gpureduce/internal/compute"
)

// Priority is the registry priority of the OpenCL driver.
const Priority = 30

// Name is the registry name of the OpenCL driver.
const Name = opencl.Name

// Driver is the OpenCL compute driver.
type Driver = opencl.Driver

// New returns an OpenCL driver.
func New() *Driver {
	return opencl.New()
}

func init() {
	compute.Register(opencl.New(), Priority)
}
