// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU compute driver.
//
// WebGPU programs are WGSL modules; the default reduction kernel is rendered
// for the work-group size in use. The driver loads wgpu-native at run time
// and is built on Windows only. Importing this package registers it below
// OpenCL and above the host driver.
package webgpu

import (
	"github.com/born-ml/gpureduce/internal/backend/webgpu"
	"github.com/born-ml/gpureduce/internal/compute"
)

// Priority is the registry priority of the WebGPU driver.
const Priority = 20

// Name is the registry name of the WebGPU driver.
const Name = webgpu.Name

// Driver is the WebGPU compute driver.
type Driver = webgpu.Driver

// New returns a WebGPU driver.
func New() *Driver {
	return webgpu.New()
}

// IsAvailable reports whether a WebGPU adapter can be requested on this
// system.
func IsAvailable() bool {
	return webgpu.New().Available()
}

func init() {
	compute.Register(webgpu.New(), Priority)
}
