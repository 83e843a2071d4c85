// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package reduce computes the sum of a large float32 slice in two phases:
// every work group of a compute device reduces a strided slice of the input
// to one partial sum, and the host combines the partial sums with
// compensated (Kahan) summation.
//
// # Overview
//
// The package provides:
//   - Context: the device handles (context, in-order queue, program, kernel)
//   - Buffer: device memory mirroring a host slice, float32 or int32
//   - Dispatch: kernel argument binding and launch sizing
//   - KahanSum: the host-side finalizer
//   - Engine: the two-phase reduction
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/gpureduce/reduce"
//	    _ "github.com/born-ml/gpureduce/backend/opencl"
//	)
//
//	func main() {
//	    ctx, err := reduce.Open("", "", reduce.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer ctx.Close()
//
//	    engine, err := reduce.NewEngine(ctx, reduce.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    sum, err := engine.Reduce(values)
//	}
//
// # Drivers
//
// Importing a driver package registers it:
//   - backend/host: emulated OpenCL device on the host CPU, always available
//   - backend/opencl: system OpenCL runtime, built with -tags opencl
//   - backend/webgpu: WebGPU through wgpu-native, Windows only
//
// The host driver is always registered by this package. When Config.Backend
// is empty the $GPUREDUCE_BACKEND environment variable is consulted, then
// the available driver with the highest priority is used.
//
// # Errors
//
// Failures are reported as *ConstructionError, *AllocationError,
// *DispatchError, *InvalidInputError, *TeardownError or
// *UseAfterReleaseError. All of them work with errors.Is and errors.As.
//
// # Resource Lifetime
//
// Buffers must be closed before their Context. Context.Close releases any
// buffer left open, logs a warning, and then releases the kernel, program,
// queue and device context in that order. There is no cancellation or
// timeout: a kernel that never finishes blocks the next Read forever.
package reduce
