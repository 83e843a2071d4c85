// Package host implements a compute driver that emulates an OpenCL device on
// the host CPU.
//
// Programs are OpenCL C sources. The compiler checks the source structure,
// extracts every __kernel signature and binds each one to a Go
// implementation registered with RegisterKernel. Work groups of an NDRange
// run concurrently; work items inside a group are the responsibility of the
// Go kernel, which sees the whole group at once and can therefore express
// barriers as sequential phases.
//
// The command queue is asynchronous and in-order, like a real device queue:
// EnqueueNDRange returns once the launch is queued, and EnqueueRead blocks
// until every earlier command has completed.
package host

import (
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/parallel"
)

// Name is the registry name of the host driver.
const Name = "host"

// Default device limits, chosen to match a typical OpenCL CPU device.
const (
	DefaultMaxWorkGroupSize = 1024
	DefaultLocalMemSize     = 32 * 1024
	DefaultMaxAllocSize     = 1 << 30
)

// Options configure the emulated device.
type Options struct {
	MaxWorkGroupSize int
	LocalMemSize     int
	MaxAllocSize     int

	// Parallel controls how work groups are spread over goroutines.
	Parallel parallel.Config
}

// DefaultOptions returns the limits of the default host device.
func DefaultOptions() Options {
	return Options{
		MaxWorkGroupSize: DefaultMaxWorkGroupSize,
		LocalMemSize:     DefaultLocalMemSize,
		MaxAllocSize:     DefaultMaxAllocSize,
		Parallel:         parallel.DefaultConfig(),
	}
}

// Driver is the host compute driver. The zero value is not usable; call New.
type Driver struct {
	opts  Options
	stats counters
}

// Compile-time check that Driver implements compute.Driver.
var _ compute.Driver = (*Driver)(nil)

// New creates a host driver with the given options.
func New(opts Options) *Driver {
	def := DefaultOptions()
	if opts.MaxWorkGroupSize <= 0 {
		opts.MaxWorkGroupSize = def.MaxWorkGroupSize
	}
	if opts.LocalMemSize <= 0 {
		opts.LocalMemSize = def.LocalMemSize
	}
	if opts.MaxAllocSize <= 0 {
		opts.MaxAllocSize = def.MaxAllocSize
	}
	if opts.Parallel.NumWorkers <= 0 {
		opts.Parallel = def.Parallel
	}
	return &Driver{opts: opts}
}

// Name implements compute.Driver.
func (d *Driver) Name() string { return Name }

// Dialect implements compute.Driver.
func (d *Driver) Dialect() compute.Dialect { return compute.DialectOpenCL }

// Available implements compute.Driver. The host device always exists.
func (d *Driver) Available() bool { return true }

// Platforms implements compute.Driver. There is exactly one host platform
// with exactly one CPU device.
func (d *Driver) Platforms() ([]compute.Platform, error) {
	return []compute.Platform{&platform{driver: d}}, nil
}

// Stats reports the handles currently alive on this driver.
type Stats struct {
	Contexts int64
	Queues   int64
	Programs int64
	Kernels  int64
	Buffers  int64
	Bytes    int64
}

// Live reports whether any handle is still allocated.
func (s Stats) Live() bool {
	return s.Contexts+s.Queues+s.Programs+s.Kernels+s.Buffers != 0
}

// Stats returns a snapshot of live handle counts.
func (d *Driver) Stats() Stats {
	return Stats{
		Contexts: d.stats.contexts.Load(),
		Queues:   d.stats.queues.Load(),
		Programs: d.stats.programs.Load(),
		Kernels:  d.stats.kernels.Load(),
		Buffers:  d.stats.buffers.Load(),
		Bytes:    d.stats.bytes.Load(),
	}
}

type counters struct {
	contexts atomic.Int64
	queues   atomic.Int64
	programs atomic.Int64
	kernels  atomic.Int64
	buffers  atomic.Int64
	bytes    atomic.Int64
}

type platform struct {
	driver *Driver
}

func (p *platform) Info() compute.PlatformInfo {
	return compute.PlatformInfo{
		Name:    "Host",
		Vendor:  "gpureduce",
		Version: "OpenCL 1.2 emulation (" + runtime.Version() + ")",
	}
}

func (p *platform) Devices(kind compute.DeviceType) ([]compute.Device, error) {
	if !compute.DeviceTypeCPU.Matches(kind) {
		return nil, fmt.Errorf("host: %w of type %s", compute.ErrNoDevices, kind)
	}
	return []compute.Device{&device{driver: p.driver}}, nil
}

type device struct {
	driver *Driver
}

func (dev *device) Info() compute.DeviceInfo {
	opts := dev.driver.opts
	return compute.DeviceInfo{
		Name:             fmt.Sprintf("Host CPU (%s/%s)", runtime.GOOS, runtime.GOARCH),
		Vendor:           "gpureduce",
		Version:          "OpenCL 1.2 emulation",
		Type:             compute.DeviceTypeCPU,
		MaxComputeUnits:  uint32(runtime.NumCPU()), //nolint:gosec // G115: NumCPU is small and positive
		MaxWorkGroupSize: opts.MaxWorkGroupSize,
		LocalMemSize:     opts.LocalMemSize,
		MaxAllocSize:     opts.MaxAllocSize,
		Features:         cpuFeatures(),
	}
}

func (dev *device) NewContext() (compute.Context, error) {
	dev.driver.stats.contexts.Add(1)
	return &context{driver: dev.driver}, nil
}

// cpuFeatures lists the SIMD extensions of the host processor.
func cpuFeatures() []string {
	var features []string
	add := func(ok bool, name string) {
		if ok {
			features = append(features, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add(cpu.X86.HasSSE41 || cpu.X86.HasSSE42, "sse4")
		add(cpu.X86.HasAVX, "avx")
		add(cpu.X86.HasAVX2, "avx2")
		add(cpu.X86.HasFMA, "fma")
		add(cpu.X86.HasAVX512F, "avx512f")
	case "arm64":
		add(cpu.ARM64.HasASIMD, "neon")
		add(cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP, "fp16")
		add(cpu.ARM64.HasSVE, "sve")
	}
	return features
}
