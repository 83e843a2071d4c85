package compute

import "fmt"

// Dialect identifies a kernel source language.
type Dialect string

const (
	// DialectOpenCL is OpenCL C.
	DialectOpenCL Dialect = "opencl-c"
	// DialectWGSL is the WebGPU Shading Language.
	DialectWGSL Dialect = "wgsl"
)

// DeviceType describes the class of a device. Values are bit flags so a
// filter can select several classes at once.
type DeviceType uint32

const (
	DeviceTypeCPU DeviceType = 1 << iota
	DeviceTypeGPU
	DeviceTypeAccelerator

	// DeviceTypeAll selects devices of any type.
	DeviceTypeAll = DeviceTypeCPU | DeviceTypeGPU | DeviceTypeAccelerator
)

// String implements fmt.Stringer.
func (t DeviceType) String() string {
	switch t {
	case DeviceTypeCPU:
		return "CPU"
	case DeviceTypeGPU:
		return "GPU"
	case DeviceTypeAccelerator:
		return "Accelerator"
	case DeviceTypeAll:
		return "All"
	default:
		return fmt.Sprintf("DeviceType(%d)", uint32(t))
	}
}

// Matches reports whether t is selected by the filter.
func (t DeviceType) Matches(filter DeviceType) bool {
	return t&filter != 0
}

// MemFlags describe how a kernel may access a buffer.
type MemFlags uint32

const (
	MemReadWrite MemFlags = 1 << iota
	MemReadOnly
	MemWriteOnly
)

// String implements fmt.Stringer.
func (f MemFlags) String() string {
	switch f {
	case MemReadWrite:
		return "read_write"
	case MemReadOnly:
		return "read_only"
	case MemWriteOnly:
		return "write_only"
	default:
		return fmt.Sprintf("MemFlags(%d)", uint32(f))
	}
}

// ArgKind is the class of a positional kernel parameter.
type ArgKind int

const (
	ArgMem ArgKind = iota
	ArgLocal
	ArgInt32
)

// String implements fmt.Stringer.
func (k ArgKind) String() string {
	switch k {
	case ArgMem:
		return "global buffer"
	case ArgLocal:
		return "local memory"
	case ArgInt32:
		return "int"
	default:
		return fmt.Sprintf("ArgKind(%d)", int(k))
	}
}

// PlatformInfo captures metadata about a platform.
type PlatformInfo struct {
	Name    string
	Vendor  string
	Version string
}

// DeviceInfo captures metadata and limits of a device.
type DeviceInfo struct {
	Name    string
	Vendor  string
	Version string
	Type    DeviceType

	MaxComputeUnits  uint32
	MaxWorkGroupSize int
	LocalMemSize     int
	MaxAllocSize     int

	// Features lists optional capabilities (SIMD extensions on the host).
	Features []string
}
