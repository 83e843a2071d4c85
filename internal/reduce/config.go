package reduce

import (
	"fmt"
	"math/bits"
)

// Defaults for Config.
const (
	DefaultWorkGroupCount = 64

	// maxAutoWorkGroupSize caps the implementation-chosen work-group size.
	maxAutoWorkGroupSize = 128
)

// Config controls device selection and dispatch sizing.
type Config struct {
	Backend       string // Driver name; empty selects automatically.
	PlatformIndex int    // Index into the driver's platforms.
	DeviceIndex   int    // Index into the platform's devices.

	WorkGroupCount int // Number of partial sums computed on the device.
	WorkGroupSize  int // Items per work group; 0 lets the engine choose.
}

// DefaultConfig returns the default configuration: first platform, first
// device, 64 work groups and an implementation-chosen group size.
func DefaultConfig() Config {
	return Config{
		WorkGroupCount: DefaultWorkGroupCount,
	}
}

// Validate checks the configuration. WorkGroupSize must be zero or a power
// of two because the in-group reduction folds the local range in halves.
func (c Config) Validate() error {
	if c.PlatformIndex < 0 {
		return fmt.Errorf("%w: platform index %d is negative", ErrInvalidConfig, c.PlatformIndex)
	}
	if c.DeviceIndex < 0 {
		return fmt.Errorf("%w: device index %d is negative", ErrInvalidConfig, c.DeviceIndex)
	}
	if c.WorkGroupCount < 1 {
		return fmt.Errorf("%w: work-group count %d must be positive", ErrInvalidConfig, c.WorkGroupCount)
	}
	if c.WorkGroupSize < 0 {
		return fmt.Errorf("%w: work-group size %d is negative", ErrInvalidConfig, c.WorkGroupSize)
	}
	if c.WorkGroupSize > 0 && bits.OnesCount(uint(c.WorkGroupSize)) != 1 {
		return fmt.Errorf("%w: work-group size %d is not a power of two", ErrInvalidConfig, c.WorkGroupSize)
	}
	return nil
}

// autoWorkGroupSize returns the largest power of two not above
// min(maxAutoWorkGroupSize, deviceMax).
func autoWorkGroupSize(deviceMax int) int {
	limit := min(maxAutoWorkGroupSize, deviceMax)
	if limit < 1 {
		return 1
	}
	return 1 << (bits.Len(uint(limit)) - 1)
}

// ResolvedWorkGroupSize returns WorkGroupSize, or the automatic choice for a
// device whose largest work group is deviceMax when WorkGroupSize is zero.
func (c Config) ResolvedWorkGroupSize(deviceMax int) int {
	if c.WorkGroupSize > 0 {
		return c.WorkGroupSize
	}
	return autoWorkGroupSize(deviceMax)
}
