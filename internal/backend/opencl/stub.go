//go:build !opencl

package opencl

import (
	"fmt"

	"github.com/born-ml/gpureduce/internal/compute"
)

// runtime is a placeholder when OpenCL support is not compiled.
type runtime struct{}

func (runtime) available() bool { return false }

func (runtime) platforms() ([]compute.Platform, error) {
	return nil, fmt.Errorf("opencl: support requires building with '-tags opencl': %w", compute.ErrNotBuilt)
}
