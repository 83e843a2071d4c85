//go:build !windows

package webgpu

import (
	"fmt"

	"github.com/born-ml/gpureduce/internal/compute"
)

type runtime struct{}

func (runtime) available() bool { return false }

func (runtime) platforms() ([]compute.Platform, error) {
	return nil, fmt.Errorf("webgpu: driver is only built on windows: %w", compute.ErrUnavailable)
}
