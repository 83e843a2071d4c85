//go:build !opencl

package opencl

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/gpureduce/internal/compute"
)

func TestNotBuilt(t *testing.T) {
	d := New()
	assert.False(t, d.Available())
	_, err := d.Platforms()
	assert.ErrorIs(t, err, compute.ErrNotBuilt)
}
