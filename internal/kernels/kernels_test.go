package kernels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpureduce/internal/compute"
)

func TestSource(t *testing.T) {
	src, err := Source(compute.DialectOpenCL, 0)
	require.NoError(t, err)
	assert.Contains(t, src, "__kernel void reduce(")

	src, err = Source(compute.DialectWGSL, 64)
	require.NoError(t, err)
	assert.Contains(t, src, "@workgroup_size(64)")
	assert.Contains(t, src, "array<f32, 64>")
	assert.Contains(t, src, "const LOCAL_SIZE: u32 = 64u;")
	assert.Contains(t, src, "fn reduce(")

	_, err = Source("glsl", 64)
	assert.Error(t, err)
}
