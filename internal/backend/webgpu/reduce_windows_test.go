//go:build windows

package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/kernels"
	"github.com/born-ml/gpureduce/internal/reduce"
)

func newContext(t *testing.T, size int) *reduce.Context {
	t.Helper()
	d := New()
	if !d.Available() {
		t.Skip("WebGPU not available on this system")
	}
	ctx, err := reduce.NewContext(d, kernels.ReduceWGSL(size), kernels.EntryPoint, reduce.DefaultConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, ctx.Close()) })
	return ctx
}

func TestReduce(t *testing.T) {
	ctx := newContext(t, 64)
	e, err := reduce.NewEngine(ctx, reduce.Config{WorkGroupCount: 64, WorkGroupSize: 64})
	require.NoError(t, err)

	input := make([]float32, 1000)
	for i := range input {
		input[i] = float32(i)
	}
	sum, err := e.Reduce(input)
	require.NoError(t, err)
	assert.InDelta(t, 499500, sum, 1e-2)
}

func TestCompiledWorkGroupSize(t *testing.T) {
	ctx := newContext(t, 64)
	e, err := reduce.NewEngine(ctx, reduce.Config{WorkGroupCount: 4, WorkGroupSize: 32})
	require.NoError(t, err)
	_, err = e.Reduce([]float32{1, 2, 3})
	var de *reduce.DispatchError
	require.ErrorAs(t, err, &de)
	assert.ErrorIs(t, err, compute.ErrInvalidWorkGroupSize)
}
