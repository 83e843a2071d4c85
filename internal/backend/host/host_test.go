package host

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/kernels"
)

func float32Bytes(values []float32) []byte {
	b := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(v))
	}
	return b
}

func bytesFloat32(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out
}

// openDevice walks the driver down to a context and queue.
func openDevice(t *testing.T, d *Driver) (compute.Context, compute.Queue) {
	t.Helper()
	platforms, err := d.Platforms()
	require.NoError(t, err)
	require.Len(t, platforms, 1)
	devices, err := platforms[0].Devices(compute.DeviceTypeAll)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	ctx, err := devices[0].NewContext()
	require.NoError(t, err)
	q, err := ctx.NewQueue()
	require.NoError(t, err)
	return ctx, q
}

func TestDeviceInfo(t *testing.T) {
	d := New(Options{MaxWorkGroupSize: 256})
	platforms, err := d.Platforms()
	require.NoError(t, err)
	assert.Equal(t, "Host", platforms[0].Info().Name)

	_, err = platforms[0].Devices(compute.DeviceTypeGPU)
	assert.ErrorIs(t, err, compute.ErrNoDevices)

	devices, err := platforms[0].Devices(compute.DeviceTypeCPU)
	require.NoError(t, err)
	info := devices[0].Info()
	assert.Equal(t, compute.DeviceTypeCPU, info.Type)
	assert.Equal(t, 256, info.MaxWorkGroupSize)
	assert.Equal(t, DefaultLocalMemSize, info.LocalMemSize)
	assert.Positive(t, info.MaxComputeUnits)
	t.Logf("host device %q features %v", info.Name, info.Features)
}

func TestCompile(t *testing.T) {
	decls, err := compile(kernels.ReduceOpenCL)
	require.NoError(t, err)
	require.Contains(t, decls, "reduce")
	assert.Equal(t, ReduceSignature, decls["reduce"].sig)

	tests := []struct {
		name    string
		source  string
		wantLog string
	}{
		{"empty", "", "no __kernel functions"},
		{"unbalanced", "__kernel void reduce(__global float *a) {\n if (1) {\n}\n", "<source>:1: error: unmatched '{'"},
		{"stray", "__kernel void reduce(__global float *a) { }\n}\n", "<source>:2: error: unexpected '}'"},
		{"comment", "/* never closed\n__kernel void reduce() {}", "unterminated comment"},
		{"unknown", "__kernel void scan(__global float *a) {}", "kernel 'scan' has no host implementation"},
		{"signature", "__kernel void reduce(__global float *a, int n) {}", "declared as (global buffer, int)"},
		{"param type", "__kernel void reduce(__global float *a, __local float *b, float n, __global float *c) {}", "unsupported type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compile(tt.source)
			require.Error(t, err)
			assert.ErrorIs(t, err, compute.ErrBuildFailed)
			var be *compute.BuildError
			require.True(t, errors.As(err, &be))
			assert.Contains(t, be.Log, tt.wantLog)
		})
	}
}

func TestCompileIgnoresComments(t *testing.T) {
	src := "// __kernel void scan(__global float *a) {}\n/* } */\n" + kernels.ReduceOpenCL
	decls, err := compile(src)
	require.NoError(t, err)
	assert.Len(t, decls, 1)
}

func TestReduceKernelOnQueue(t *testing.T) {
	d := New(Options{})
	ctx, q := openDevice(t, d)

	const n, groups, local = 1000, 8, 4
	input := make([]float32, n)
	for i := range input {
		input[i] = float32(i)
	}

	prog, err := ctx.BuildProgram(kernels.ReduceOpenCL)
	require.NoError(t, err)
	k, err := prog.Kernel("reduce")
	require.NoError(t, err)

	in, err := ctx.NewBuffer(compute.MemReadOnly, 4*n, float32Bytes(input))
	require.NoError(t, err)
	out, err := ctx.NewBuffer(compute.MemReadWrite, 4*groups, nil)
	require.NoError(t, err)

	require.NoError(t, k.SetArgMem(0, in))
	require.NoError(t, k.SetArgLocal(1, 4*local))
	require.NoError(t, k.SetArgInt32(2, n))
	require.NoError(t, k.SetArgMem(3, out))
	require.NoError(t, q.EnqueueNDRange(k, groups*local, local))

	raw := make([]byte, 4*groups)
	require.NoError(t, q.EnqueueRead(out, raw))
	var total float64
	for _, p := range bytesFloat32(raw) {
		total += float64(p)
	}
	assert.Equal(t, float64(n*(n-1)/2), total)

	for _, r := range []interface{ Release() error }{k, prog, in, out, q, ctx} {
		require.NoError(t, r.Release())
	}
	assert.False(t, d.Stats().Live(), "stats: %+v", d.Stats())
}

func TestKernelArgumentValidation(t *testing.T) {
	d := New(Options{})
	ctx, q := openDevice(t, d)
	defer func() { _ = ctx.Release() }()
	defer func() { _ = q.Release() }()

	prog, err := ctx.BuildProgram(kernels.ReduceOpenCL)
	require.NoError(t, err)
	_, err = prog.Kernel("scan")
	assert.ErrorIs(t, err, compute.ErrKernelNotFound)

	k, err := prog.Kernel("reduce")
	require.NoError(t, err)
	buf, err := ctx.NewBuffer(compute.MemReadWrite, 16, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, k.SetArgInt32(0, 1), compute.ErrArgKind)
	assert.ErrorIs(t, k.SetArgMem(1, buf), compute.ErrArgKind)
	assert.ErrorIs(t, k.SetArgMem(4, buf), compute.ErrArgIndex)
	assert.ErrorIs(t, k.SetArgLocal(1, 0), compute.ErrInvalidBufferSize)

	require.NoError(t, k.SetArgMem(0, buf))
	assert.ErrorIs(t, q.EnqueueNDRange(k, 4, 4), compute.ErrArgUnset)

	require.NoError(t, k.SetArgLocal(1, 4*4))
	require.NoError(t, k.SetArgInt32(2, 4))
	require.NoError(t, k.SetArgMem(3, buf))
	assert.ErrorIs(t, q.EnqueueNDRange(k, 6, 4), compute.ErrInvalidWorkGroupSize)
	assert.ErrorIs(t, q.EnqueueNDRange(k, 4096, 2048), compute.ErrInvalidWorkGroupSize)

	require.NoError(t, k.SetArgLocal(1, DefaultLocalMemSize+4))
	assert.ErrorIs(t, q.EnqueueNDRange(k, 4, 4), compute.ErrOutOfResources)

	require.NoError(t, buf.Release())
	assert.ErrorIs(t, buf.Release(), compute.ErrReleased)
	assert.ErrorIs(t, k.SetArgMem(0, buf), compute.ErrReleased)
	require.NoError(t, k.Release())
	require.NoError(t, prog.Release())
}

func TestBufferLimits(t *testing.T) {
	d := New(Options{MaxAllocSize: 64})
	ctx, q := openDevice(t, d)
	defer func() { _ = ctx.Release() }()
	defer func() { _ = q.Release() }()

	_, err := ctx.NewBuffer(compute.MemReadOnly, 0, nil)
	assert.ErrorIs(t, err, compute.ErrInvalidBufferSize)
	_, err = ctx.NewBuffer(compute.MemReadOnly, 128, nil)
	assert.ErrorIs(t, err, compute.ErrOutOfResources)
	_, err = ctx.NewBuffer(compute.MemReadOnly, 8, make([]byte, 4))
	assert.ErrorIs(t, err, compute.ErrInvalidBufferSize)

	m, err := ctx.NewBuffer(compute.MemReadOnly, 8, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	assert.Equal(t, int64(8), d.Stats().Bytes)
	dst := make([]byte, 8)
	require.NoError(t, q.EnqueueRead(m, dst))
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, dst)
	assert.ErrorIs(t, q.EnqueueRead(m, make([]byte, 16)), compute.ErrInvalidBufferSize)
	require.NoError(t, m.Release())
	assert.Zero(t, d.Stats().Bytes)
}

func TestAsyncFailureReportedAtNextBlockingCall(t *testing.T) {
	RegisterKernel("explode", []compute.ArgKind{compute.ArgMem}, func(g *Group) error {
		return errors.New("device fault")
	})

	d := New(Options{})
	ctx, q := openDevice(t, d)
	defer func() { _ = ctx.Release() }()

	prog, err := ctx.BuildProgram("__kernel void explode(__global float *a) {}")
	require.NoError(t, err)
	k, err := prog.Kernel("explode")
	require.NoError(t, err)
	buf, err := ctx.NewBuffer(compute.MemReadWrite, 4, nil)
	require.NoError(t, err)
	require.NoError(t, k.SetArgMem(0, buf))

	// The launch itself is accepted; the failure surfaces at Finish.
	require.NoError(t, q.EnqueueNDRange(k, 1, 1))
	err = q.Finish()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device fault")
	require.NoError(t, q.Finish())

	require.NoError(t, q.Release())
	assert.ErrorIs(t, q.Finish(), compute.ErrReleased)
	assert.ErrorIs(t, q.Release(), compute.ErrReleased)
	_ = buf.Release()
	_ = k.Release()
	_ = prog.Release()
}

func TestReleasedContext(t *testing.T) {
	d := New(Options{})
	ctx, q := openDevice(t, d)
	require.NoError(t, q.Release())
	require.NoError(t, ctx.Release())
	assert.ErrorIs(t, ctx.Release(), compute.ErrReleased)

	_, err := ctx.NewQueue()
	assert.ErrorIs(t, err, compute.ErrReleased)
	_, err = ctx.BuildProgram(kernels.ReduceOpenCL)
	assert.ErrorIs(t, err, compute.ErrReleased)
	_, err = ctx.NewBuffer(compute.MemReadOnly, 4, nil)
	assert.ErrorIs(t, err, compute.ErrReleased)
	assert.False(t, d.Stats().Live())
}
