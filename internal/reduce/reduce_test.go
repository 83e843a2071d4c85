package reduce

import (
	"errors"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/gpureduce/internal/backend/host"
	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/kernels"
)

func iota32(n int) []float32 {
	values := make([]float32, n)
	for i := range values {
		values[i] = float32(i)
	}
	return values
}

// newTestContext opens the default kernel on a fresh host driver and closes
// it when the test ends.
func newTestContext(t *testing.T, opts host.Options) (*Context, *host.Driver) {
	t.Helper()
	drv := host.New(opts)
	ctx := must.M1(NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig()))
	t.Cleanup(func() {
		require.NoError(t, ctx.Close())
		assert.False(t, drv.Stats().Live(), "handles left: %+v", drv.Stats())
	})
	return ctx, drv
}

func TestReduce(t *testing.T) {
	ctx, _ := newTestContext(t, host.Options{})
	e := must.M1(NewEngine(ctx, Config{WorkGroupCount: 64, WorkGroupSize: 1}))

	sum, err := e.Reduce(iota32(1000))
	require.NoError(t, err)
	assert.InDelta(t, 499500, sum, 1e-2)
	assert.Zero(t, ctx.liveBuffers())
}

func TestReduceArithmeticSeries(t *testing.T) {
	ctx, _ := newTestContext(t, host.Options{})
	e := must.M1(NewEngine(ctx, DefaultConfig()))
	assert.Equal(t, 128, e.Config().WorkGroupSize)

	for _, n := range []int{1, 2, 3, 127, 128, 1000, 4097, 100_000} {
		input := iota32(n)
		want := float64(n) * float64(n-1) / 2

		sum, err := e.Reduce(input)
		require.NoError(t, err, "n=%d", n)
		if want == 0 {
			assert.Zero(t, sum)
			continue
		}
		assert.InEpsilon(t, want, sum, 1e-5, "n=%d", n)

		ref, err := e.ReduceHost(input)
		require.NoError(t, err)
		assert.InEpsilon(t, ref, sum, 1e-5, "device and host disagree for n=%d", n)
	}
}

func TestReduceIndependentOfGroupCount(t *testing.T) {
	ctx, _ := newTestContext(t, host.Options{})
	input := iota32(50_000)

	var sums []float32
	for _, groups := range []int{1, 16, 64, 256} {
		e := must.M1(NewEngine(ctx, Config{WorkGroupCount: groups, WorkGroupSize: 32}))
		sum, err := e.Reduce(input)
		require.NoError(t, err, "groups=%d", groups)
		sums = append(sums, sum)
	}
	for _, s := range sums[1:] {
		assert.InEpsilon(t, sums[0], s, 1e-5)
	}
}

func TestReduceEmptyInput(t *testing.T) {
	ctx, drv := newTestContext(t, host.Options{})
	e := must.M1(NewEngine(ctx, DefaultConfig()))
	before := drv.Stats()

	_, err := e.Reduce(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyInput)
	var ie *InvalidInputError
	assert.True(t, errors.As(err, &ie))
	assert.Equal(t, before, drv.Stats(), "no device interaction expected")

	_, err = e.ReduceHost([]float32{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestKahanSum(t *testing.T) {
	sum, err := KahanSum([]float32{42})
	require.NoError(t, err)
	assert.Equal(t, float32(42), sum)

	// 1 followed by many values below half an ulp of 1: a naive float32 sum
	// never moves, the compensated one does.
	values := []float32{1}
	for range 10_000 {
		values = append(values, 1e-8)
	}
	var naive float32
	for _, v := range values {
		naive += v
	}
	assert.Equal(t, float32(1), naive)
	sum, err = KahanSum(values)
	require.NoError(t, err)
	assert.InDelta(t, 1.0001, sum, 1e-6)

	d, err := KahanSum([]float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, d, 1e-15)

	_, err = KahanSum[float64](nil)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestConstructionBuildFailure(t *testing.T) {
	drv := host.New(host.Options{})
	_, err := NewContext(drv, "__kernel void reduce(__global float *a) {", kernels.EntryPoint, DefaultConfig())
	require.Error(t, err)

	var ce *ConstructionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StageBuild, ce.Stage)
	assert.Contains(t, ce.Log, "error:")
	assert.ErrorIs(t, err, compute.ErrBuildFailed)
	assert.False(t, drv.Stats().Live(), "handles left: %+v", drv.Stats())
}

func TestConstructionUnknownEntryPoint(t *testing.T) {
	drv := host.New(host.Options{})
	_, err := NewContext(drv, kernels.ReduceOpenCL, "scan", DefaultConfig())

	var ce *ConstructionError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StageKernel, ce.Stage)
	assert.ErrorIs(t, err, compute.ErrKernelNotFound)
	assert.False(t, drv.Stats().Live(), "handles left: %+v", drv.Stats())
}

func TestConstructionSelection(t *testing.T) {
	drv := host.New(host.Options{})
	tests := []struct {
		name  string
		cfg   Config
		stage Stage
		want  error
	}{
		{"platform", Config{PlatformIndex: 1, WorkGroupCount: 1}, StagePlatform, compute.ErrNoPlatforms},
		{"device", Config{DeviceIndex: 3, WorkGroupCount: 1}, StageDevice, compute.ErrNoDevices},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, tt.cfg)
			var ce *ConstructionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.stage, ce.Stage)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, Config{DeviceIndex: -1, WorkGroupCount: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, drv.Stats().Live())
}

func TestConstructionRollback(t *testing.T) {
	tests := []struct {
		point string
		stage Stage
		want  []string
	}{
		{"new queue", StageQueue, []string{"context"}},
		{"build", StageBuild, []string{"queue", "context"}},
	}
	for _, tt := range tests {
		t.Run(tt.point, func(t *testing.T) {
			inner := host.New(host.Options{})
			drv := newFaultDriver(inner, tt.point)
			_, err := NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig())

			var ce *ConstructionError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.stage, ce.Stage)
			assert.ErrorIs(t, err, errInjected)
			assert.Equal(t, tt.want, drv.releases())
			assert.False(t, inner.Stats().Live(), "handles left: %+v", inner.Stats())
		})
	}

	t.Run("build log", func(t *testing.T) {
		drv := newFaultDriver(host.New(host.Options{}), "build")
		_, err := NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig())
		var ce *ConstructionError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, "injected build log", ce.Log)
		assert.Contains(t, err.Error(), "injected build log")
	})
}

func TestCloseReleaseOrder(t *testing.T) {
	inner := host.New(host.Options{})
	drv := newFaultDriver(inner, "release program")
	ctx := must.M1(NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig()))

	err := ctx.Close()
	require.Error(t, err)
	var te *TeardownError
	require.True(t, errors.As(err, &te))
	assert.Len(t, te.Errs, 1)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, []string{"kernel", "program", "queue", "context"}, drv.releases())
	assert.False(t, inner.Stats().Live(), "handles left: %+v", inner.Stats())

	assert.NoError(t, ctx.Close(), "second Close")
	assert.True(t, ctx.Closed())
}

func TestCloseReleasesLiveBuffers(t *testing.T) {
	drv := host.New(host.Options{})
	ctx := must.M1(NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig()))
	in := must.M1(NewBuffer(ctx, iota32(16)))
	_ = must.M1(NewOutputBuffer[float32](ctx, 4))
	assert.Equal(t, int64(2), drv.Stats().Buffers)

	require.NoError(t, ctx.Close())
	assert.False(t, drv.Stats().Live(), "handles left: %+v", drv.Stats())

	var ue *UseAfterReleaseError
	assert.True(t, errors.As(in.Read(make([]float32, 16)), &ue))
	assert.NoError(t, in.Close())
}

func TestUseAfterRelease(t *testing.T) {
	drv := host.New(host.Options{})
	ctx := must.M1(NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig()))
	e := must.M1(NewEngine(ctx, DefaultConfig()))

	b := must.M1(NewBuffer(ctx, iota32(8)))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	err := b.Read(make([]float32, 8))
	assert.ErrorIs(t, err, compute.ErrReleased)
	out := must.M1(NewOutputBuffer[float32](ctx, 1))
	err = Dispatch(ctx, b, out, 1, 1)
	var ue *UseAfterReleaseError
	require.True(t, errors.As(err, &ue))
	require.NoError(t, out.Close())

	require.NoError(t, ctx.Close())
	_, err = e.Reduce(iota32(8))
	assert.True(t, errors.As(err, &ue))
	_, err = NewBuffer(ctx, iota32(8))
	assert.ErrorIs(t, err, compute.ErrReleased)
	_, err = NewEngine(ctx, DefaultConfig())
	assert.ErrorIs(t, err, compute.ErrReleased)
	assert.False(t, drv.Stats().Live())
}

func TestBufferRoundTrip(t *testing.T) {
	ctx, drv := newTestContext(t, host.Options{})

	ints := []int32{-3, 0, 7, 1 << 30}
	ib := must.M1(NewBuffer(ctx, ints))
	assert.Equal(t, 4, ib.Len())
	assert.Equal(t, 16, ib.ByteSize())
	assert.Equal(t, ints, ib.Host())
	got := make([]int32, 4)
	require.NoError(t, ib.Read(got))
	assert.Equal(t, ints, got)

	fb := must.M1(NewOutputBuffer[float32](ctx, 3))
	fgot := []float32{1, 2, 3}
	require.NoError(t, fb.Read(fgot))
	assert.Equal(t, []float32{0, 0, 0}, fgot)

	err := fb.Read(make([]float32, 2))
	var ae *AllocationError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, ErrSizeMismatch)

	assert.Equal(t, int64(2), drv.Stats().Buffers)
	require.NoError(t, ib.Close())
	require.NoError(t, fb.Close())
	assert.Zero(t, drv.Stats().Buffers)
}

func TestBufferAllocationErrors(t *testing.T) {
	ctx, _ := newTestContext(t, host.Options{MaxAllocSize: 64})

	_, err := NewBuffer(ctx, []float32{})
	var ae *AllocationError
	require.True(t, errors.As(err, &ae))
	assert.ErrorIs(t, err, compute.ErrInvalidBufferSize)

	_, err = NewBuffer(ctx, iota32(17))
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, 17, ae.Elements)
	assert.Equal(t, 68, ae.Requested)
	assert.ErrorIs(t, err, compute.ErrOutOfResources)

	_, err = NewOutputBuffer[int32](ctx, 0)
	assert.True(t, errors.As(err, &ae))

	e := must.M1(NewEngine(ctx, Config{WorkGroupCount: 4, WorkGroupSize: 4}))
	_, err = e.Reduce(iota32(100))
	assert.True(t, errors.As(err, &ae))
	assert.Zero(t, ctx.liveBuffers())
}

func TestDispatchValidation(t *testing.T) {
	ctx, _ := newTestContext(t, host.Options{MaxWorkGroupSize: 64, LocalMemSize: 128})
	in := must.M1(NewBuffer(ctx, iota32(100)))
	defer func() { require.NoError(t, in.Close()) }()
	out := must.M1(NewOutputBuffer[float32](ctx, 4))
	defer func() { require.NoError(t, out.Close()) }()

	tests := []struct {
		name         string
		groups, size int
		want         error
	}{
		{"no groups", 0, 4, compute.ErrInvalidWorkGroupSize},
		{"no items", 4, 0, compute.ErrInvalidWorkGroupSize},
		{"above device maximum", 1, 128, compute.ErrInvalidWorkGroupSize},
		{"local memory", 1, 64, compute.ErrOutOfResources},
		{"output too small", 8, 4, ErrOutputTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Dispatch(ctx, in, out, tt.groups, tt.size)
			var de *DispatchError
			require.True(t, errors.As(err, &de), "got %v", err)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	other, _ := newTestContext(t, host.Options{})
	foreign := must.M1(NewOutputBuffer[float32](other, 4))
	defer func() { require.NoError(t, foreign.Close()) }()
	assert.ErrorIs(t, Dispatch(ctx, in, foreign, 4, 4), compute.ErrForeignHandle)

	// The context stays usable after a rejected dispatch.
	require.NoError(t, Dispatch(ctx, in, out, 4, 16))
	partials := make([]float32, 4)
	require.NoError(t, out.Read(partials))
	sum := must.M1(KahanSum(partials))
	assert.Equal(t, float32(4950), sum)
}

func TestDispatchSignatureMismatch(t *testing.T) {
	host.RegisterKernel("reduce_swapped",
		[]compute.ArgKind{compute.ArgMem, compute.ArgInt32, compute.ArgLocal, compute.ArgMem},
		func(*host.Group) error { return nil })
	drv := host.New(host.Options{})
	ctx := must.M1(NewContext(drv,
		"__kernel void reduce_swapped(__global float *a, int n, __local float *s, __global float *b) {}",
		"reduce_swapped", DefaultConfig()))
	defer func() { require.NoError(t, ctx.Close()) }()
	assert.Equal(t, "reduce_swapped", ctx.EntryPoint())

	in := must.M1(NewBuffer(ctx, iota32(8)))
	defer func() { require.NoError(t, in.Close()) }()
	out := must.M1(NewOutputBuffer[float32](ctx, 1))
	defer func() { require.NoError(t, out.Close()) }()

	err := Dispatch(ctx, in, out, 1, 1)
	var de *DispatchError
	require.True(t, errors.As(err, &de))
	assert.ErrorIs(t, err, compute.ErrArgKind)
	assert.Contains(t, de.Op, "argument 1")
}

func TestReduceReleaseFailureDoesNotMaskResult(t *testing.T) {
	inner := host.New(host.Options{})
	drv := newFaultDriver(inner, "release mem")
	ctx := must.M1(NewContext(drv, kernels.ReduceOpenCL, kernels.EntryPoint, DefaultConfig()))
	e := must.M1(NewEngine(ctx, Config{WorkGroupCount: 8, WorkGroupSize: 8}))

	sum, err := e.Reduce(iota32(1000))
	require.NoError(t, err)
	assert.InDelta(t, 499500, sum, 1e-2)
	assert.Equal(t, []string{"mem", "mem"}, drv.releases())

	require.NoError(t, ctx.Close())
	assert.False(t, inner.Stats().Live(), "handles left: %+v", inner.Stats())
}

func TestConfig(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.ErrorIs(t, Config{WorkGroupCount: 0}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{WorkGroupCount: 1, WorkGroupSize: 48}.Validate(), ErrInvalidConfig)
	assert.ErrorIs(t, Config{WorkGroupCount: 1, PlatformIndex: -1}.Validate(), ErrInvalidConfig)

	for maxSize, want := range map[int]int{0: 1, 1: 1, 3: 2, 64: 64, 100: 64, 128: 128, 1024: 128} {
		assert.Equal(t, want, autoWorkGroupSize(maxSize), "device maximum %d", maxSize)
	}

	ctx, _ := newTestContext(t, host.Options{MaxWorkGroupSize: 32})
	e := must.M1(NewEngine(ctx, DefaultConfig()))
	assert.Equal(t, 32, e.Config().WorkGroupSize)
	_, err := NewEngine(ctx, Config{WorkGroupCount: 1, WorkGroupSize: 64})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestListDevices(t *testing.T) {
	list, err := ListDevices(host.New(host.Options{}))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Host", list[0].Platform.Name)
	require.Len(t, list[0].Devices, 1)
	assert.Equal(t, compute.DeviceTypeCPU, list[0].Devices[0].Type)
}
