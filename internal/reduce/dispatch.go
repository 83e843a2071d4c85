package reduce

import (
	"math"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpureduce/internal/compute"
)

// Kernel argument positions of the reduction kernel.
const (
	argInput = iota
	argScratch
	argCount
	argOutput
)

// Dispatch binds the reduction kernel arguments (input buffer, local scratch
// of size elements, element count, output buffer) and enqueues one
// one-dimensional launch of groups*size work items in groups of size.
//
// Dispatch does not wait for the kernel; completion is observed by the next
// blocking read on the context queue.
func Dispatch[T Element](ctx *Context, in, out *Buffer[T], groups, size int) error {
	if err := ctx.open(); err != nil {
		return err
	}
	if in.ctx != ctx || out.ctx != ctx {
		return &DispatchError{Op: "validate buffers", Err: compute.ErrForeignHandle}
	}
	inMem, err := in.handle()
	if err != nil {
		return err
	}
	outMem, err := out.handle()
	if err != nil {
		return err
	}

	dev := ctx.Device()
	elem := elementSize[T]()
	switch {
	case groups < 1:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(compute.ErrInvalidWorkGroupSize, "work-group count %d", groups)}
	case size < 1:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(compute.ErrInvalidWorkGroupSize, "work-group size %d", size)}
	case dev.MaxWorkGroupSize > 0 && size > dev.MaxWorkGroupSize:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(compute.ErrInvalidWorkGroupSize,
			"work-group size %d exceeds device maximum %d", size, dev.MaxWorkGroupSize)}
	case dev.LocalMemSize > 0 && size*elem > dev.LocalMemSize:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(compute.ErrOutOfResources,
			"local scratch of %d bytes exceeds device local memory %d", size*elem, dev.LocalMemSize)}
	case out.Len() < groups:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(ErrOutputTooSmall,
			"%d elements for %d work groups", out.Len(), groups)}
	case in.Len() > math.MaxInt32:
		return &DispatchError{Op: "validate sizes", Err: errors.Errorf("input of %d elements overflows the int count argument", in.Len())}
	case groups > math.MaxInt/size:
		return &DispatchError{Op: "validate sizes", Err: errors.Wrapf(compute.ErrInvalidWorkGroupSize,
			"global size %d*%d overflows", groups, size)}
	}

	k := ctx.kernel
	if err := k.SetArgMem(argInput, inMem); err != nil {
		return &DispatchError{Op: "set argument 0 (input)", Err: err}
	}
	if err := k.SetArgLocal(argScratch, size*elem); err != nil {
		return &DispatchError{Op: "set argument 1 (scratch)", Err: err}
	}
	if err := k.SetArgInt32(argCount, int32(in.Len())); err != nil { //nolint:gosec // bounded by MaxInt32 above
		return &DispatchError{Op: "set argument 2 (count)", Err: err}
	}
	if err := k.SetArgMem(argOutput, outMem); err != nil {
		return &DispatchError{Op: "set argument 3 (output)", Err: err}
	}

	global := groups * size
	if err := ctx.queue.EnqueueNDRange(k, global, size); err != nil {
		return &DispatchError{Op: "enqueue kernel", Err: err}
	}
	klog.V(2).Infof("enqueued %s: global %d, local %d, %d elements", k.Name(), global, size, in.Len())
	return nil
}
