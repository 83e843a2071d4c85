package reduce

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Engine runs the two-phase reduction on a Context: one device pass producing
// WorkGroupCount partial sums, then KahanSum on the host.
type Engine struct {
	ctx *Context
	cfg Config

	mu sync.Mutex
}

// NewEngine validates cfg against the device of ctx. A zero WorkGroupSize is
// replaced by the largest power of two not above min(128, device maximum).
func NewEngine(ctx *Context, cfg Config) (*Engine, error) {
	if ctx == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "nil context")
	}
	if err := ctx.open(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dev := ctx.Device()
	cfg.WorkGroupSize = cfg.ResolvedWorkGroupSize(dev.MaxWorkGroupSize)
	if dev.MaxWorkGroupSize > 0 && cfg.WorkGroupSize > dev.MaxWorkGroupSize {
		return nil, errors.Wrapf(ErrInvalidConfig, "work-group size %d exceeds device maximum %d",
			cfg.WorkGroupSize, dev.MaxWorkGroupSize)
	}
	klog.V(1).Infof("reduction engine on %s: %d work groups of %d", dev.Name, cfg.WorkGroupCount, cfg.WorkGroupSize)
	return &Engine{ctx: ctx, cfg: cfg}, nil
}

// Config returns the resolved configuration.
func (e *Engine) Config() Config { return e.cfg }

// Context returns the context the engine dispatches on.
func (e *Engine) Context() *Context { return e.ctx }

// Reduce returns the sum of input computed on the device.
//
// Buffers are released on every path. A release failure after a successful
// computation is logged and the result is still returned.
func (e *Engine) Reduce(input []float32) (sum float32, err error) {
	if len(input) == 0 {
		return 0, emptyInput()
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	groups, size := e.cfg.WorkGroupCount, e.cfg.WorkGroupSize

	in, err := NewBuffer(e.ctx, input)
	if err != nil {
		return 0, err
	}
	defer e.release(in, &err)

	out, err := NewOutputBuffer[float32](e.ctx, groups)
	if err != nil {
		return 0, err
	}
	defer e.release(out, &err)

	if err = Dispatch(e.ctx, in, out, groups, size); err != nil {
		return 0, err
	}
	partials := make([]float32, groups)
	if err = out.Read(partials); err != nil {
		return 0, err
	}
	if sum, err = KahanSum(partials); err != nil {
		return 0, err
	}
	klog.V(2).Infof("reduced %d elements on %s in %s", len(input), e.ctx.Driver(), time.Since(start))
	return sum, nil
}

// release closes b. Its failure is only logged when the reduction succeeded
// or already failed with another error.
func (e *Engine) release(b interface{ Close() error }, err *error) {
	rerr := b.Close()
	if rerr == nil {
		return
	}
	if *err == nil {
		klog.Warningf("reduction succeeded but buffer release failed: %v", rerr)
		return
	}
	klog.Warningf("buffer release after failed reduction: %v", rerr)
}

// ReduceHost returns the host-only reference sum of input.
func (e *Engine) ReduceHost(input []float32) (float32, error) {
	return KahanSum(input)
}
