package reduce

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpureduce/internal/compute"
)

// Element is a device buffer element type.
type Element interface {
	~float32 | ~int32
}

// Buffer is device memory mirroring a host slice. It belongs to the Context
// it was allocated on and must be closed before that Context.
type Buffer[T Element] struct {
	ctx   *Context
	mem   compute.Mem
	host  []T
	n     int
	bytes int

	mu       sync.Mutex
	released bool
}

// NewBuffer allocates read-only device memory and copies host into it before
// returning.
func NewBuffer[T Element](ctx *Context, host []T) (*Buffer[T], error) {
	return newBuffer(ctx, compute.MemReadOnly, host)
}

// NewOutputBuffer allocates read-write device memory for n elements,
// initialised to zero.
func NewOutputBuffer[T Element](ctx *Context, n int) (*Buffer[T], error) {
	if n < 1 {
		return nil, &AllocationError{Elements: n, Err: compute.ErrInvalidBufferSize}
	}
	return newBuffer(ctx, compute.MemReadWrite, make([]T, n))
}

func newBuffer[T Element](ctx *Context, flags compute.MemFlags, host []T) (*Buffer[T], error) {
	if ctx == nil {
		return nil, &AllocationError{Elements: len(host), Err: errors.New("nil context")}
	}
	if err := ctx.open(); err != nil {
		return nil, err
	}
	n := len(host)
	size := n * elementSize[T]()
	if n == 0 {
		return nil, &AllocationError{Elements: 0, Requested: 0, Err: compute.ErrInvalidBufferSize}
	}

	mem, err := ctx.ctx.NewBuffer(flags, size, asBytes(host))
	if err != nil {
		return nil, &AllocationError{Elements: n, Requested: size, Err: err}
	}
	if mem.Size() != size {
		err := errors.Wrapf(ErrSizeMismatch, "device reports %d bytes", mem.Size())
		if rerr := mem.Release(); rerr != nil {
			klog.Warningf("release of mis-sized buffer: %v", rerr)
		}
		return nil, &AllocationError{Elements: n, Requested: size, Err: err}
	}

	b := &Buffer[T]{ctx: ctx, mem: mem, host: host, n: n, bytes: size}
	if err := ctx.track(b); err != nil {
		_ = mem.Release()
		return nil, err
	}
	klog.V(2).Infof("allocated %s buffer: %d elements (%s)", flags, n, humanize.IBytes(uint64(size))) //nolint:gosec // size is positive
	return b, nil
}

// Len returns the number of elements.
func (b *Buffer[T]) Len() int { return b.n }

// ByteSize returns the size of the device memory in bytes.
func (b *Buffer[T]) ByteSize() int { return b.bytes }

// Host returns the host slice the buffer was created from. For output
// buffers it is the zero slice used for initialisation; device results are
// only visible through Read.
func (b *Buffer[T]) Host() []T { return b.host }

// handle returns the device memory, or an error if the buffer or its
// context was released.
func (b *Buffer[T]) handle() (compute.Mem, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil, &UseAfterReleaseError{Resource: b.String()}
	}
	if err := b.ctx.open(); err != nil {
		return nil, err
	}
	return b.mem, nil
}

// Read copies the device content into dst and blocks until every command
// queued before it, and the copy itself, completed. len(dst) must equal Len.
func (b *Buffer[T]) Read(dst []T) error {
	mem, err := b.handle()
	if err != nil {
		return err
	}
	if len(dst) != b.n {
		return &AllocationError{Elements: len(dst), Requested: len(dst) * elementSize[T](),
			Err: errors.Wrapf(ErrSizeMismatch, "buffer holds %d elements", b.n)}
	}
	if err := b.ctx.queue.EnqueueRead(mem, asBytes(dst)); err != nil {
		return errors.Wrapf(err, "read back %d elements", b.n)
	}
	return nil
}

// Close releases the device memory. Closing twice is a no-op.
func (b *Buffer[T]) Close() error {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return nil
	}
	b.released = true
	b.mu.Unlock()

	b.ctx.untrack(b)
	if err := b.mem.Release(); err != nil {
		return &TeardownError{Errs: []error{errors.Wrapf(err, "release %s", b)}}
	}
	return nil
}

// forceRelease is used by Context.Close for buffers left open.
func (b *Buffer[T]) forceRelease() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.released {
		return nil
	}
	b.released = true
	if err := b.mem.Release(); err != nil {
		return errors.Wrapf(err, "release %s", b)
	}
	return nil
}

// String implements fmt.Stringer.
func (b *Buffer[T]) String() string {
	var zero T
	return fmt.Sprintf("Buffer[%T](%d elements, %s)", zero, b.n, b.mem.Flags())
}

func elementSize[T Element]() int {
	var zero T
	return int(unsafe.Sizeof(zero))
}

// asBytes reinterprets s as its raw bytes without copying.
func asBytes[T Element](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion of a numeric slice
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*elementSize[T]())
}
