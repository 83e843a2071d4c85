package host

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/born-ml/gpureduce/internal/compute"
)

type context struct {
	driver *Driver

	mu       sync.Mutex
	released bool
}

func (c *context) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("host: context: %w", compute.ErrReleased)
	}
	return nil
}

func (c *context) NewQueue() (compute.Queue, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return newQueue(c), nil
}

func (c *context) BuildProgram(source string) (compute.Program, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	decls, err := compile(source)
	if err != nil {
		return nil, err
	}
	c.driver.stats.programs.Add(1)
	return &program{ctx: c, decls: decls}, nil
}

func (c *context) NewBuffer(flags compute.MemFlags, size int, host []byte) (compute.Mem, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	if size <= 0 {
		return nil, fmt.Errorf("host: buffer of %d bytes: %w", size, compute.ErrInvalidBufferSize)
	}
	if size > c.driver.opts.MaxAllocSize {
		return nil, fmt.Errorf("host: buffer of %d bytes exceeds max allocation of %d: %w",
			size, c.driver.opts.MaxAllocSize, compute.ErrOutOfResources)
	}
	if host != nil && len(host) != size {
		return nil, fmt.Errorf("host: host data has %d bytes, buffer %d: %w",
			len(host), size, compute.ErrInvalidBufferSize)
	}

	m := &mem{ctx: c, flags: flags, size: size, words: make([]uint32, (size+3)/4)}
	if host != nil {
		copy(m.bytes(), host)
	}
	c.driver.stats.buffers.Add(1)
	c.driver.stats.bytes.Add(int64(size))
	return m, nil
}

func (c *context) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return fmt.Errorf("host: context: %w", compute.ErrReleased)
	}
	c.released = true
	c.driver.stats.contexts.Add(-1)
	return nil
}

// mem is host memory standing in for device memory. It is backed by 32-bit
// words so float32 and int32 views are always aligned.
type mem struct {
	ctx   *context
	flags compute.MemFlags
	size  int

	mu       sync.RWMutex
	words    []uint32
	released bool
}

func (m *mem) Size() int              { return m.size }
func (m *mem) Flags() compute.MemFlags { return m.flags }

func (m *mem) bytes() []byte {
	return wordBytes(m.words, m.size)
}

// snapshot returns the backing words, or ErrReleased once the buffer is gone.
func (m *mem) snapshot() ([]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.released {
		return nil, fmt.Errorf("host: buffer: %w", compute.ErrReleased)
	}
	return m.words, nil
}

func wordBytes(words []uint32, size int) []byte {
	if len(words) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy view of the word buffer
	return unsafe.Slice((*byte)(unsafe.Pointer(&words[0])), size)
}

func wordFloat32s(words []uint32) []float32 {
	if len(words) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy view of the word buffer
	return unsafe.Slice((*float32)(unsafe.Pointer(&words[0])), len(words))
}

func wordInt32s(words []uint32) []int32 {
	if len(words) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy view of the word buffer
	return unsafe.Slice((*int32)(unsafe.Pointer(&words[0])), len(words))
}

func (m *mem) alive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.released
}

func (m *mem) Release() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return fmt.Errorf("host: buffer: %w", compute.ErrReleased)
	}
	m.released = true
	m.words = nil
	m.ctx.driver.stats.buffers.Add(-1)
	m.ctx.driver.stats.bytes.Add(-int64(m.size))
	return nil
}

// asMem converts a compute.Mem created by this driver back to *mem.
func asMem(m compute.Mem) (*mem, error) {
	hm, ok := m.(*mem)
	if !ok || hm == nil {
		return nil, fmt.Errorf("host: %T: %w", m, compute.ErrForeignHandle)
	}
	if !hm.alive() {
		return nil, fmt.Errorf("host: buffer: %w", compute.ErrReleased)
	}
	return hm, nil
}
