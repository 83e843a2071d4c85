package webgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	size     uint64
	released int
}

func (b *fakeBuffer) Release() { b.released++ }

const (
	usageMapRead uint64 = 1 << iota
	usageCopyDst
	usageUniform
)

func newFakePool() *bufferPool[*fakeBuffer, uint64] {
	return newBufferPool(func(size uint64, _ uint64) *fakeBuffer { return &fakeBuffer{size: size} })
}

func TestBufferPoolReuse(t *testing.T) {
	pool := newFakePool()

	b1, size := pool.acquire(1024, usageMapRead|usageCopyDst)
	require.NotNil(t, b1)
	assert.Equal(t, uint64(1024), size)
	pool.put(b1, size, usageMapRead|usageCopyDst)

	// Smaller request with a subset of the flags hits.
	b2, size := pool.acquire(512, usageCopyDst)
	assert.Same(t, b1, b2)
	assert.Equal(t, uint64(1024), size)

	s := pool.stats()
	assert.Equal(t, uint64(1), s.allocated)
	assert.Equal(t, uint64(1), s.hits)
	assert.Equal(t, uint64(1), s.misses)
	assert.Equal(t, 0, s.pooled)
}

func TestBufferPoolMisses(t *testing.T) {
	pool := newFakePool()

	b1, size := pool.acquire(16, usageUniform)
	pool.put(b1, size, usageUniform)

	// Wrong usage.
	b2, _ := pool.acquire(16, usageMapRead)
	assert.NotSame(t, b1, b2)
	// Too large for the pooled buffer.
	b3, _ := pool.acquire(64, usageUniform)
	assert.NotSame(t, b1, b3)
	// Different size class.
	b4, _ := pool.acquire(8*1024, usageUniform)
	assert.NotSame(t, b1, b4)

	assert.Equal(t, uint64(4), pool.stats().misses)
	assert.Equal(t, 1, pool.stats().pooled)
}

func TestBufferPoolOverflowAndClear(t *testing.T) {
	pool := newFakePool()

	bufs := make([]*fakeBuffer, maxPooled+2)
	for i := range bufs {
		bufs[i], _ = pool.acquire(16, usageUniform)
	}
	for _, b := range bufs {
		pool.put(b, 16, usageUniform)
	}
	assert.Equal(t, maxPooled, pool.stats().pooled)
	assert.Equal(t, 1, bufs[maxPooled].released)
	assert.Equal(t, 1, bufs[maxPooled+1].released)

	pool.clear()
	assert.Equal(t, 0, pool.stats().pooled)
	for _, b := range bufs {
		assert.Equal(t, 1, b.released)
	}
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, smallClass, classOf(0))
	assert.Equal(t, smallClass, classOf(smallThreshold-1))
	assert.Equal(t, mediumClass, classOf(smallThreshold))
	assert.Equal(t, largeClass, classOf(mediumThreshold))
}
