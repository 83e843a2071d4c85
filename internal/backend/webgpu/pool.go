package webgpu

import "sync"

// sizeClass buckets pooled buffers so small uniform buffers never have to be
// scanned past large staging buffers.
type sizeClass int

const (
	smallClass  sizeClass = iota // < 4KiB: uniforms, partial-sum read-back
	mediumClass                  // 4KiB-1MiB
	largeClass
	numClasses
)

const (
	smallThreshold  = 4 * 1024
	mediumThreshold = 1024 * 1024
	maxPooled       = 16 // per class
)

func classOf(size uint64) sizeClass {
	switch {
	case size < smallThreshold:
		return smallClass
	case size < mediumThreshold:
		return mediumClass
	default:
		return largeClass
	}
}

type pooledBuffer[B interface{ Release() }, U ~uint32 | ~uint64] struct {
	buf   B
	size  uint64
	usage U
}

// bufferPool recycles the transient buffers a queue needs per launch and per
// read. A buffer is handed out again only for a request whose size fits and
// whose usage flags are a subset of the pooled buffer's.
type bufferPool[B interface{ Release() }, U ~uint32 | ~uint64] struct {
	alloc func(size uint64, usage U) B

	mu      sync.Mutex
	classes [numClasses][]pooledBuffer[B, U]

	allocated, released, hits, misses uint64
}

func newBufferPool[B interface{ Release() }, U ~uint32 | ~uint64](alloc func(uint64, U) B) *bufferPool[B, U] {
	return &bufferPool[B, U]{alloc: alloc}
}

// acquire returns a buffer of at least size bytes with usage.
func (p *bufferPool[B, U]) acquire(size uint64, usage U) (B, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c := classOf(size)
	for i, pb := range p.classes[c] {
		if pb.size >= size && pb.usage&usage == usage {
			p.classes[c] = append(p.classes[c][:i], p.classes[c][i+1:]...)
			p.hits++
			return pb.buf, pb.size
		}
	}
	p.misses++
	p.allocated++
	return p.alloc(size, usage), size
}

// put returns buf to the pool, releasing it when its class is full.
func (p *bufferPool[B, U]) put(buf B, size uint64, usage U) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.released++
	c := classOf(size)
	if len(p.classes[c]) >= maxPooled {
		buf.Release()
		return
	}
	p.classes[c] = append(p.classes[c], pooledBuffer[B, U]{buf: buf, size: size, usage: usage})
}

// clear releases every pooled buffer.
func (p *bufferPool[B, U]) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := range p.classes {
		for _, pb := range p.classes[c] {
			pb.buf.Release()
		}
		p.classes[c] = p.classes[c][:0]
	}
}

type poolStats struct {
	allocated, released, hits, misses uint64
	pooled                            int
}

func (p *bufferPool[B, U]) stats() poolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := poolStats{allocated: p.allocated, released: p.released, hits: p.hits, misses: p.misses}
	for c := range p.classes {
		s.pooled += len(p.classes[c])
	}
	return s
}
