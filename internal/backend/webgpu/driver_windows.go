//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/gpureduce/internal/compute"
)

// guard converts a panic from the native library into an error. go-webgpu
// panics when wgpu-native cannot be loaded and on validation failures.
func guard(op string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("webgpu: %s: %v", op, r)
	}
}

type runtime struct{}

func (runtime) available() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			klog.V(1).Infof("webgpu: native library not available: %v", r)
			ok = false
		}
	}()
	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()
	return true
}

func (runtime) platforms() (_ []compute.Platform, err error) {
	defer guard("enumerate adapters", &err)

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, errors.Wrap(compute.ErrNoDevices, "webgpu: request adapter: "+err.Error())
	}
	defer adapter.Release()
	info := adapter.GetInfo()

	name := info.Description
	if name == "" {
		name = info.Device
	}
	dev := &device{info: compute.DeviceInfo{
		Name:             name,
		Vendor:           info.Vendor,
		Version:          "WebGPU",
		Type:             compute.DeviceTypeGPU,
		MaxWorkGroupSize: DefaultMaxWorkGroupSize,
		LocalMemSize:     DefaultLocalMemSize,
		MaxAllocSize:     DefaultMaxAllocSize,
	}}
	return []compute.Platform{&platform{dev: dev}}, nil
}

type platform struct {
	dev *device
}

func (p *platform) Info() compute.PlatformInfo {
	return compute.PlatformInfo{Name: "WebGPU", Vendor: "wgpu-native", Version: "go-webgpu"}
}

func (p *platform) Devices(kind compute.DeviceType) ([]compute.Device, error) {
	if !compute.DeviceTypeGPU.Matches(kind) {
		return nil, errors.Wrapf(compute.ErrNoDevices, "webgpu: no device of type %s", kind)
	}
	return []compute.Device{p.dev}, nil
}

type device struct {
	info compute.DeviceInfo
}

func (d *device) Info() compute.DeviceInfo { return d.info }

// NewContext requests a fresh adapter and logical device. Each context owns
// its own wgpu device, so contexts never share queues.
func (d *device) NewContext() (_ compute.Context, err error) {
	defer guard("create device", &err)

	instance := wgpu.CreateInstance(nil)
	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", err)
	}
	dev, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", err)
	}
	klog.V(2).Infof("webgpu: device on %s", d.info.Name)
	c := &context{info: d.info, instance: instance, adapter: adapter, device: dev}
	c.staging = newBufferPool(func(size uint64, usage wgpu.BufferUsage) *wgpu.Buffer {
		return dev.CreateBuffer(&wgpu.BufferDescriptor{Usage: usage, Size: size})
	})
	return c, nil
}

// state tracks the released flag shared by every wrapper.
type state struct {
	mu       sync.Mutex
	released bool
}

func (s *state) check(what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errors.Wrap(compute.ErrReleased, "webgpu: "+what)
	}
	return nil
}

// markReleased flags the handle released; a second call fails.
func (s *state) markReleased(what string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return errors.Wrap(compute.ErrReleased, "webgpu: "+what)
	}
	s.released = true
	return nil
}

type context struct {
	state
	info     compute.DeviceInfo
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device

	// Read-back buffers, reused across reads.
	staging *bufferPool[*wgpu.Buffer, wgpu.BufferUsage]
}

const stagingUsage = wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst

// NewQueue wraps the device's single queue.
func (c *context) NewQueue() (_ compute.Queue, err error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	defer guard("get queue", &err)
	q := c.device.GetQueue()
	if q == nil {
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}
	return &queue{ctx: c, q: q}, nil
}

func (c *context) BuildProgram(source string) (_ compute.Program, err error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	si, perr := parseShader(source)
	if perr != nil {
		return nil, &compute.BuildError{Driver: Name, Log: perr.Error(), Err: perr}
	}

	var shader *wgpu.ShaderModule
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &compute.BuildError{Driver: Name, Log: fmt.Sprint(r), Err: fmt.Errorf("shader module rejected")}
			}
		}()
		shader = c.device.CreateShaderModuleWGSL(source)
	}()
	if err != nil {
		return nil, err
	}
	if shader == nil {
		return nil, &compute.BuildError{Driver: Name, Log: "shader module creation returned nil", Err: compute.ErrBuildFailed}
	}
	return &program{ctx: c, shader: shader, iface: si}, nil
}

func (c *context) NewBuffer(flags compute.MemFlags, size int, host []byte) (_ compute.Mem, err error) {
	if err := c.check("context"); err != nil {
		return nil, err
	}
	if size <= 0 || size%4 != 0 || (host != nil && len(host) != size) {
		return nil, errors.Wrapf(compute.ErrInvalidBufferSize, "webgpu: buffer of %d bytes (%d host bytes)", size, len(host))
	}
	if size > c.info.MaxAllocSize {
		return nil, errors.Wrapf(compute.ErrOutOfResources, "webgpu: buffer of %d bytes exceeds max binding of %d", size, c.info.MaxAllocSize)
	}
	defer guard("create buffer", &err)

	//nolint:gosec // G115: size checked positive above
	n := uint64(size)
	buf := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:             n,
		MappedAtCreation: wgpu.True,
	})
	if buf == nil {
		return nil, errors.Wrap(compute.ErrOutOfResources, "webgpu: create buffer")
	}
	mapped := unsafe.Slice((*byte)(buf.GetMappedRange(0, n)), n) //nolint:gosec // mapped range of n bytes
	if host != nil {
		copy(mapped, host)
	} else {
		clear(mapped)
	}
	buf.Unmap()
	return &mem{buf: buf, flags: flags, size: size}, nil
}

func (c *context) Release() error {
	if err := c.markReleased("context"); err != nil {
		return err
	}
	s := c.staging.stats()
	klog.V(2).Infof("webgpu: staging pool %d hits, %d misses", s.hits, s.misses)
	c.staging.clear()
	c.device.Release()
	c.adapter.Release()
	c.instance.Release()
	return nil
}

type queue struct {
	state
	ctx *context
	q   *wgpu.Queue

	// Per-launch objects kept alive until the next blocking call.
	pending []interface{ Release() }
}

func (q *queue) EnqueueNDRange(k compute.Kernel, global, local int) (err error) {
	if err := q.check("queue"); err != nil {
		return err
	}
	wk, ok := k.(*kernel)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "webgpu: %T", k)
	}
	if err := wk.check("kernel " + wk.name); err != nil {
		return err
	}
	if local != wk.workGroupSize {
		return errors.Wrapf(compute.ErrInvalidWorkGroupSize,
			"webgpu: kernel %s was compiled for work groups of %d, launch uses %d", wk.name, wk.workGroupSize, local)
	}
	if global <= 0 || global%local != 0 {
		return errors.Wrapf(compute.ErrInvalidWorkGroupSize, "webgpu: global %d, local %d", global, local)
	}
	args, err := wk.snapshot()
	if err != nil {
		return err
	}
	defer guard("dispatch "+wk.name, &err)

	var entries []wgpu.BindGroupEntry
	for i, a := range args {
		switch a.kind {
		case compute.ArgMem:
			//nolint:gosec // G115: buffer sizes are positive
			entries = append(entries, wgpu.BufferBindingEntry(uint32(i), a.mem.buf, 0, uint64(a.mem.size)))
		case compute.ArgInt32:
			params := make([]byte, 16)
			binary.LittleEndian.PutUint32(params, uint32(a.value)) //nolint:gosec // reinterpretation of the bits
			ub := q.ctx.uniform(params)
			q.pending = append(q.pending, ub)
			//nolint:gosec // G115: binding index is small
			entries = append(entries, wgpu.BufferBindingEntry(uint32(i), ub, 0, 16))
		}
	}

	layout := wk.pipeline.GetBindGroupLayout(0)
	bindGroup := q.ctx.device.CreateBindGroupSimple(layout, entries)
	q.pending = append(q.pending, bindGroup)

	encoder := q.ctx.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(wk.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32(global/local), 1, 1) //nolint:gosec // G115: bounded by global
	pass.End()
	q.q.Submit(encoder.Finish(nil))
	return nil
}

// uniform creates a 16-byte uniform buffer holding data.
func (c *context) uniform(data []byte) *wgpu.Buffer {
	buf := c.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             16,
		MappedAtCreation: wgpu.True,
	})
	copy(unsafe.Slice((*byte)(buf.GetMappedRange(0, 16)), 16), data) //nolint:gosec // mapped range of 16 bytes
	buf.Unmap()
	return buf
}

// EnqueueRead copies m through a staging buffer. Mapping waits for every
// submitted command, which makes the read blocking.
func (q *queue) EnqueueRead(m compute.Mem, dst []byte) (err error) {
	if err := q.check("queue"); err != nil {
		return err
	}
	wm, ok := m.(*mem)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "webgpu: %T", m)
	}
	if err := wm.check("buffer"); err != nil {
		return err
	}
	if len(dst) > wm.size || len(dst)%4 != 0 {
		return errors.Wrapf(compute.ErrInvalidBufferSize, "webgpu: read of %d bytes from a %d byte buffer", len(dst), wm.size)
	}
	defer q.releasePending()
	if len(dst) == 0 {
		return nil
	}
	defer guard("read buffer", &err)

	size := uint64(len(dst))
	staging, capacity := q.ctx.staging.acquire(size, stagingUsage)
	defer q.ctx.staging.put(staging, capacity, stagingUsage)

	encoder := q.ctx.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(wm.buf, 0, staging, 0, size)
	q.q.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(q.ctx.device, wgpu.MapModeRead, 0, size); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	copy(dst, unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)) //nolint:gosec // mapped range of size bytes
	staging.Unmap()
	return nil
}

// Finish waits for submitted work by mapping an empty read.
func (q *queue) Finish() (err error) {
	if err := q.check("queue"); err != nil {
		return err
	}
	defer q.releasePending()
	defer guard("finish", &err)

	staging, capacity := q.ctx.staging.acquire(4, stagingUsage)
	defer q.ctx.staging.put(staging, capacity, stagingUsage)
	q.q.Submit(q.ctx.device.CreateCommandEncoder(nil).Finish(nil))
	if err := staging.MapAsync(q.ctx.device, wgpu.MapModeRead, 0, 4); err != nil {
		return fmt.Errorf("webgpu: finish: %w", err)
	}
	staging.Unmap()
	return nil
}

func (q *queue) releasePending() {
	for _, r := range q.pending {
		r.Release()
	}
	q.pending = q.pending[:0]
}

func (q *queue) Release() error {
	if err := q.markReleased("queue"); err != nil {
		return err
	}
	q.releasePending()
	q.q.Release()
	return nil
}

type program struct {
	state
	ctx    *context
	shader *wgpu.ShaderModule
	iface  *shaderInterface
}

func (p *program) Kernel(name string) (_ compute.Kernel, err error) {
	if err := p.check("program"); err != nil {
		return nil, err
	}
	entry, ok := p.iface.entries[name]
	if !ok {
		return nil, errors.Wrapf(compute.ErrKernelNotFound, "webgpu: %q", name)
	}
	defer guard("create pipeline "+name, &err)
	pipeline := p.ctx.device.CreateComputePipelineSimple(nil, p.shader, name)
	if pipeline == nil {
		return nil, errors.Wrapf(compute.ErrKernelNotFound, "webgpu: pipeline for %q", name)
	}
	return &kernel{
		name:          name,
		pipeline:      pipeline,
		workGroupSize: entry.workGroupSize,
		localSize:     p.iface.localSize,
		args:          make([]boundArg, len(p.iface.sig)),
		sig:           p.iface.sig,
	}, nil
}

func (p *program) Release() error {
	if err := p.markReleased("program"); err != nil {
		return err
	}
	p.shader.Release()
	return nil
}

type boundArg struct {
	set   bool
	kind  compute.ArgKind
	mem   *mem
	value int32
}

type kernel struct {
	state
	name          string
	pipeline      *wgpu.ComputePipeline
	workGroupSize int
	localSize     int
	sig           []compute.ArgKind
	args          []boundArg
}

func (k *kernel) Name() string { return k.name }

func (k *kernel) slot(index int, kind compute.ArgKind) (*boundArg, error) {
	if err := k.check("kernel " + k.name); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(k.sig) {
		return nil, errors.Wrapf(compute.ErrArgIndex, "webgpu: kernel %s has %d arguments, got index %d", k.name, len(k.sig), index)
	}
	if k.sig[index] != kind {
		return nil, errors.Wrapf(compute.ErrArgKind, "webgpu: kernel %s argument %d is a %s, not a %s", k.name, index, k.sig[index], kind)
	}
	return &k.args[index], nil
}

func (k *kernel) SetArgMem(index int, m compute.Mem) error {
	a, err := k.slot(index, compute.ArgMem)
	if err != nil {
		return err
	}
	wm, ok := m.(*mem)
	if !ok {
		return errors.Wrapf(compute.ErrForeignHandle, "webgpu: %T", m)
	}
	if err := wm.check("buffer"); err != nil {
		return err
	}
	*a = boundArg{set: true, kind: compute.ArgMem, mem: wm}
	return nil
}

// SetArgLocal checks size against the workgroup array declared in the
// module; WGSL cannot resize it at launch.
func (k *kernel) SetArgLocal(index int, size int) error {
	a, err := k.slot(index, compute.ArgLocal)
	if err != nil {
		return err
	}
	if size <= 0 || size > k.localSize {
		return errors.Wrapf(compute.ErrInvalidBufferSize,
			"webgpu: kernel %s declares %d bytes of workgroup memory, argument asks for %d", k.name, k.localSize, size)
	}
	*a = boundArg{set: true, kind: compute.ArgLocal}
	return nil
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	a, err := k.slot(index, compute.ArgInt32)
	if err != nil {
		return err
	}
	*a = boundArg{set: true, kind: compute.ArgInt32, value: v}
	return nil
}

func (k *kernel) snapshot() ([]boundArg, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]boundArg, len(k.args))
	for i, a := range k.args {
		if !a.set {
			return nil, errors.Wrapf(compute.ErrArgUnset, "webgpu: kernel %s argument %d", k.name, i)
		}
		if a.mem != nil && a.mem.released() {
			return nil, errors.Wrapf(compute.ErrReleased, "webgpu: kernel %s argument %d", k.name, i)
		}
		out[i] = a
	}
	return out, nil
}

func (k *kernel) Release() error {
	if err := k.markReleased("kernel " + k.name); err != nil {
		return err
	}
	k.pipeline.Release()
	return nil
}

type mem struct {
	state
	buf   *wgpu.Buffer
	flags compute.MemFlags
	size  int
}

func (m *mem) Size() int              { return m.size }
func (m *mem) Flags() compute.MemFlags { return m.flags }

func (m *mem) released() bool { return m.check("buffer") != nil }

func (m *mem) Release() error {
	if err := m.markReleased("buffer"); err != nil {
		return err
	}
	m.buf.Release()
	return nil
}
