package reduce

import (
	"errors"
	"sync"

	"github.com/born-ml/gpureduce/internal/compute"
)

// faultDriver wraps a driver, records every handle release in order and
// injects failures at chosen points. Keys of fail are "new queue",
// "build", "release kernel", "release program", "release queue",
// "release context" and "release mem".
type faultDriver struct {
	compute.Driver

	mu       sync.Mutex
	released []string
	fail     map[string]bool
}

var errInjected = errors.New("injected failure")

func newFaultDriver(inner compute.Driver, fail ...string) *faultDriver {
	d := &faultDriver{Driver: inner, fail: make(map[string]bool)}
	for _, f := range fail {
		d.fail[f] = true
	}
	return d
}

func (d *faultDriver) failing(point string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fail[point]
}

// release records what, calls the wrapped release and then applies any
// injected failure. The wrapped handle is always released.
func (d *faultDriver) release(what string, inner func() error) error {
	d.mu.Lock()
	d.released = append(d.released, what)
	d.mu.Unlock()
	if err := inner(); err != nil {
		return err
	}
	if d.failing("release " + what) {
		return errInjected
	}
	return nil
}

func (d *faultDriver) releases() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.released...)
}

func (d *faultDriver) Platforms() ([]compute.Platform, error) {
	platforms, err := d.Driver.Platforms()
	if err != nil {
		return nil, err
	}
	for i, p := range platforms {
		platforms[i] = &faultPlatform{Platform: p, d: d}
	}
	return platforms, nil
}

type faultPlatform struct {
	compute.Platform
	d *faultDriver
}

func (p *faultPlatform) Devices(kind compute.DeviceType) ([]compute.Device, error) {
	devices, err := p.Platform.Devices(kind)
	if err != nil {
		return nil, err
	}
	for i, dev := range devices {
		devices[i] = &faultDevice{Device: dev, d: p.d}
	}
	return devices, nil
}

type faultDevice struct {
	compute.Device
	d *faultDriver
}

func (dev *faultDevice) NewContext() (compute.Context, error) {
	c, err := dev.Device.NewContext()
	if err != nil {
		return nil, err
	}
	return &faultContext{Context: c, d: dev.d}, nil
}

type faultContext struct {
	compute.Context
	d *faultDriver
}

func (c *faultContext) NewQueue() (compute.Queue, error) {
	if c.d.failing("new queue") {
		return nil, errInjected
	}
	q, err := c.Context.NewQueue()
	if err != nil {
		return nil, err
	}
	return &faultQueue{Queue: q, d: c.d}, nil
}

func (c *faultContext) BuildProgram(source string) (compute.Program, error) {
	if c.d.failing("build") {
		return nil, &compute.BuildError{Driver: "fault", Log: "injected build log", Err: errInjected}
	}
	p, err := c.Context.BuildProgram(source)
	if err != nil {
		return nil, err
	}
	return &faultProgram{Program: p, d: c.d}, nil
}

func (c *faultContext) NewBuffer(flags compute.MemFlags, size int, host []byte) (compute.Mem, error) {
	m, err := c.Context.NewBuffer(flags, size, host)
	if err != nil {
		return nil, err
	}
	return &faultMem{Mem: m, d: c.d}, nil
}

func (c *faultContext) Release() error { return c.d.release("context", c.Context.Release) }

type faultQueue struct {
	compute.Queue
	d *faultDriver
}

func (q *faultQueue) EnqueueNDRange(k compute.Kernel, global, local int) error {
	return q.Queue.EnqueueNDRange(k.(*faultKernel).Kernel, global, local)
}

func (q *faultQueue) EnqueueRead(m compute.Mem, dst []byte) error {
	return q.Queue.EnqueueRead(m.(*faultMem).Mem, dst)
}

func (q *faultQueue) Release() error { return q.d.release("queue", q.Queue.Release) }

type faultProgram struct {
	compute.Program
	d *faultDriver
}

func (p *faultProgram) Kernel(name string) (compute.Kernel, error) {
	k, err := p.Program.Kernel(name)
	if err != nil {
		return nil, err
	}
	return &faultKernel{Kernel: k, d: p.d}, nil
}

func (p *faultProgram) Release() error { return p.d.release("program", p.Program.Release) }

type faultKernel struct {
	compute.Kernel
	d *faultDriver
}

func (k *faultKernel) SetArgMem(index int, m compute.Mem) error {
	return k.Kernel.SetArgMem(index, m.(*faultMem).Mem)
}

func (k *faultKernel) Release() error { return k.d.release("kernel", k.Kernel.Release) }

type faultMem struct {
	compute.Mem
	d *faultDriver
}

func (m *faultMem) Release() error { return m.d.release("mem", m.Mem.Release) }
