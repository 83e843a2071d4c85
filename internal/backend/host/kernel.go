package host

import (
	"fmt"
	"sort"
	"sync"

	"github.com/born-ml/gpureduce/internal/compute"
)

// KernelFunc executes one work group. Work items of the group are simulated
// by the function itself, so a barrier is simply the end of a loop over the
// local range.
type KernelFunc func(g *Group) error

type kernelImpl struct {
	sig []compute.ArgKind
	fn  KernelFunc
}

var (
	kernelsMu   sync.RWMutex
	kernelImpls = make(map[string]kernelImpl)
)

// RegisterKernel provides the host implementation of the OpenCL kernel name.
// A program declaring name compiles only if its parameter kinds equal sig.
func RegisterKernel(name string, sig []compute.ArgKind, fn KernelFunc) {
	if fn == nil {
		panic("host: RegisterKernel " + name + ": nil function")
	}
	kernelsMu.Lock()
	kernelImpls[name] = kernelImpl{sig: append([]compute.ArgKind(nil), sig...), fn: fn}
	kernelsMu.Unlock()
}

func lookupKernel(name string) (kernelImpl, bool) {
	kernelsMu.RLock()
	defer kernelsMu.RUnlock()
	impl, ok := kernelImpls[name]
	return impl, ok
}

// Group is the view of an NDRange that one work group sees.
type Group struct {
	ID        int // get_group_id(0)
	LocalSize int // get_local_size(0)
	NumGroups int // get_num_groups(0)

	args []groupArg
}

type groupArg struct {
	kind  compute.ArgKind
	words []uint32
	value int32
}

// Float32s returns the global buffer bound at index as float32 values.
func (g *Group) Float32s(index int) []float32 {
	return wordFloat32s(g.args[index].words)
}

// Int32s returns the global buffer bound at index as int32 values.
func (g *Group) Int32s(index int) []int32 {
	return wordInt32s(g.args[index].words)
}

// LocalFloat32s returns the group's private local memory bound at index.
func (g *Group) LocalFloat32s(index int) []float32 {
	return wordFloat32s(g.args[index].words)
}

// Int32 returns the scalar bound at index.
func (g *Group) Int32(index int) int32 {
	return g.args[index].value
}

type program struct {
	ctx   *context
	decls map[string]decl

	mu       sync.Mutex
	released bool
}

func (p *program) Kernel(name string) (compute.Kernel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, fmt.Errorf("host: program: %w", compute.ErrReleased)
	}
	d, ok := p.decls[name]
	if !ok {
		names := make([]string, 0, len(p.decls))
		for n := range p.decls {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("host: %w: %q (program defines %v)", compute.ErrKernelNotFound, name, names)
	}
	p.ctx.driver.stats.kernels.Add(1)
	return &kernel{ctx: p.ctx, decl: d, args: make([]boundArg, len(d.sig))}, nil
}

func (p *program) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return fmt.Errorf("host: program: %w", compute.ErrReleased)
	}
	p.released = true
	p.ctx.driver.stats.programs.Add(-1)
	return nil
}

type boundArg struct {
	set   bool
	mem   *mem
	local int
	value int32
}

type kernel struct {
	ctx  *context
	decl decl

	mu       sync.Mutex
	args     []boundArg
	released bool
}

func (k *kernel) Name() string { return k.decl.name }

// slot validates index and kind; k.mu must be held.
func (k *kernel) slot(index int, kind compute.ArgKind) (*boundArg, error) {
	if k.released {
		return nil, fmt.Errorf("host: kernel %s: %w", k.decl.name, compute.ErrReleased)
	}
	if index < 0 || index >= len(k.args) {
		return nil, fmt.Errorf("host: kernel %s: argument %d of %d: %w",
			k.decl.name, index, len(k.args), compute.ErrArgIndex)
	}
	if want := k.decl.sig[index]; want != kind {
		return nil, fmt.Errorf("host: kernel %s: argument %d is %s, got %s: %w",
			k.decl.name, index, want, kind, compute.ErrArgKind)
	}
	return &k.args[index], nil
}

func (k *kernel) SetArgMem(index int, m compute.Mem) error {
	hm, err := asMem(m)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	a, err := k.slot(index, compute.ArgMem)
	if err != nil {
		return err
	}
	*a = boundArg{set: true, mem: hm}
	return nil
}

func (k *kernel) SetArgLocal(index int, size int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	a, err := k.slot(index, compute.ArgLocal)
	if err != nil {
		return err
	}
	if size <= 0 {
		return fmt.Errorf("host: kernel %s: local argument %d of %d bytes: %w",
			k.decl.name, index, size, compute.ErrInvalidBufferSize)
	}
	*a = boundArg{set: true, local: size}
	return nil
}

func (k *kernel) SetArgInt32(index int, v int32) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	a, err := k.slot(index, compute.ArgInt32)
	if err != nil {
		return err
	}
	*a = boundArg{set: true, value: v}
	return nil
}

// snapshot copies the current argument bindings for a launch.
func (k *kernel) snapshot() ([]boundArg, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return nil, fmt.Errorf("host: kernel %s: %w", k.decl.name, compute.ErrReleased)
	}
	for i, a := range k.args {
		if !a.set {
			return nil, fmt.Errorf("host: kernel %s: argument %d: %w", k.decl.name, i, compute.ErrArgUnset)
		}
	}
	return append([]boundArg(nil), k.args...), nil
}

func (k *kernel) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.released {
		return fmt.Errorf("host: kernel %s: %w", k.decl.name, compute.ErrReleased)
	}
	k.released = true
	k.args = nil
	k.ctx.driver.stats.kernels.Add(-1)
	return nil
}
