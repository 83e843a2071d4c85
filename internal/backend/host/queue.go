package host

import (
	"fmt"
	"sync"

	"github.com/born-ml/gpureduce/internal/compute"
	"github.com/born-ml/gpureduce/internal/parallel"
)

// queueDepth bounds the number of commands accepted ahead of execution.
const queueDepth = 64

type command struct {
	name string
	run  func() error
	done chan error // nil for asynchronous commands
}

// queue executes commands strictly in submission order on one goroutine.
type queue struct {
	ctx  *context
	cmds chan command
	exit chan struct{}

	mu       sync.Mutex
	released bool

	// failed latches the first asynchronous failure until the next blocking
	// command reports it.
	failed error
}

func newQueue(c *context) *queue {
	q := &queue{
		ctx:  c,
		cmds: make(chan command, queueDepth),
		exit: make(chan struct{}),
	}
	c.driver.stats.queues.Add(1)
	go q.loop()
	return q
}

func (q *queue) loop() {
	defer close(q.exit)
	for cmd := range q.cmds {
		if cmd.done != nil {
			if q.failed != nil {
				cmd.done <- q.failed
				q.failed = nil
				continue
			}
			cmd.done <- cmd.run()
			continue
		}
		if err := cmd.run(); err != nil && q.failed == nil {
			q.failed = fmt.Errorf("host: %s: %w", cmd.name, err)
		}
	}
}

func (q *queue) submit(cmd command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.released {
		return fmt.Errorf("host: queue: %w", compute.ErrReleased)
	}
	q.cmds <- cmd
	return nil
}

func (q *queue) wait(cmd command) error {
	cmd.done = make(chan error, 1)
	if err := q.submit(cmd); err != nil {
		return err
	}
	return <-cmd.done
}

func (q *queue) EnqueueNDRange(k compute.Kernel, global, local int) error {
	hk, ok := k.(*kernel)
	if !ok || hk == nil {
		return fmt.Errorf("host: %T: %w", k, compute.ErrForeignHandle)
	}
	opts := q.ctx.driver.opts
	if local <= 0 || local > opts.MaxWorkGroupSize {
		return fmt.Errorf("host: local size %d outside [1, %d]: %w",
			local, opts.MaxWorkGroupSize, compute.ErrInvalidWorkGroupSize)
	}
	if global <= 0 || global%local != 0 {
		return fmt.Errorf("host: global size %d is not a positive multiple of local size %d: %w",
			global, local, compute.ErrInvalidWorkGroupSize)
	}
	args, err := hk.snapshot()
	if err != nil {
		return err
	}
	localBytes := 0
	for _, a := range args {
		localBytes += a.local
	}
	if localBytes > opts.LocalMemSize {
		return fmt.Errorf("host: kernel %s needs %d bytes of local memory, device has %d: %w",
			hk.decl.name, localBytes, opts.LocalMemSize, compute.ErrOutOfResources)
	}

	launch := ndRange{
		fn:        hk.decl.fn,
		sig:       hk.decl.sig,
		args:      args,
		numGroups: global / local,
		localSize: local,
		parallel:  opts.Parallel,
	}
	return q.submit(command{name: "kernel " + hk.decl.name, run: launch.run})
}

func (q *queue) EnqueueRead(m compute.Mem, dst []byte) error {
	hm, err := asMem(m)
	if err != nil {
		return err
	}
	if len(dst) > hm.size {
		return fmt.Errorf("host: read of %d bytes from a %d byte buffer: %w",
			len(dst), hm.size, compute.ErrInvalidBufferSize)
	}
	return q.wait(command{name: "read", run: func() error {
		words, err := hm.snapshot()
		if err != nil {
			return err
		}
		copy(dst, wordBytes(words, hm.size))
		return nil
	}})
}

func (q *queue) Finish() error {
	return q.wait(command{name: "finish", run: func() error { return nil }})
}

// Release drains the commands already queued and stops the queue.
func (q *queue) Release() error {
	q.mu.Lock()
	if q.released {
		q.mu.Unlock()
		return fmt.Errorf("host: queue: %w", compute.ErrReleased)
	}
	q.released = true
	close(q.cmds)
	q.mu.Unlock()

	<-q.exit
	q.ctx.driver.stats.queues.Add(-1)
	return nil
}

// ndRange is a kernel launch with its arguments captured at enqueue time.
type ndRange struct {
	fn        KernelFunc
	sig       []compute.ArgKind
	args      []boundArg
	numGroups int
	localSize int
	parallel  parallel.Config
}

func (r ndRange) run() error {
	global := make([]groupArg, len(r.args))
	for i, a := range r.args {
		global[i] = groupArg{kind: r.sig[i], value: a.value}
		if a.mem != nil {
			words, err := a.mem.snapshot()
			if err != nil {
				return fmt.Errorf("argument %d: %w", i, err)
			}
			global[i].words = words
		}
	}

	return parallel.For(r.numGroups, func(id int) error {
		g := &Group{
			ID:        id,
			LocalSize: r.localSize,
			NumGroups: r.numGroups,
			args:      make([]groupArg, len(global)),
		}
		copy(g.args, global)
		for i, a := range r.args {
			if a.local > 0 {
				g.args[i].words = make([]uint32, (a.local+3)/4)
			}
		}
		return r.fn(g)
	}, r.parallel)
}
