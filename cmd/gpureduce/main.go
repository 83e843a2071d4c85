// Package main provides the gpureduce command: it sums [0, n) on a compute
// device and on the host, and reports both results with their timings.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"

	_ "github.com/born-ml/gpureduce/backend/opencl"
	_ "github.com/born-ml/gpureduce/backend/webgpu"
	"github.com/born-ml/gpureduce/reduce"
)

var (
	flagN        = flag.Int("n", 1<<20, "Number of elements; the input is 0, 1, ..., n-1.")
	flagGroups   = flag.Int("groups", reduce.DefaultWorkGroupCount, "Number of work groups (partial sums).")
	flagSize     = flag.Int("size", 0, "Work-group size, a power of two; 0 picks one from the device limits.")
	flagBackend  = flag.String("backend", "", "Compute driver (host, opencl, webgpu); empty uses $GPUREDUCE_BACKEND or the best available.")
	flagPlatform = flag.Int("platform", 0, "Platform index.")
	flagDevice   = flag.Int("device", 0, "Device index on the platform.")
	flagKernel   = flag.String("kernel", "", "File with the kernel source; empty uses the built-in kernel for the driver.")
	flagEntry    = flag.String("entry", reduce.DefaultEntryPoint, "Kernel entry point.")
	flagReps     = flag.Int("reps", 1, "Number of timed repetitions of each reduction.")
	flagList     = flag.Bool("list", false, "List drivers, platforms and devices, then exit.")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	if *flagList {
		must.M(listDevices(os.Stdout))
		return
	}

	cfg := reduce.Config{
		Backend:        *flagBackend,
		PlatformIndex:  *flagPlatform,
		DeviceIndex:    *flagDevice,
		WorkGroupCount: *flagGroups,
		WorkGroupSize:  *flagSize,
	}
	var source string
	if *flagKernel != "" {
		source = string(must.M1(os.ReadFile(*flagKernel)))
	}

	r, err := run(cfg, source, *flagEntry, *flagN, *flagReps)
	if err != nil {
		klog.Exitf("gpureduce: %+v", err)
	}
	fmt.Println(r.Render())
}

// run builds the input, reduces it reps times on the device and on the host
// and returns the measurements.
func run(cfg reduce.Config, source, entry string, n, reps int) (*report, error) {
	if n < 1 {
		return nil, errors.Errorf("-n must be positive, got %d", n)
	}
	if reps < 1 {
		return nil, errors.Errorf("-reps must be positive, got %d", reps)
	}
	input := make([]float32, n)
	for i := range input {
		input[i] = float32(i)
	}

	ctx, err := reduce.Open(source, entry, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ctx.Close(); err != nil {
			klog.Warningf("closing compute context: %v", err)
		}
	}()
	engine, err := reduce.NewEngine(ctx, cfg)
	if err != nil {
		return nil, err
	}

	r := &report{
		driver:   ctx.Driver(),
		platform: ctx.Platform(),
		device:   ctx.Device(),
		config:   engine.Config(),
		n:        n,
		reps:     reps,
		expected: float64(n) * float64(n-1) / 2,
	}

	bar := progressbar.NewOptions(2*reps,
		progressbar.OptionSetDescription("reducing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("reductions"),
		progressbar.OptionClearOnFinish(),
	)
	for range reps {
		start := time.Now()
		if r.deviceSum, err = engine.Reduce(input); err != nil {
			return nil, err
		}
		r.deviceTimes = append(r.deviceTimes, time.Since(start))
		_ = bar.Add(1)

		start = time.Now()
		if r.hostSum, err = engine.ReduceHost(input); err != nil {
			return nil, err
		}
		r.hostTimes = append(r.hostTimes, time.Since(start))
		_ = bar.Add(1)
	}
	_ = bar.Finish()
	return r, nil
}
