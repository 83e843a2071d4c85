package host

import (
	"fmt"

	"github.com/born-ml/gpureduce/internal/compute"
)

// ReduceSignature is the parameter list of the reduction kernel: input
// buffer, local scratch, element count, output buffer.
var ReduceSignature = []compute.ArgKind{compute.ArgMem, compute.ArgLocal, compute.ArgInt32, compute.ArgMem}

func init() {
	RegisterKernel("reduce", ReduceSignature, reduceFloat32)
}

// reduceFloat32 is the host form of kernels.ReduceOpenCL. Each work item
// accumulates two elements per grid step into its scratch slot, then the
// group folds the scratch in halves and item 0 writes output[group].
func reduceFloat32(g *Group) error {
	input := g.Float32s(0)
	scratch := g.LocalFloat32s(1)
	n := int(g.Int32(2))
	output := g.Float32s(3)

	local := g.LocalSize
	if len(scratch) < local {
		return fmt.Errorf("reduce: local scratch holds %d floats, work group has %d items", len(scratch), local)
	}
	if n > len(input) {
		return fmt.Errorf("reduce: n=%d exceeds input of %d floats", n, len(input))
	}
	if g.ID >= len(output) {
		return fmt.Errorf("reduce: group %d writes past output of %d floats", g.ID, len(output))
	}

	gridSize := local * 2 * g.NumGroups
	for tid := 0; tid < local; tid++ {
		var sum float32
		for i := g.ID*local*2 + tid; i < n; i += gridSize {
			sum += input[i]
			if i+local < n {
				sum += input[i+local]
			}
		}
		scratch[tid] = sum
	}

	for s := local / 2; s > 0; s >>= 1 {
		for tid := 0; tid < s; tid++ {
			scratch[tid] += scratch[tid+s]
		}
	}

	output[g.ID] = scratch[0]
	return nil
}
