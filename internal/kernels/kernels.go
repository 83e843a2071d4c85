// Package kernels holds the default reduction kernel sources for each kernel
// dialect.
package kernels

import (
	"fmt"

	"github.com/born-ml/gpureduce/internal/compute"
)

// EntryPoint is the name of the reduction kernel in every default source.
const EntryPoint = "reduce"

// ReduceOpenCL is the per-work-group partial sum kernel in OpenCL C.
//
// Each work item accumulates two elements per grid step into its local slot,
// then the group folds the local array in halves. The local size must be a
// power of two. Group g writes its partial sum to output[g].
const ReduceOpenCL = `
__kernel void reduce(__global const float *input,
                     __local float *scratch,
                     const int n,
                     __global float *output)
{
    const int tid = get_local_id(0);
    const int local_size = get_local_size(0);
    const int grid_size = local_size * 2 * get_num_groups(0);

    int i = get_group_id(0) * (local_size * 2) + tid;
    float sum = 0.0f;
    while (i < n) {
        sum += input[i];
        if (i + local_size < n) {
            sum += input[i + local_size];
        }
        i += grid_size;
    }
    scratch[tid] = sum;
    barrier(CLK_LOCAL_MEM_FENCE);

    for (int s = local_size / 2; s > 0; s >>= 1) {
        if (tid < s) {
            scratch[tid] += scratch[tid + s];
        }
        barrier(CLK_LOCAL_MEM_FENCE);
    }

    if (tid == 0) {
        output[get_group_id(0)] = scratch[0];
    }
}
`

// reduceWGSL mirrors ReduceOpenCL. Bindings follow the positional kernel
// arguments: 0 input, 2 params (n), 3 output. Argument 1 is the workgroup
// array, which WGSL sizes statically.
const reduceWGSL = `
@group(0) @binding(0) var<storage, read> input: array<f32>;

struct Params {
    n: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@group(0) @binding(3) var<storage, read_write> output: array<f32>;

const LOCAL_SIZE: u32 = %[1]du;

var<workgroup> scratch: array<f32, %[1]d>;

@compute @workgroup_size(%[1]d)
fn reduce(
    @builtin(local_invocation_id) local_id: vec3<u32>,
    @builtin(workgroup_id) workgroup_id: vec3<u32>,
    @builtin(num_workgroups) num_workgroups: vec3<u32>
) {
    let tid = local_id.x;
    let grid_size = LOCAL_SIZE * 2u * num_workgroups.x;

    var i = workgroup_id.x * (LOCAL_SIZE * 2u) + tid;
    var sum: f32 = 0.0;
    while (i < params.n) {
        sum = sum + input[i];
        if (i + LOCAL_SIZE < params.n) {
            sum = sum + input[i + LOCAL_SIZE];
        }
        i = i + grid_size;
    }
    scratch[tid] = sum;
    workgroupBarrier();

    for (var s: u32 = LOCAL_SIZE / 2u; s > 0u; s = s >> 1u) {
        if (tid < s) {
            scratch[tid] = scratch[tid] + scratch[tid + s];
        }
        workgroupBarrier();
    }

    if (tid == 0u) {
        output[workgroup_id.x] = scratch[0];
    }
}
`

// ReduceWGSL renders the WGSL reduction kernel for a work-group size. WGSL
// fixes the work-group size at compile time, so the source must be rendered
// with the size later used for dispatch.
func ReduceWGSL(workGroupSize int) string {
	return fmt.Sprintf(reduceWGSL, workGroupSize)
}

// Source returns the default reduction kernel for dialect.
func Source(dialect compute.Dialect, workGroupSize int) (string, error) {
	switch dialect {
	case compute.DialectOpenCL:
		return ReduceOpenCL, nil
	case compute.DialectWGSL:
		return ReduceWGSL(workGroupSize), nil
	default:
		return "", fmt.Errorf("kernels: no default source for dialect %q", dialect)
	}
}
