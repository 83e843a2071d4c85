package webgpu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/born-ml/gpureduce/internal/compute"
)

var (
	entryRE     = regexp.MustCompile(`@compute\s+@workgroup_size\(\s*(\d+)\s*(?:,[^)]*)?\)\s*fn\s+([A-Za-z_]\w*)\s*\(`)
	bindingRE   = regexp.MustCompile(`@group\(\s*0\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var<\s*(storage|uniform)[^>]*>`)
	workgroupRE = regexp.MustCompile(`var<\s*workgroup\s*>\s*[A-Za-z_]\w*\s*:\s*array<\s*\w+\s*,\s*(\d+)\s*>`)
	lineComment = regexp.MustCompile(`//[^\n]*`)
)

// entryPoint is a compute entry point declared in a WGSL module.
type entryPoint struct {
	name          string
	workGroupSize int
}

// shaderInterface maps positional kernel arguments onto a WGSL module.
// A storage binding at index i takes a buffer argument, a uniform binding
// takes an int (the first u32 of the uniform). An index without a binding
// is the workgroup array, sized statically in the source.
type shaderInterface struct {
	entries   map[string]entryPoint
	sig       []compute.ArgKind
	localSize int // bytes of var<workgroup> arrays, 4-byte elements
}

func parseShader(source string) (*shaderInterface, error) {
	src := lineComment.ReplaceAllString(source, "")

	si := &shaderInterface{entries: make(map[string]entryPoint)}
	for _, m := range entryRE.FindAllStringSubmatch(src, -1) {
		size, err := strconv.Atoi(m[1])
		if err != nil || size < 1 {
			return nil, fmt.Errorf("invalid @workgroup_size(%s) on %s", m[1], m[2])
		}
		if _, dup := si.entries[m[2]]; dup {
			return nil, fmt.Errorf("entry point %s declared twice", m[2])
		}
		si.entries[m[2]] = entryPoint{name: m[2], workGroupSize: size}
	}
	if len(si.entries) == 0 {
		return nil, fmt.Errorf("no @compute entry point found")
	}

	kinds := make(map[int]compute.ArgKind)
	highest := -1
	for _, m := range bindingRE.FindAllStringSubmatch(src, -1) {
		idx, _ := strconv.Atoi(m[1])
		if _, dup := kinds[idx]; dup {
			return nil, fmt.Errorf("binding %d declared twice", idx)
		}
		kind := compute.ArgMem
		if strings.HasPrefix(m[2], "uniform") {
			kind = compute.ArgInt32
		}
		kinds[idx] = kind
		highest = max(highest, idx)
	}
	for _, m := range workgroupRE.FindAllStringSubmatch(src, -1) {
		n, _ := strconv.Atoi(m[1])
		si.localSize += 4 * n
	}

	si.sig = make([]compute.ArgKind, highest+1)
	for i := range si.sig {
		kind, ok := kinds[i]
		if !ok {
			if si.localSize == 0 {
				return nil, fmt.Errorf("binding %d missing and no workgroup array declared", i)
			}
			kind = compute.ArgLocal
		}
		si.sig[i] = kind
	}
	return si, nil
}
