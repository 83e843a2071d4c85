package host

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/born-ml/gpureduce/internal/compute"
)

// decl is a __kernel declaration bound to its Go implementation.
type decl struct {
	name string
	sig  []compute.ArgKind
	fn   KernelFunc
}

var (
	kernelDeclRE = regexp.MustCompile(`\b(?:__kernel|kernel)\s+void\s+([A-Za-z_]\w*)\s*\(([^)]*)\)`)
	localRE      = regexp.MustCompile(`\b(?:__local|local)\b`)
	globalRE     = regexp.MustCompile(`\b(?:__global|global|__constant|constant)\b`)
	intRE        = regexp.MustCompile(`^(?:const\s+)?(?:unsigned\s+int|uint|int)\s+[A-Za-z_]\w*$`)
)

// compile checks the structure of an OpenCL C source and resolves its
// kernels. All diagnostics are collected into the build log.
func compile(source string) (map[string]decl, error) {
	var diags []string
	fail := func(format string, args ...any) {
		diags = append(diags, fmt.Sprintf(format, args...))
	}

	code, err := stripComments(source)
	if err != nil {
		fail("%v", err)
	} else {
		diags = append(diags, checkBalance(code)...)
	}

	decls := make(map[string]decl)
	if len(diags) == 0 {
		matches := kernelDeclRE.FindAllStringSubmatchIndex(code, -1)
		if len(matches) == 0 {
			fail("error: no __kernel functions found in program source")
		}
		for _, m := range matches {
			name := code[m[2]:m[3]]
			line := lineOf(code, m[0])
			sig, perr := parseParams(code[m[4]:m[5]])
			if perr != nil {
				fail("<source>:%d: error: kernel '%s': %v", line, name, perr)
				continue
			}
			if _, dup := decls[name]; dup {
				fail("<source>:%d: error: redefinition of kernel '%s'", line, name)
				continue
			}
			impl, ok := lookupKernel(name)
			if !ok {
				fail("<source>:%d: error: kernel '%s' has no host implementation", line, name)
				continue
			}
			if !slices.Equal(sig, impl.sig) {
				fail("<source>:%d: error: kernel '%s' declared as (%s), host implementation takes (%s)",
					line, name, formatSignature(sig), formatSignature(impl.sig))
				continue
			}
			decls[name] = decl{name: name, sig: sig, fn: impl.fn}
		}
	}

	if len(diags) > 0 {
		return nil, &compute.BuildError{
			Driver: Name,
			Log:    strings.Join(diags, "\n"),
			Err:    compute.ErrBuildFailed,
		}
	}
	return decls, nil
}

// stripComments blanks out comments, keeping newlines so line numbers hold.
func stripComments(src string) (string, error) {
	var b strings.Builder
	b.Grow(len(src))
	for i := 0; i < len(src); i++ {
		switch {
		case strings.HasPrefix(src[i:], "//"):
			for i < len(src) && src[i] != '\n' {
				i++
			}
			if i < len(src) {
				b.WriteByte('\n')
			}
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return "", fmt.Errorf("<source>:%d: error: unterminated comment", lineOf(src, i))
			}
			body := src[i : i+2+end+2]
			b.WriteString(strings.Repeat("\n", strings.Count(body, "\n")))
			b.WriteByte(' ')
			i += len(body) - 1
		default:
			b.WriteByte(src[i])
		}
	}
	return b.String(), nil
}

func checkBalance(code string) []string {
	type open struct {
		ch   byte
		line int
	}
	pairs := map[byte]byte{')': '(', '}': '{', ']': '['}
	var stack []open
	var diags []string
	line := 1
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch c {
		case '\n':
			line++
		case '(', '{', '[':
			stack = append(stack, open{ch: c, line: line})
		case ')', '}', ']':
			if len(stack) == 0 || stack[len(stack)-1].ch != pairs[c] {
				diags = append(diags, fmt.Sprintf("<source>:%d: error: unexpected '%c'", line, c))
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	for _, o := range stack {
		diags = append(diags, fmt.Sprintf("<source>:%d: error: unmatched '%c'", o.line, o.ch))
	}
	return diags
}

func parseParams(list string) ([]compute.ArgKind, error) {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil, nil
	}
	var sig []compute.ArgKind
	for i, p := range strings.Split(list, ",") {
		p = strings.Join(strings.Fields(p), " ")
		switch {
		case strings.Contains(p, "*") && localRE.MatchString(p):
			sig = append(sig, compute.ArgLocal)
		case strings.Contains(p, "*") && globalRE.MatchString(p):
			sig = append(sig, compute.ArgMem)
		case intRE.MatchString(p):
			sig = append(sig, compute.ArgInt32)
		default:
			return nil, fmt.Errorf("parameter %d %q has an unsupported type", i, p)
		}
	}
	return sig, nil
}

func formatSignature(sig []compute.ArgKind) string {
	parts := make([]string, len(sig))
	for i, k := range sig {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

func lineOf(s string, offset int) int {
	return strings.Count(s[:offset], "\n") + 1
}
