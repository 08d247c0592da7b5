package cudabuild

import (
	"path/filepath"
	"sort"
	"strings"
)

// ToolkitEnv carries the toolkit root handed to the build.
type ToolkitEnv struct {
	Root string
}

// Vars returns the variables the build reads to find headers and
// libraries. All three always hold the same root.
func (t *ToolkitEnv) Vars() map[string]string {
	return map[string]string{
		envToolkitRootDir: t.Root,
		envCudaPath:       t.Root,
		envCudaRoot:       t.Root,
	}
}

// Environ overlays Vars onto base, replacing existing entries. A nil
// receiver returns base unchanged.
func (t *ToolkitEnv) Environ(base []string) []string {
	if t == nil {
		return base
	}
	vars := t.Vars()
	out := make([]string, 0, len(base)+len(vars))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := vars[key]; ok {
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+vars[k])
	}
	return out
}

// toolkitRoot strips the compiler's containing directory:
// /opt/cuda/bin/nvcc -> /opt/cuda.
func toolkitRoot(compilerPath string) string {
	root := filepath.Dir(filepath.Dir(compilerPath))
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// ExportToolkitEnv derives the toolkit environment from the compiler's
// location. It returns nil, false when the compiler is not on PATH.
func ExportToolkitEnv(lookup Locator, compiler string) (*ToolkitEnv, bool) {
	if lookup == nil {
		lookup = LocateCompiler
	}
	p, ok := lookup(compiler)
	if !ok {
		return nil, false
	}
	return &ToolkitEnv{Root: toolkitRoot(p)}, true
}
