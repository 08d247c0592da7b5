package cudabuild

import (
	"os/exec"
	"path/filepath"
)

// Locator reports whether an executable is on the search path and, if
// so, its absolute location.
type Locator func(name string) (string, bool)

// LocateCompiler searches PATH for name. Absence is not an error.
func LocateCompiler(name string) (string, bool) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", false
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p, true
	}
	return abs, true
}
