package cudabuild

import (
	"context"
	"fmt"
	"os/exec"
)

// Installer makes sure the toolkit compiler is available, installing the
// toolkit package through the system package manager when it is not.
type Installer struct {
	Compiler       string
	PackageManager string
	Package        string
	Elevator       string
	Interactive    bool // lets the elevator prompt for a password

	Lookup  Locator
	Geteuid func() int
}

func (in *Installer) lookup() Locator {
	if in.Lookup == nil {
		return LocateCompiler
	}
	return in.Lookup
}

// Ensure returns true when the compiler is available afterwards.
// Recoverable conditions (no package manager, no privilege) yield
// false with a nil error. A failing refresh or install command is
// returned as a *CommandError and must end the run.
func (in *Installer) Ensure(ctx context.Context) (bool, error) {
	lookup := in.lookup()
	if _, ok := lookup(in.Compiler); ok {
		debugf("=> %s already on PATH\n", in.Compiler)
		return true, nil
	}

	warnf("CUDA toolkit not found. Attempting to install...")
	if _, ok := lookup(in.PackageManager); !ok {
		warnf("CUDA toolkit missing and no supported package manager detected.")
		return false, nil
	}

	priv := DetectPrivilege(lookup, in.Elevator, in.Geteuid)
	debugf("=> privilege path: %s\n", priv)

	exe := &Executor{Context: ctx, Interactive: in.Interactive}
	switch priv {
	case HasElevationTool:
		exe.ShouldRunAsRoot = true
		exe.Elevator = in.Elevator
	case AlreadyElevated:
	case NoElevation:
		warnf("CUDA toolkit missing and no %s privileges to install it.", in.Elevator)
		return false, nil
	}

	isCriticalAtomic.Store(1)
	defer isCriticalAtomic.Store(0)

	step("Refreshing package index with %s", in.PackageManager)
	if err := exe.Run(exec.Command(in.PackageManager, "update")); err != nil {
		return false, fmt.Errorf("package index refresh: %w", err)
	}
	step("Installing %s", in.Package)
	if err := exe.Run(exec.Command(in.PackageManager, "install", "-y", in.Package)); err != nil {
		return false, fmt.Errorf("install %s: %w", in.Package, err)
	}

	_, ok := lookup(in.Compiler)
	return ok, nil
}
