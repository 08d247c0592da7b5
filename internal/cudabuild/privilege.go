package cudabuild

import "golang.org/x/sys/unix"

// Privilege is how a root-only command can be run from this process.
type Privilege int

const (
	// NoElevation means neither an elevation tool nor root is available.
	NoElevation Privilege = iota
	// HasElevationTool means commands are prefixed with the elevator.
	HasElevationTool
	// AlreadyElevated means the process runs as root.
	AlreadyElevated
)

func (p Privilege) String() string {
	switch p {
	case HasElevationTool:
		return "elevation-tool"
	case AlreadyElevated:
		return "already-elevated"
	default:
		return "none"
	}
}

// DetectPrivilege picks the privilege path. An available elevation tool
// wins over an effective uid of 0.
func DetectPrivilege(lookup Locator, elevator string, geteuid func() int) Privilege {
	if geteuid == nil {
		geteuid = unix.Geteuid
	}
	if elevator != "" {
		if _, ok := lookup(elevator); ok {
			return HasElevationTool
		}
	}
	if geteuid() == 0 {
		return AlreadyElevated
	}
	return NoElevation
}
