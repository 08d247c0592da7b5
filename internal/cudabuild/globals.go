package cudabuild

import (
	"runtime"
	"sync/atomic"

	"github.com/gookit/color"
)

// GLOBAL STATE
// 1 while the toolkit install is running, 0 otherwise.
var isCriticalAtomic atomic.Int32

var (
	Debug      bool
	ConfigFile = "/etc/cudabuild.conf"
	version    = "dev" // overridden at build time
	arch       = runtime.GOARCH
	buildDate  = "unknown" // overridden at build time
)

// Environment variables consumed by the build to find the toolkit.
const (
	envToolkitRootDir = "CUDA_TOOLKIT_ROOT_DIR"
	envCudaPath       = "CUDA_PATH"
	envCudaRoot       = "CUDA_ROOT"
)

// color helpers
var (
	colWarn    = color.Warn
	colError   = color.Error
	colSuccess = color.HEX("#1976D2")
	colArrow   = color.HEX("#FFEB3B")
	colNote    = color.Tag("notice")
)
