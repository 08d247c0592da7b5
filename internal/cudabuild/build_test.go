package cudabuild

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearToolkitEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{envToolkitRootDir, envCudaPath, envCudaRoot} {
		t.Setenv(k, "")
	}
}

// fakeCargo records the toolkit variables it saw into envFile.
func (fs *fakeSystem) fakeCargo(envFile string, exit int) {
	fs.script("cargo", fs.recorder("cargo")+`
echo "root=$CUDA_TOOLKIT_ROOT_DIR path=$CUDA_PATH alias=$CUDA_ROOT" > "`+envFile+`"
echo "   Compiling pkcs12cracker v0.1.0"
echo "warning: unused import" >&2
mkdir -p target/release
echo binary > target/release/pkcs12cracker
exit `+strconv.Itoa(exit))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestBuilderPassesToolkitEnv(t *testing.T) {
	clearToolkitEnv(t)
	fs := newFakeSystem(t)
	envFile := filepath.Join(t.TempDir(), "env")
	fs.fakeCargo(envFile, 0)

	var out, logBuf bytes.Buffer
	b := &Builder{
		Command: []string{"cargo", "build", "--all-features", "--release"},
		Dir:     t.TempDir(),
		Stdout:  &out,
		Stderr:  &out,
		LogFile: &logBuf,
	}
	require.NoError(t, b.Run(context.Background(), &ToolkitEnv{Root: "/opt/cuda"}))

	assert.Equal(t, "root=/opt/cuda path=/opt/cuda alias=/opt/cuda\n", readFile(t, envFile))
	assert.Equal(t, []string{"cargo build --all-features --release"}, fs.calls())
	assert.Contains(t, out.String(), "Compiling pkcs12cracker")
	assert.Contains(t, logBuf.String(), "Compiling pkcs12cracker")
	assert.Contains(t, logBuf.String(), "warning: unused import")
}

func TestBuilderWithoutToolkit(t *testing.T) {
	clearToolkitEnv(t)
	fs := newFakeSystem(t)
	envFile := filepath.Join(t.TempDir(), "env")
	fs.fakeCargo(envFile, 0)

	var out bytes.Buffer
	b := &Builder{Command: []string{"cargo", "build"}, Dir: t.TempDir(), Stdout: &out, Stderr: &out}
	require.NoError(t, b.Run(context.Background(), nil))
	assert.Equal(t, "root= path= alias=\n", readFile(t, envFile))
}

func TestBuilderPropagatesExitStatus(t *testing.T) {
	fs := newFakeSystem(t)
	fs.fakeCargo(filepath.Join(t.TempDir(), "env"), 101)

	var out bytes.Buffer
	b := &Builder{Command: []string{"cargo", "build"}, Dir: t.TempDir(), Stdout: &out, Stderr: &out}
	err := b.Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 101, ExitCode(err))
}

func TestBuilderRequiresCommand(t *testing.T) {
	err := (&Builder{}).Run(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
}

type failingLog struct{ writes int }

func (f *failingLog) Write(p []byte) (int, error) {
	f.writes++
	return 0, errors.New("no space left on device")
}

func TestBuilderSurvivesLogWriteFailure(t *testing.T) {
	clearToolkitEnv(t)
	fs := newFakeSystem(t)
	fs.fakeCargo(filepath.Join(t.TempDir(), "env"), 0)

	var stdout, stderr bytes.Buffer
	logFile := &failingLog{}
	b := &Builder{
		Command: []string{"cargo", "build"},
		Dir:     t.TempDir(),
		Stdout:  &stdout,
		Stderr:  &stderr,
		LogFile: logFile,
	}
	require.NoError(t, b.Run(context.Background(), nil))

	assert.Contains(t, stdout.String(), "Compiling pkcs12cracker")
	assert.Contains(t, stderr.String(), "warning: unused import")
	assert.Equal(t, 1, logFile.writes, "log is abandoned after the first failure")
	assert.ErrorContains(t, b.LogError(), "no space left on device")

	b.LogFile = nil
	require.NoError(t, b.Run(context.Background(), nil))
	assert.NoError(t, b.LogError())
}

func TestBuilderForceColor(t *testing.T) {
	t.Setenv("CARGO_TERM_COLOR", "")
	fs := newFakeSystem(t)
	colorFile := filepath.Join(t.TempDir(), "color")
	fs.script("cargo", `echo "$CARGO_TERM_COLOR" > "`+colorFile+`"`)

	var out bytes.Buffer
	b := &Builder{Command: []string{"cargo", "build"}, Dir: t.TempDir(), Stdout: &out, Stderr: &out}
	require.NoError(t, b.Run(context.Background(), nil))
	assert.Equal(t, "\n", readFile(t, colorFile))

	b.ForceColor = true
	require.NoError(t, b.Run(context.Background(), nil))
	assert.Equal(t, "always\n", readFile(t, colorFile))

	t.Setenv("CARGO_TERM_COLOR", "never")
	require.NoError(t, b.Run(context.Background(), nil))
	assert.Equal(t, "never\n", readFile(t, colorFile))
}
