package cudabuild

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeSystem is a PATH made only of scripts written by the test, plus a
// few coreutils the scripts need.
type fakeSystem struct {
	t     *testing.T
	Bin   string
	Calls string
}

func newFakeSystem(t *testing.T) *fakeSystem {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fakes need a POSIX shell")
	}
	root := t.TempDir()
	fs := &fakeSystem{
		t:     t,
		Bin:   filepath.Join(root, "bin"),
		Calls: filepath.Join(root, "calls"),
	}
	require.NoError(t, os.MkdirAll(fs.Bin, 0o755))

	for _, tool := range []string{"mkdir", "chmod", "cat"} {
		p, err := exec.LookPath(tool)
		require.NoError(t, err, "test needs %s", tool)
		require.NoError(t, os.Symlink(p, filepath.Join(fs.Bin, tool)))
	}
	t.Setenv("PATH", fs.Bin)
	return fs
}

// script installs an executable named name running body.
func (fs *fakeSystem) script(name, body string) string {
	fs.t.Helper()
	path := filepath.Join(fs.Bin, name)
	require.NoError(fs.t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// recorder returns a script line appending the invocation to the calls file.
func (fs *fakeSystem) recorder(name string) string {
	return `echo "` + name + ` $*" >> "` + fs.Calls + `"`
}

func (fs *fakeSystem) calls() []string {
	fs.t.Helper()
	data, err := os.ReadFile(fs.Calls)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(fs.t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

// compiler places a fake nvcc under <dir>/bin and puts that on PATH.
func (fs *fakeSystem) compiler(dir string) string {
	fs.t.Helper()
	bin := filepath.Join(dir, "bin")
	require.NoError(fs.t, os.MkdirAll(bin, 0o755))
	path := filepath.Join(bin, "nvcc")
	require.NoError(fs.t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
	fs.t.Setenv("PATH", os.Getenv("PATH")+string(os.PathListSeparator)+bin)
	return path
}

func testSettings(t *testing.T, values map[string]string) *Settings {
	t.Helper()
	cfg := &Config{Values: map[string]string{}}
	for k, v := range values {
		cfg.Values[k] = v
	}
	return initConfig(cfg)
}

func notRoot() int { return 1000 }
func root() int    { return 0 }
