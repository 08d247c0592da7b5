package cudabuild

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cudabuild.conf")
	require.NoError(t, os.WriteFile(path, []byte(`
# toolkit
CUDABUILD_PACKAGE="cuda-toolkit-12-4"
CUDABUILD_ELEVATOR = 'doas'
not a pair
CUDABUILD_COMPILER=nvcc
`), 0o644))
	t.Setenv("CUDABUILD_COMPILER", "clang")
	t.Setenv("R2_BUCKET_NAME", "artifacts")

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cuda-toolkit-12-4", cfg.Values["CUDABUILD_PACKAGE"])
	assert.Equal(t, "doas", cfg.Values["CUDABUILD_ELEVATOR"])
	assert.Equal(t, "clang", cfg.Values["CUDABUILD_COMPILER"], "environment wins over the file")
	assert.Equal(t, "artifacts", cfg.Values["R2_BUCKET_NAME"])
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.conf"))
	require.NoError(t, err)
	assert.NotNil(t, cfg.Values)
}

func TestInitConfigDefaults(t *testing.T) {
	s := testSettings(t, nil)
	assert.Equal(t, &Settings{
		Compiler:       "nvcc",
		PackageManager: "apt-get",
		Package:        "nvidia-cuda-toolkit",
		Elevator:       "sudo",
		BuildCommand:   []string{"cargo", "build", "--all-features", "--release"},
		OutputDir:      filepath.Join("target", "release"),
		LogDir:         filepath.Join(".cudabuild", "logs"),
		LogCompression: codecXZ,
		WantManifest:   true,
		UploadPrefix:   "cudabuild",
	}, s)
	assert.False(t, Debug)
}

func TestInitConfigOverrides(t *testing.T) {
	s := testSettings(t, map[string]string{
		"CUDABUILD_BUILD_CMD":    "cargo build --release --features cuda",
		"CUDABUILD_LOG_COMPRESS": "ZST",
		"CUDABUILD_MANIFEST":     "0",
		"R2_PREFIX":              "/ci/nightly/",
	})
	assert.Equal(t, []string{"cargo", "build", "--release", "--features", "cuda"}, s.BuildCommand)
	assert.Equal(t, codecZstd, s.LogCompression)
	assert.False(t, s.WantManifest)
	assert.Equal(t, "ci/nightly", s.UploadPrefix)
}

func TestInitConfigUnknownCompression(t *testing.T) {
	s := testSettings(t, map[string]string{"CUDABUILD_LOG_COMPRESS": "lz4"})
	assert.Equal(t, codecXZ, s.LogCompression)
}

func TestConfigPathHonoursRoot(t *testing.T) {
	t.Setenv("CUDABUILD_ROOT", "/srv/chroot")
	assert.Equal(t, "/srv/chroot/etc/cudabuild/cudabuild.conf", configPath())

	t.Setenv("CUDABUILD_ROOT", "")
	assert.Equal(t, ConfigFile, configPath())
}
