package cudabuild

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Config struct
type Config struct {
	Values map[string]string
}

// Settings is the resolved view of a Config used by the pipeline.
type Settings struct {
	Compiler       string
	PackageManager string
	Package        string
	Elevator       string
	BuildCommand   []string
	OutputDir      string
	LogDir         string
	LogCompression string
	WantManifest   bool
	UploadPrefix   string
}

// Load the config file and apply defaults. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	cfg := &Config{Values: make(map[string]string)}

	file, err := os.Open(path)
	if err == nil {
		defer file.Close()
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			parts := strings.SplitN(line, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			val := strings.TrimSpace(parts[1])
			val = strings.Trim(val, `"'`)
			cfg.Values[key] = val
		}
		if err := scanner.Err(); err != nil {
			return cfg, err
		}
	}

	mergeEnvOverrides(cfg)
	return cfg, nil
}

// Merge CUDABUILD_* and R2_* env overrides
func mergeEnvOverrides(cfg *Config) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, "CUDABUILD_") || strings.HasPrefix(env, "R2_") {
			parts := strings.SplitN(env, "=", 2)
			if len(parts) == 2 {
				cfg.Values[parts[0]] = parts[1]
			}
		}
	}
}

// configPath honours CUDABUILD_ROOT the same way the rest of the
// filesystem layout does.
func configPath() string {
	if root := os.Getenv("CUDABUILD_ROOT"); root != "" {
		return filepath.Join(root, "etc", "cudabuild", "cudabuild.conf")
	}
	return ConfigFile
}

func valueOr(cfg *Config, key, def string) string {
	if v := strings.TrimSpace(cfg.Values[key]); v != "" {
		return v
	}
	return def
}

func initConfig(cfg *Config) *Settings {
	Debug = cfg.Values["CUDABUILD_DEBUG"] == "1"

	s := &Settings{
		Compiler:       valueOr(cfg, "CUDABUILD_COMPILER", "nvcc"),
		PackageManager: valueOr(cfg, "CUDABUILD_PACKAGE_MANAGER", "apt-get"),
		Package:        valueOr(cfg, "CUDABUILD_PACKAGE", "nvidia-cuda-toolkit"),
		Elevator:       valueOr(cfg, "CUDABUILD_ELEVATOR", "sudo"),
		BuildCommand:   strings.Fields(valueOr(cfg, "CUDABUILD_BUILD_CMD", "cargo build --all-features --release")),
		OutputDir:      valueOr(cfg, "CUDABUILD_OUTPUT_DIR", filepath.Join("target", "release")),
		LogDir:         valueOr(cfg, "CUDABUILD_LOG_DIR", filepath.Join(".cudabuild", "logs")),
		LogCompression: strings.ToLower(valueOr(cfg, "CUDABUILD_LOG_COMPRESS", codecXZ)),
		WantManifest:   cfg.Values["CUDABUILD_MANIFEST"] != "0",
		UploadPrefix:   strings.Trim(valueOr(cfg, "R2_PREFIX", "cudabuild"), "/"),
	}

	if _, ok := logCodecs[s.LogCompression]; !ok {
		warnf("Unknown CUDABUILD_LOG_COMPRESS %q, using %s", s.LogCompression, codecXZ)
		s.LogCompression = codecXZ
	}
	debugf("=> Settings: %+v\n", *s)
	return s
}
