package cudabuild

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

// Result describes one pipeline run.
type Result struct {
	ToolkitReady bool
	Env          *ToolkitEnv // nil when no compiler was found
	LogPath      string
	ManifestPath string
}

// Pipeline runs locate/install, export and build in that order.
type Pipeline struct {
	Config    *Config
	Settings  *Settings
	Installer *Installer
	Builder   *Builder
	Lookup    Locator

	// ShowProgress draws the manifest progress bar.
	ShowProgress bool
	Now          func() time.Time
}

func newPipeline(cfg *Config, s *Settings, interactive bool) *Pipeline {
	return &Pipeline{
		Config:   cfg,
		Settings: s,
		Installer: &Installer{
			Compiler:       s.Compiler,
			PackageManager: s.PackageManager,
			Package:        s.Package,
			Elevator:       s.Elevator,
			Interactive:    interactive,
		},
		Builder:      &Builder{Command: s.BuildCommand, ForceColor: interactive},
		ShowProgress: interactive,
	}
}

func (p *Pipeline) lookup() Locator {
	if p.Lookup == nil {
		return LocateCompiler
	}
	return p.Lookup
}

// Run executes the pipeline. The build runs whether or not the toolkit
// could be provided; only a failing install command stops it.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{}
	lookup := p.lookup()
	if p.Installer.Lookup == nil {
		p.Installer.Lookup = lookup
	}

	// Ensuring
	ready, err := p.Installer.Ensure(ctx)
	if err != nil {
		return res, err
	}
	res.ToolkitReady = ready
	if !ready {
		warnf("Continuing without CUDA toolkit installation.")
	}

	// Exporting
	if env, ok := ExportToolkitEnv(lookup, p.Settings.Compiler); ok {
		res.Env = env
		step("Using CUDA toolkit at %s", env.Root)
	}

	// Building
	stamp := p.now().UTC().Format("20060102-150405")
	var tmpLog *os.File
	if p.Settings.LogDir != "" {
		tmpLog, err = os.CreateTemp("", "cudabuild-*.log")
		if err != nil {
			warnf("Build log disabled: %v", err)
		} else {
			defer os.Remove(tmpLog.Name())
			p.Builder.LogFile = tmpLog
		}
	}

	buildErr := p.Builder.Run(ctx, res.Env)

	if tmpLog != nil {
		tmpLog.Close()
		p.Builder.LogFile = nil
		if logErr := p.Builder.LogError(); logErr != nil {
			warnf("Build log incomplete, not archived: %v", logErr)
			tmpLog = nil
		}
	}
	if tmpLog != nil {
		logPath, err := ArchiveBuildLog(tmpLog.Name(), p.Settings.LogDir, p.Settings.LogCompression, stamp)
		if err != nil {
			warnf("Failed to archive build log: %v", err)
		} else {
			res.LogPath = logPath
			debugf("=> build log: %s\n", logPath)
		}
	}

	if buildErr == nil && p.Settings.WantManifest {
		res.ManifestPath = p.writeManifest(stamp)
	}

	if p.Config != nil {
		uploadArtifacts(ctx, p.Config, p.Settings.UploadPrefix, res.LogPath, res.ManifestPath)
	}

	return res, buildErr
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

func (p *Pipeline) writeManifest(stamp string) string {
	outDir := p.Settings.OutputDir
	if p.Builder.Dir != "" && !filepath.IsAbs(outDir) {
		outDir = filepath.Join(p.Builder.Dir, outDir)
	}
	entries, err := HashArtifacts(outDir, p.ShowProgress)
	if err != nil {
		warnf("No artifact manifest: %v", err)
		return ""
	}
	logDir := p.Settings.LogDir
	if logDir == "" {
		logDir = outDir
	}
	manifestPath := filepath.Join(logDir, "manifest-"+stamp+".b3")
	if err := WriteManifest(manifestPath, entries); err != nil {
		warnf("Failed to write artifact manifest: %v", err)
		return ""
	}
	step("Recorded %d artifact(s) in %s", len(entries), manifestPath)
	return manifestPath
}
