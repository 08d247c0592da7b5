package cudabuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// Builder runs the project's release build.
type Builder struct {
	Command []string
	Dir     string

	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	// LogFile, when set, receives a copy of the build output.
	LogFile io.Writer

	// ForceColor asks cargo for coloured output even though its streams
	// are pipes.
	ForceColor bool

	logErr error
}

// Run executes the build with env overlaid on the current environment.
// A nil env runs the build without toolkit variables. A non-zero exit
// is returned as a *CommandError.
func (b *Builder) Run(ctx context.Context, env *ToolkitEnv) error {
	if len(b.Command) == 0 {
		return errors.New("no build command configured")
	}

	stdout, stderr := b.Stdout, b.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	var lw *logTee
	if b.LogFile != nil {
		shared := stdout == stderr
		lw = &logTee{w: b.LogFile}
		stdout = io.MultiWriter(stdout, lw)
		if shared {
			stderr = stdout
		} else {
			stderr = io.MultiWriter(stderr, lw)
		}
	}

	cmd := exec.Command(b.Command[0], b.Command[1:]...)
	cmd.Dir = b.Dir
	cmd.Env = env.Environ(os.Environ())
	if b.ForceColor && os.Getenv("CARGO_TERM_COLOR") == "" {
		cmd.Env = append(cmd.Env, "CARGO_TERM_COLOR=always")
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if env != nil {
		debugf("=> %s=%s\n", envToolkitRootDir, env.Root)
	}
	step("Running %s", strings.Join(b.Command, " "))

	b.logErr = nil
	exe := NewExecutor(ctx)
	err := exe.Run(cmd)
	if lw != nil {
		b.logErr = lw.Err()
	}
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	return nil
}

// LogError reports the first write error on LogFile during the last Run.
// The build itself is unaffected by it.
func (b *Builder) LogError() error {
	return b.logErr
}

// logTee serialises the stdout and stderr copiers onto one log. After
// the first write error it drops further output but keeps reporting
// success so the build streams are never cut.
type logTee struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func (l *logTee) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err == nil {
		if _, err := l.w.Write(p); err != nil {
			l.err = err
		}
	}
	return len(p), nil
}

func (l *logTee) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
