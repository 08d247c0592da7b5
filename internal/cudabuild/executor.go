package cudabuild

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// Executor provides a consistent interface for executing commands,
// abstracting away the privilege escalation (sudo) logic.
type Executor struct {
	Context         context.Context // The context to use for cancellation
	ShouldRunAsRoot bool            // Prefix the command with Elevator.
	Elevator        string          // Privilege-elevation wrapper, e.g. "sudo".
	Interactive     bool            // Interactive indicates whether the command may prompt the user
}

// NewExecutor returns an unprivileged executor bound to ctx.
func NewExecutor(ctx context.Context) *Executor {
	return &Executor{Context: ctx}
}

// CommandError reports a child process that exited unsuccessfully.
type CommandError struct {
	Args     []string
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s failed with exit status %d", strings.Join(e.Args, " "), e.ExitCode)
}

func (e *CommandError) Unwrap() error { return e.Err }

// exitStatus maps a wait error to a shell-style exit status.
func exitStatus(err error) int {
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	if code := exitErr.ExitCode(); code > 0 {
		return code
	}
	return 1
}

// ExitCode returns the status the process should exit with for err.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return 1
}

// Run executes the given command, elevating via the configured wrapper
// only when needed. It wires up stdio and isolates non-interactive
// children in their own process group for cleanup.
func (e *Executor) Run(cmd *exec.Cmd) error {
	ctx := e.Context
	if ctx == nil {
		ctx = context.Background()
	}

	// --- Phase 0: wire up stdio ---
	if cmd.Stdin == nil && e.Interactive {
		cmd.Stdin = os.Stdin
	}
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	// --- Phase 1: build the final command ---
	argv := cmd.Args
	if len(argv) == 0 {
		argv = []string{cmd.Path}
	}
	if e.ShouldRunAsRoot && e.Elevator != "" {
		argv = append([]string{e.Elevator}, argv...)
	}

	finalCmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	finalCmd.Dir = cmd.Dir

	// preserve or inherit the environment
	if len(cmd.Env) > 0 {
		finalCmd.Env = cmd.Env
	} else {
		finalCmd.Env = os.Environ()
	}

	finalCmd.Stdin = cmd.Stdin
	finalCmd.Stdout = cmd.Stdout
	finalCmd.Stderr = cmd.Stderr

	// --- Phase 2: isolate process group for context-based cleanup ---
	if !e.Interactive {
		finalCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	}

	debugf("=> exec: %s\n", strings.Join(argv, " "))

	// --- Phase 3: start and watch for cancel ---
	if err := finalCmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	if !e.Interactive {
		pgid := finalCmd.Process.Pid

		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				_ = unix.Kill(-pgid, unix.SIGKILL)
			case <-done:
			}
		}()
	}

	// --- Phase 4: wait and return ---
	if waitErr := finalCmd.Wait(); waitErr != nil {
		if ctx.Err() != nil {
			time.Sleep(100 * time.Millisecond)
			return fmt.Errorf("command aborted: %w", ctx.Err())
		}
		return &CommandError{Args: argv, ExitCode: exitStatus(waitErr), Err: waitErr}
	}
	return nil
}
