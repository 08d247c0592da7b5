package cudabuild

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// printHelp prints the commands table
func printHelp(w io.Writer) {
	fmt.Fprintln(w, color.Render("<info>Usage:</> cudabuild [command]"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, "With no command, make sure the CUDA toolkit is available and run the")
	fmt.Fprintln(w, "release build with all features enabled.")
	fmt.Fprintln(w)

	cmds := [][2]string{
		{"log", "Show the most recent build log"},
		{"version, --version", "Version information"},
		{"help", "Show this help"},
	}
	for _, c := range cmds {
		fmt.Fprintf(w, "  %s%s %s\n", color.Bold.Sprint(c[0]), strings.Repeat(" ", 22-len(c[0])), c[1])
	}
}

// Hold-back window for a signal during the install, and the exit used
// when a second signal forces termination.
var (
	criticalGrace = 5 * time.Second
	forceExit     = os.Exit
)

// handleSignals cancels ctx on SIGINT/SIGTERM. While the toolkit install
// is running the first signal is held back; a second one exits at once.
// The returned func stops listening.
func handleSignals(ctx context.Context, cancel context.CancelFunc) (stop func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	quit := make(chan struct{})
	var once sync.Once
	stop = func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(quit)
		})
	}

	go func() {
		for {
			select {
			case sig := <-sigs:
				if isCriticalAtomic.Load() == 1 {
					colArrow.Print("\n-> ")
					colError.Println("Toolkit installation in progress. Press Ctrl+C AGAIN to force exit NOW.")
					select {
					case <-sigs:
						colArrow.Print("\n-> ")
						colError.Println("Forced immediate exit.")
						forceExit(130)
						return
					case <-time.After(criticalGrace):
						continue
					case <-ctx.Done():
						return
					case <-quit:
						return
					}
				}

				colArrow.Print("\n-> ")
				color.Danger.Printf("Received %v. Cancelling\n", sig)
				cancel()

				select {
				case <-sigs:
					colArrow.Print("\n-> ")
					color.Danger.Println("Second interrupt received. Forcing immediate exit.")
					forceExit(130)
				case <-time.After(2 * time.Second):
				case <-quit:
				}
				return

			case <-ctx.Done():
				return
			case <-quit:
				return
			}
		}
	}()
	return stop
}

func isInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// Main is the CLI entrypoint for cmd/cudabuild.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	stop := handleSignals(ctx, cancel)

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg, err := loadConfig(configPath())
	if err != nil {
		fmt.Fprintf(stderr, "Warning: failed to read config: %v\n", err)
	}
	settings := initConfig(cfg)

	if len(args) == 0 {
		_, err := newPipeline(cfg, settings, isInteractive()).Run(ctx)
		if err != nil {
			fmt.Fprint(stderr, colError.Sprintf("Error: %v\n", err))
			return ExitCode(err)
		}
		step("Build finished")
		return 0
	}

	switch args[0] {
	case "log":
		if err := handleLogCommand(settings.LogDir, stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	case "version", "--version":
		fmt.Fprint(stdout, colNote.Sprintf("cudabuild %s (%s) built %s\n", version, arch, buildDate))
	case "help", "-h", "--help":
		printHelp(stdout)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printHelp(stderr)
		return 2
	}
	return 0
}

func handleLogCommand(logDir string, out io.Writer) error {
	path, err := latestBuildLog(logDir)
	if err != nil {
		if errors.Is(err, errNoBuildLog) {
			return fmt.Errorf("%w in %s", err, logDir)
		}
		return err
	}
	rc, err := OpenBuildLog(path)
	if err != nil {
		return err
	}
	defer rc.Close()
	return showBuildLog(filepath.Base(path), rc, out)
}
