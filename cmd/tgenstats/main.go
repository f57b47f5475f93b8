// Command tgenstats extracts per-second server byte series from tgen logs
// written during a shadow simulation.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tinytelemetry/tgenstats/internal/pipeline"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

// Exit statuses.
const (
	exitOK          = 0
	exitError       = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// errUsage marks configuration problems found before any work starts.
var errUsage = errors.New("usage")

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI with args and returns the process exit status.
func execute(args []string, stdout, stderr io.Writer) int {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	log.SetOutput(stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, pipeline.ErrInterrupted), errors.Is(err, context.Canceled):
		fmt.Fprintln(stderr, "interrupted, no output written")
		return exitInterrupted
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var (
		configPath  string
		showVersion bool
	)

	cmd := &cobra.Command{
		Use:   "tgenstats [flags] PATH",
		Short: "Extract per-second server byte series from tgen logs",
		Long: `tgenstats walks PATH for tgen log files (plain, .xz, .gz or .zst), sums the
bytes each server received from each peer per simulated second, and writes
server.stats.tgen.json to the prefix directory. PATH "-" reads one log from
standard input.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				printVersion(stdout)
				return nil
			}
			cfg, err := loadConfig(cmd.Flags(), configPath, args[0])
			if err != nil {
				return fmt.Errorf("%w: %v", errUsage, err)
			}
			return run(cmd.Context(), cfg, stdout)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", errUsage, err)
	})

	cmd.Flags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/tgenstats/config.yml)")
	cmd.Flags().BoolVar(&showVersion, "version", false, "print version information")
	registerFlags(cmd.Flags())
	return cmd
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "tgenstats - tgen server throughput extractor\n")
	fmt.Fprintf(w, "  Version:    %s\n", version)
	fmt.Fprintf(w, "  Commit:     %s\n", commit)
	fmt.Fprintf(w, "  Built:      %s\n", buildTime)
	fmt.Fprintf(w, "  Go version: %s\n", goVersion)
}
