// Package commands implements the replayer CLI commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/replayer/pkg/version"
)

// Process exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrUsage marks invalid flags or configuration.
var ErrUsage = errors.New("usage error")

// NewRootCommand assembles the replayer command tree around run.
func NewRootCommand(run *cobra.Command) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "replayer",
		Short: "Replay branch history onto another branch in batches",
		Long: `replayer merges the commits of a source branch onto a target branch in
fixed-size strides, pushing after each stride and telling the cache
service that the target branch changed.

Commands:
  run       Replay source history onto the target branch
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	})

	rootCmd.AddCommand(run)
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return execute(ctx, NewRootCommand(NewRunCommand()), args, stdout, stderr)
}

func execute(ctx context.Context, rootCmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	return ExitCode(err)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	default:
		return ExitFailure
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
