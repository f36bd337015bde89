// Package cmd defines and implements the CLI commands for the scholar-tracker
// executable.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/scholar-tracker/internal/scholar"
)

// Process exit codes. A run that hit an unresolved challenge gets its own code
// so wrapping scripts can schedule a manual solve.
const (
	exitOK      = 0
	exitFailure = 2
	exitCaptcha = 3
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scholar-tracker",
		Short: "Tracks academic author profiles and publications over time.",
		Long: `scholar-tracker maintains a local dataset of author profiles and their
publications, refreshing only records older than the configured staleness
threshold. Runs are resumable: progress is checkpointed as it happens, and
anti-bot challenges pause the run for a manual browser solve instead of
aborting it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./scholar-tracker.yaml)")

	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newSolveCmd())
	return cmd
}

// Execute is the main entry point. It returns the process exit code.
func Execute() int {
	err := newRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, scholar.ErrCaptchaUnresolved):
		return exitCaptcha
	default:
		return exitFailure
	}
}
