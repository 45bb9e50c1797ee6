package cmd

import (
	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// NewRootCommand creates and returns the root cobra command for suiterun
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suiterun",
		Short: "Parallel test run orchestrator with reports and notifications",
		Long: `suiterun executes a suite of tests on a fixed pool of workers.

Each worker owns one automation session at a time. Failed tests are
captured as screenshots, every run produces a timestamped HTML report,
old artifacts are swept on a retention policy, and a summary is sent
to Telegram and email when those channels are configured.`,
		Version: Version,
		// Silence usage on errors to avoid duplicate help text
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .suiterun/config.yaml)")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewSweepCommand())
	cmd.AddCommand(NewHistoryCommand())

	return cmd
}
