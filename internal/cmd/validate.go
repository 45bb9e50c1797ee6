package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/harrison/suiterun/internal/config"
	"github.com/harrison/suiterun/internal/session"
	"github.com/harrison/suiterun/internal/suite"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <suite-file>...",
		Short: "Validate configuration and suite files",
		Long: `Load the configuration and every suite file without running anything,
checking for:
  - Invalid configuration values
  - An engine type that is not registered
  - Missing or duplicate test ids
  - Unsupported methods and malformed durations

Exit code: 0 if valid, 1 if errors found`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return validateWithOutput(cfg, args, cmd.OutOrStdout())
		},
	}

	return cmd
}

// validateWithOutput validates config and suites with custom output writer (for testing)
func validateWithOutput(cfg *config.Config, paths []string, output io.Writer) error {
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()
	problems := 0

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(output, "%s config: %v\n", bad("✗"), err)
		problems++
	} else if _, err := session.DefaultRegistry().Lookup(cfg.Engine.Type); err != nil {
		fmt.Fprintf(output, "%s config: %v\n", bad("✗"), err)
		problems++
	} else {
		fmt.Fprintf(output, "%s config: engine %s, %d worker(s), %d retries\n", ok("✓"), cfg.Engine.Type, cfg.ThreadCount, cfg.RetryCount)
	}

	for _, path := range paths {
		s, err := suite.Load(path)
		if err != nil {
			fmt.Fprintf(output, "%s %s: %v\n", bad("✗"), path, err)
			problems++
			continue
		}
		skipped := 0
		for _, c := range s.Checks {
			if c.Skip != "" {
				skipped++
			}
		}
		fmt.Fprintf(output, "%s %s: %d tests (%d skipped)\n", ok("✓"), path, len(s.Checks), skipped)
	}

	if problems > 0 {
		return fmt.Errorf("validation failed with %d error(s)", problems)
	}
	return nil
}
