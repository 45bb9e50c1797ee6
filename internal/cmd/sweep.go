package cmd

import (
	"fmt"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/logger"
	"github.com/spf13/cobra"
)

// NewSweepCommand creates the 'suiterun sweep' command
func NewSweepCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Apply retention to reports, screenshots and run logs",
		Long: `Delete old artifacts, keeping the newest files of each kind.

Reports and screenshots keep their configured max_keep; run logs keep
log_max_keep. The newest files by modification time survive.

Examples:
  suiterun sweep
  suiterun sweep --kind report --keep 5`,
		Args: cobra.NoArgs,
		RunE: runSweep,
	}

	cmd.Flags().String("kind", "all", "Artifact kind: report, screenshot, log or all")
	cmd.Flags().Int("keep", 0, "Override the number of files kept (0 = use config)")

	return cmd
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	kind, _ := cmd.Flags().GetString("kind")
	keep, _ := cmd.Flags().GetInt("keep")
	if keep < 0 {
		return fmt.Errorf("--keep must be >= 0, got %d", keep)
	}

	limit := func(configured int) int {
		if keep > 0 {
			return keep
		}
		return configured
	}

	var policies []artifact.RetentionPolicy
	switch kind {
	case "report", "screenshot", "log", "all":
	default:
		return fmt.Errorf("unknown kind %q (want report, screenshot, log or all)", kind)
	}
	if kind == "report" || kind == "all" {
		policies = append(policies, artifact.ReportPolicy(cfg.Report.Path, limit(cfg.Report.MaxKeep)))
	}
	if kind == "screenshot" || kind == "all" {
		policies = append(policies, artifact.ScreenshotPolicy(cfg.Screenshot.Path, limit(cfg.Screenshot.MaxKeep)))
	}
	if (kind == "log" || kind == "all") && limit(cfg.LogMaxKeep) > 0 {
		policies = append(policies, artifact.LogPolicy(cfg.LogDir, limit(cfg.LogMaxKeep)))
	}

	log := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	var failed int
	for _, p := range policies {
		result, err := artifact.Sweep(p)
		log.LogSweep(result)
		if err != nil {
			log.LogError(fmt.Sprintf("[ERROR] %s cleanup failed: %v", p.Kind, err))
			failed++
			continue
		}
		failed += result.Failed
	}

	if failed > 0 {
		return fmt.Errorf("sweep finished with %d failure(s)", failed)
	}
	return nil
}
