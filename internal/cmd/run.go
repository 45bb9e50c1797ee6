package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harrison/suiterun/internal/artifact"
	"github.com/harrison/suiterun/internal/config"
	"github.com/harrison/suiterun/internal/credentials"
	"github.com/harrison/suiterun/internal/executor"
	"github.com/harrison/suiterun/internal/history"
	"github.com/harrison/suiterun/internal/logger"
	"github.com/harrison/suiterun/internal/metrics"
	"github.com/harrison/suiterun/internal/notify"
	"github.com/harrison/suiterun/internal/report"
	"github.com/harrison/suiterun/internal/session"
	"github.com/harrison/suiterun/internal/suite"
	"github.com/spf13/cobra"
)

// ErrTestsFailed is returned by run when at least one test failed.
var ErrTestsFailed = errors.New("test run failed")

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite-file>",
		Short: "Execute a test suite",
		Long: `Execute a test suite on a fixed pool of workers.

Before the first test, old reports, screenshots and run logs are swept
down to their retention limits. Each worker acquires a fresh session per
test and releases it afterwards; failed tests are captured. After the
last test the HTML report is written once, the summary is printed and
notifications are sent.

Configuration is loaded from .suiterun/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  suiterun run suites/storefront.yaml
  suiterun run --threads 4 --retries 1 suites/storefront.yaml
  suiterun run --base-url https://staging.example.com --no-notify suites/api.yaml

Exit code: 0 if no test failed, 1 otherwise`,
		Args: cobra.ExactArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().String("suite-name", "", "Suite name used in reports and notifications")
	cmd.Flags().String("base-url", "", "URL every new session loads")
	cmd.Flags().String("engine", "", "Automation engine type")
	cmd.Flags().Bool("headless", false, "Run sessions headless")
	cmd.Flags().Int("threads", 0, "Number of workers")
	cmd.Flags().Int("retries", 0, "Retries for a failed test")
	cmd.Flags().String("timeout", "", "Per-test timeout (e.g., 30s, 2m)")
	cmd.Flags().String("report-dir", "", "Directory for HTML reports")
	cmd.Flags().String("log-dir", "", "Directory for run logs")
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error")
	cmd.Flags().Bool("no-notify", false, "Disable Telegram and email notifications")
	cmd.Flags().Bool("no-history", false, "Do not record the run in the history database")
	cmd.Flags().Bool("progress", false, "Print a progress bar after every test")

	return cmd
}

// runFlags builds flag pointers for merge (only changed values).
func runFlags(cmd *cobra.Command) (config.Flags, error) {
	var f config.Flags
	flags := cmd.Flags()

	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	integer := func(name string) *int {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetInt(name)
		return &v
	}
	boolean := func(name string) *bool {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetBool(name)
		return &v
	}

	f.SuiteName = str("suite-name")
	f.BaseURL = str("base-url")
	f.Engine = str("engine")
	f.Headless = boolean("headless")
	f.Threads = integer("threads")
	f.Retries = integer("retries")
	f.ReportDir = str("report-dir")
	f.LogDir = str("log-dir")
	f.LogLevel = str("log-level")
	f.NoNotify = boolean("no-notify")
	f.NoHistory = boolean("no-history")

	if s := str("timeout"); s != nil {
		d, err := time.ParseDuration(*s)
		if err != nil {
			return f, fmt.Errorf("invalid timeout format %q: %w", *s, err)
		}
		f.TestTimeout = &d
	}
	return f, nil
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	flags, err := runFlags(cmd)
	if err != nil {
		return err
	}
	cfg.MergeWithFlags(flags)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := suite.Load(args[0])
	if err != nil {
		return err
	}
	// The suite file names the suite unless the flag does.
	if s.Name != "" && flags.SuiteName == nil {
		cfg.SuiteName = s.Name
	}

	progress, _ := cmd.Flags().GetBool("progress")
	console := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	if progress {
		console.WithProgress()
	}
	loggers := []logger.RunLogger{console}
	fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		console.LogWarn(fmt.Sprintf("[WARNING] File logging disabled: %v", err))
	} else {
		defer fileLog.Close()
		loggers = append(loggers, fileLog)
	}
	log := logger.NewMultiLogger(loggers...)

	if loaded, err := credentials.LoadDotEnv(cfg.EnvFile); err != nil {
		log.LogWarn(fmt.Sprintf("[WARNING] %v", err))
	} else if loaded {
		log.LogDebug(fmt.Sprintf("loaded environment from %s", cfg.EnvFile))
	}
	resolver := credentials.NewResolver(func(msg string) {
		log.LogWarn("[WARNING] " + msg)
	})

	store := artifact.NewStore(cfg.Report.Path, cfg.Screenshot.Path)
	lifecycle, err := report.NewLifecycle(store, cfg.Report.Name)
	if err != nil {
		return err
	}

	deps := executor.Dependencies{
		Sessions:   session.NewManager(nil),
		Artifacts:  store,
		Report:     lifecycle,
		Metrics:    metrics.NewRunMetrics(),
		Collector:  metrics.NewCollector(),
		Dispatcher: notify.NewDispatcher(log, cfg.Notify.Timeout),
		Channels:   buildChannels(cfg, resolver),
		Logger:     log,
	}

	var hist *history.Store
	if cfg.History.Enabled {
		hist, err = history.Open(cfg.History.DBPath)
		if err != nil {
			log.LogWarn(fmt.Sprintf("[WARNING] Run history disabled: %v", err))
		} else {
			defer hist.Close()
			deps.History = hist
		}
	}

	orch, err := executor.NewOrchestrator(deps, executor.Options{
		SuiteName: cfg.SuiteName,
		Threads:   cfg.ThreadCount,
		Retries:   cfg.RetryCount,
		Session: session.Options{
			EngineType:      cfg.Engine.Type,
			Headless:        cfg.Engine.Headless,
			CI:              cfg.CIEnvironment,
			BaseURL:         cfg.BaseURL,
			ImplicitWait:    cfg.Wait.Implicit,
			ExplicitWait:    cfg.Wait.Explicit,
			PageLoadTimeout: cfg.Wait.PageLoad,
		},
		TestTimeout:       cfg.TestTimeout,
		ReportMaxKeep:     cfg.Report.MaxKeep,
		ScreenshotMaxKeep: cfg.Screenshot.MaxKeep,
		LogDir:            cfg.LogDir,
		LogMaxKeep:        cfg.LogMaxKeep,
		MetricsTextfile:   cfg.Metrics.Textfile,
		HandleSignals:     true,
	})
	if err != nil {
		return err
	}

	ctx := commandContext(cmd)
	summary, runErr := orch.Run(ctx, s.Cases())

	if hist != nil && cfg.History.MaxRuns > 0 {
		if pruned, err := hist.Prune(context.WithoutCancel(ctx), cfg.History.MaxRuns); err != nil {
			log.LogWarn(fmt.Sprintf("[WARNING] History prune failed: %v", err))
		} else if pruned > 0 {
			log.LogDebug(fmt.Sprintf("pruned %d old runs from history", pruned))
		}
	}

	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%w: %d of %d tests failed", ErrTestsFailed, summary.Failed, summary.Total)
	}
	return nil
}
