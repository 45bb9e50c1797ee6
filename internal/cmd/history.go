package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/harrison/suiterun/internal/config"
	"github.com/harrison/suiterun/internal/history"
	"github.com/harrison/suiterun/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCommand creates the 'suiterun history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded test runs",
		Long: `Query the run history database written after every run.

Subcommands:
  recent   List the most recent runs (default)
  show     Show every outcome of one run
  test     Show the history of one test
  flaky    List tests that both passed and failed recently
  prune    Delete all but the newest runs`,
		Args: cobra.NoArgs,
		RunE: runHistoryRecent,
	}
	cmd.Flags().Int("limit", 10, "Number of runs to list")

	recent := &cobra.Command{
		Use:   "recent",
		Short: "List the most recent runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryRecent,
	}
	recent.Flags().Int("limit", 10, "Number of runs to list")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show every outcome of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}

	testCmd := &cobra.Command{
		Use:   "test <test-id>",
		Short: "Show the recorded outcomes of one test",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryTest,
	}
	testCmd.Flags().Int("limit", 20, "Number of outcomes to list")

	flaky := &cobra.Command{
		Use:   "flaky",
		Short: "List tests that both passed and failed recently",
		Args:  cobra.NoArgs,
		RunE:  runHistoryFlaky,
	}
	flaky.Flags().Int("runs", 20, "Number of recent runs to inspect")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryPrune,
	}
	prune.Flags().Int("keep", 0, "Runs to keep (0 = history.max_runs)")

	cmd.AddCommand(recent, show, testCmd, flaky, prune)
	return cmd
}

// openHistory opens the configured history database. It refuses to create
// a database that does not exist yet.
func openHistory(cmd *cobra.Command) (*history.Store, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if _, err := os.Stat(cfg.History.DBPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("no run history at %s", cfg.History.DBPath)
		}
		return nil, nil, err
	}
	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func statusText(s models.Status) string {
	switch s {
	case models.StatusPassed:
		return color.GreenString(string(s))
	case models.StatusFailed:
		return color.RedString(string(s))
	case models.StatusSkipped:
		return color.YellowString(string(s))
	}
	return string(s)
}

func runHistoryRecent(cmd *cobra.Command, args []string) error {
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.RecentRuns(commandContext(cmd), limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet.")
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Run", "Suite", "Started", "Duration", "Passed", "Failed", "Skipped", "Success"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Success", Align: text.AlignRight},
	})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.RunID,
			r.SuiteName,
			r.StartedAt.Local().Format(historyTimeLayout),
			models.FormatDuration(r.Duration),
			r.Passed,
			r.Failed,
			r.Skipped,
			fmt.Sprintf("%.1f%%", r.SuccessRate),
		})
	}
	t.Render()
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	run, outcomes, err := store.GetRun(commandContext(cmd), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.RunID)
	fmt.Fprintf(out, "Suite:    %s\n", run.SuiteName)
	fmt.Fprintf(out, "Started:  %s\n", run.StartedAt.Local().Format(historyTimeLayout))
	fmt.Fprintf(out, "Duration: %s\n", models.FormatDuration(run.Duration))
	fmt.Fprintf(out, "Success:  %.1f%% (%d/%d)\n", run.SuccessRate, run.Passed, run.Total)
	if run.ReportPath != "" {
		fmt.Fprintf(out, "Report:   %s\n", run.ReportPath)
	}
	fmt.Fprintln(out)

	t := newTable(out)
	t.AppendHeader(table.Row{"Test", "Status", "Duration", "Attempts", "Worker", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})
	for _, o := range outcomes {
		t.AppendRow(table.Row{
			o.DisplayName(),
			statusText(o.Status),
			models.FormatDuration(o.Duration),
			o.Attempts,
			o.WorkerID,
			o.Error,
		})
	}
	t.Render()
	return nil
}

func runHistoryTest(cmd *cobra.Command, args []string) error {
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.TestHistory(commandContext(cmd), args[0], limit)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintf(out, "No outcomes recorded for %s.\n", args[0])
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Run", "Started", "Status", "Duration", "Error"})
	for _, r := range records {
		t.AppendRow(table.Row{
			r.RunID,
			r.StartedAt.Local().Format(historyTimeLayout),
			statusText(r.Status),
			models.FormatDuration(r.Duration),
			r.Error,
		})
	}
	t.Render()
	return nil
}

func runHistoryFlaky(cmd *cobra.Command, args []string) error {
	store, _, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, _ := cmd.Flags().GetInt("runs")
	flaky, err := store.FlakyTests(commandContext(cmd), runs)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(flaky) == 0 {
		fmt.Fprintf(out, "No flaky tests in the last %d runs.\n", runs)
		return nil
	}

	t := newTable(out)
	t.AppendHeader(table.Row{"Test", "Passed", "Failed", "Pass rate"})
	for _, f := range flaky {
		rate := float64(f.Passed) * 100 / float64(f.Passed+f.Failed)
		t.AppendRow(table.Row{
			models.TestOutcome{TestID: f.TestID, Name: f.Name}.DisplayName(),
			f.Passed,
			f.Failed,
			strconv.FormatFloat(rate, 'f', 1, 64) + "%",
		})
	}
	t.Render()
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	store, cfg, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	keep, _ := cmd.Flags().GetInt("keep")
	if keep == 0 {
		keep = cfg.History.MaxRuns
	}
	if keep < 1 {
		return fmt.Errorf("--keep must be >= 1, got %d", keep)
	}
	n, err := store.Prune(commandContext(cmd), keep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d run(s), kept the newest %d.\n", n, keep)
	return nil
}
