package logger

import (
	"fmt"

	"github.com/harrison/suiterun/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// renderSummaryTable renders one row per outcome in completion order with
// a totals footer. Colored styles are used only for terminals.
func renderSummaryTable(s models.RunSummary, colorOutput bool) string {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%s)", s.SuiteName, models.FormatDuration(s.Duration)))

	t.AppendHeader(table.Row{"#", "Test", "Status", "Duration", "Attempts", "Worker", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Test", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Attempts", Align: text.AlignRight},
		{Name: "Worker", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, o := range s.Outcomes {
		duration := models.FormatDuration(o.Duration)
		if o.Status == models.StatusSkipped {
			duration = "-"
		}
		t.AppendRow(table.Row{
			i + 1,
			o.DisplayName(),
			string(o.Status),
			duration,
			o.Attempts,
			o.WorkerID,
			o.Error,
		})
	}

	switch {
	case !colorOutput:
		t.SetStyle(table.StyleLight)
	case s.Failed > 0:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	case s.Skipped > 0:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("TOTAL %d", s.Total),
		fmt.Sprintf("%d passed / %d failed / %d skipped", s.Passed, s.Failed, s.Skipped),
		models.FormatDuration(s.Duration),
		"",
		"",
		s.SuccessRateString(),
	})

	return t.Render() + "\n"
}
