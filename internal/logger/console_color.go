package logger

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/harrison/suiterun/internal/models"
)

// colorScheme defines consistent colors for summary output.
// Green: passed counts
// Red: failed counts
// Yellow: skipped counts
// Cyan: labels
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
	}
}

// statusColor returns the color used for a test status marker.
func statusColor(s models.Status) *color.Color {
	scheme := newColorScheme()
	switch s {
	case models.StatusPassed:
		return scheme.success
	case models.StatusFailed:
		return scheme.fail
	case models.StatusSkipped:
		return scheme.warn
	default:
		return color.New(color.Reset)
	}
}

const (
	summaryRule   = 60
	completedTime = "02-01-2006 15:04:05"
)

// summaryBlock renders the suite summary printed at the end of every run.
func summaryBlock(s models.RunSummary, colorOutput bool) string {
	scheme := newColorScheme()
	paint := func(c *color.Color, v string) string {
		if !colorOutput {
			return v
		}
		return c.Sprint(v)
	}

	rule := strings.Repeat("=", summaryRule)
	var sb strings.Builder
	sb.WriteString(rule + "\n")
	sb.WriteString("*** TEST SUITE SUMMARY ***\n")
	sb.WriteString(rule + "\n")
	fmt.Fprintf(&sb, "%s %s\n", paint(scheme.label, "Suite:"), s.SuiteName)
	fmt.Fprintf(&sb, "%s %d tests\n", paint(scheme.success, "[PASS] Passed:"), s.Passed)
	fmt.Fprintf(&sb, "%s %d tests\n", paint(scheme.fail, "[FAIL] Failed:"), s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(&sb, "%s %d tests\n", paint(scheme.warn, "[SKIP] Skipped:"), s.Skipped)
	}
	fmt.Fprintf(&sb, "%s %s\n", paint(scheme.label, "Success Rate:"), s.SuccessRateString())
	fmt.Fprintf(&sb, "%s %s\n", paint(scheme.label, "Duration:"), models.FormatDuration(s.Duration))
	if !s.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "%s %s\n", paint(scheme.label, "Completed:"), s.FinishedAt.Format(completedTime))
	}
	if s.ReportPath != "" {
		fmt.Fprintf(&sb, "%s %s\n", paint(scheme.label, "Report:"), s.ReportPath)
	}
	sb.WriteString(rule + "\n")
	return sb.String()
}
