package notify

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/harrison/suiterun/internal/models"
)

// StampLayout is the dd-MM-yyyy HH:mm:ss layout used in subjects and bodies.
const StampLayout = "02-01-2006 15:04:05"

func completedAt(s models.RunSummary) time.Time {
	if s.FinishedAt.IsZero() {
		return time.Now()
	}
	return s.FinishedAt
}

func suiteName(s models.RunSummary) string {
	if s.SuiteName == "" {
		return "Test Suite"
	}
	return s.SuiteName
}

// StatusLabel returns "✅ PASSED" when nothing failed, "❌ FAILED" otherwise.
func StatusLabel(s models.RunSummary) string {
	if s.AllPassed() {
		return "✅ PASSED"
	}
	return "❌ FAILED"
}

// SummaryText renders the plain-text completion message.
func SummaryText(s models.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*** Test Suite Completed: %s ***\n\n", suiteName(s))

	b.WriteString("EXECUTION SUMMARY:\n")
	fmt.Fprintf(&b, "[PASS] Passed: %d tests\n", s.Passed)
	fmt.Fprintf(&b, "[FAIL] Failed: %d tests\n", s.Failed)
	if s.Skipped > 0 {
		fmt.Fprintf(&b, "[SKIP] Skipped: %d tests\n", s.Skipped)
	}
	fmt.Fprintf(&b, "Success Rate: %s\n\n", s.SuccessRateString())

	fmt.Fprintf(&b, "Duration: %s\n", models.FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Completed: %s\n\n", completedAt(s).Format(StampLayout))

	b.WriteString("TEST DETAILS:\n")
	for _, line := range s.Results {
		b.WriteString(line)
		b.WriteString("\n")
	}

	if s.ReportPath != "" {
		fmt.Fprintf(&b, "\nReport: %s", filepath.Base(s.ReportPath))
	}
	b.WriteString("\n\nAutomated by suiterun")
	return b.String()
}

// Subject renders "{prefix} {status} - {suite} - {dd-MM-yyyy HH:mm:ss}".
func Subject(prefix string, s models.RunSummary) string {
	subject := fmt.Sprintf("%s - %s - %s", StatusLabel(s), suiteName(s), completedAt(s).Format(StampLayout))
	if prefix == "" {
		return subject
	}
	return prefix + " " + subject
}

// AttachmentName returns TestReport_dd-MM-yyyy_HH-mm-ss.html.
func AttachmentName(at time.Time) string {
	stamp := strings.NewReplacer(" ", "_", ":", "-").Replace(at.Format(StampLayout))
	return "TestReport_" + stamp + ".html"
}
